// Package logger provides structured logging based on Zap.
//
// New builds a logger from Config: json encoding for production and console
// encoding for terminals, with the level parsed from the configuration.
//
// WithRayID attaches the request ray id stored by the rayid middleware, so
// every log line of a request can be correlated. WithUser does the same for
// the user an entitlement pass runs for.
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	l := logger.WithRayID(log, c)
//	l.Error("sync failed", zap.Error(err))
package logger
