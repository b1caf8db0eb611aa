// Package config loads the application configuration.
//
// Values come from a .env file (if present) and the process environment.
// Every section lives next to the package it configures and declares its
// defaults with `default` struct tags, which bindValues registers with Viper so
// AutomaticEnv can resolve nested keys: STORE_BACKEND maps to store.backend and
// FINALIZE_MAX_ATTEMPTS to finalize.max_attempts.
//
// Sections: server, log, database, storage, redis, store, provider, finalize,
// events, snapshot and catalog.
package config
