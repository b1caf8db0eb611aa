// Package utils holds small parsing helpers shared by the HTTP handlers and
// CLI commands, mostly for turning query parameters and flags into typed values.
package utils
