// Package logger builds the service's log/slog logger. Production output is
// JSON, every other environment gets the human readable text handler, and
// each record carries an environment attribute.
package logger
