// Package logger provides the diagnostic logger used by the ormlog CLI.
// It wraps the standard log/slog package: text output in development, JSON in
// production. Diagnostics are separate from the database event log file.
package logger
