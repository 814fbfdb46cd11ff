// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Attribute values that may carry credentials are passed
// through the redact package before they are written.
package logger
