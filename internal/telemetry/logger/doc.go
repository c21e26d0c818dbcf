// Package logger builds the structured loggers used across confmesh.
//
// Loggers are plain *slog.Logger values. New configures a JSON or text
// handler that shares one process-wide level, adjustable at runtime with
// SetLevel, and redacts attributes whose names suggest key material or
// passwords.
package logger
