// Package logger provides structured logging for ringchat.
//
// This package wraps log/slog:
//
//   - logger.go: handler setup, global level, default logger
//   - context.go: context-aware logging with request IDs
//   - redact.go: sensitive data redaction
//   - hclog.go: bridge for libraries that log through go-hclog
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering, adjustable at runtime
//   - Automatic masking of passwords and session tokens
//   - Context propagation for request tracing
package logger
