// Package logx is a thin structured-logging facade over zerolog.
//
// It exposes a small Logger value with slog-like Field helpers and a Service
// that owns the configured sinks:
//   - Console (human-friendly pretty output)
//   - File (JSON lines, append-only)
//
// Loggers obtained from a Service stay live across Apply() calls, so log
// level and sinks can be re-tuned from a config reload without re-plumbing
// loggers through the application.
package logx
