// Package logger wraps zap for the diagnostic log of the bootstrapper:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Operator-facing messages do not go through this package; see internal/status.
package logger
