// Package logging provides subsystem-tagged structured logging for smart,
// built on Go's standard slog package.
//
// # Log Levels
//   - Debug: detailed protocol tracing (discovery URLs, redirect handling)
//   - Info: lifecycle events (configuration discovered, login completed)
//   - Warn: recoverable problems (token persistence failed)
//   - Error: failures surfaced to the user
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Discovery", "Fetched configuration for %s", issuer)
//	logging.Error("Login", err, "Authorization failed")
//
// Library packages (pkg/oauth, pkg/smart) do not use Debug, Info, Warn or
// Error. They accept a *slog.Logger through their options, and the CLI hands
// them one obtained from Logger(subsystem). Audit is shared by everyone.
//
// # Audit Logging
//
// Security-relevant events are emitted with Audit:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:    "token_stored",
//	    Outcome:   "success",
//	    SessionID: logging.TruncateSessionID(sessionID),
//	    Target:    serverURL,
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix so log
// aggregation can filter them. Token values are never logged.
package logging
