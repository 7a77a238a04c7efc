package logging

import (
	"context"
	"log/slog"
)

// AuditEvent describes a security-relevant action such as storing or
// deleting a token, or the outcome of an authorization attempt.
type AuditEvent struct {
	// Action is what happened, e.g. "login", "token_stored", "token_deleted".
	Action string

	// Outcome is "success" or "failure".
	Outcome string

	// SessionID identifies the authorization session, truncated.
	SessionID string

	// Target is the resource server or issuer the action applied to.
	Target string

	// Error is the failure reason, if any.
	Error string
}

const sessionIDDisplayLength = 8

// TruncateSessionID shortens a session identifier for log output.
func TruncateSessionID(id string) string {
	if len(id) <= sessionIDDisplayLength {
		return id
	}
	return id[:sessionIDDisplayLength] + "..."
}

// Audit logs an audit event at INFO level with an [AUDIT] prefix.
func Audit(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("subsystem", "Audit"),
		slog.String("action", event.Action),
		slog.String("outcome", event.Outcome),
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.Target != "" {
		attrs = append(attrs, slog.String("target", event.Target))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	current().LogAttrs(context.Background(), slog.LevelInfo, "[AUDIT] "+event.Action, attrs...)
}
