// Package audit is the engine's side of the audit-record sink. The sink
// is best-effort: a failure to record must never fail or roll back the
// domain operation that produced the event.
package audit

import (
	"context"
	"log/slog"
)

// Event describes one domain mutation for the audit trail.
type Event struct {
	TenantID   string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]any
}

// Recorder accepts audit events. Persistence is owned by an external
// collaborator; this package only defines the contract.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder writes events to a structured logger.
type LogRecorder struct {
	log *slog.Logger
}

// NewLogRecorder creates a LogRecorder.
func NewLogRecorder(log *slog.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

// Record logs the event.
func (r *LogRecorder) Record(_ context.Context, ev Event) error {
	r.log.Info("audit",
		"tenant_id", ev.TenantID,
		"action", ev.Action,
		"entity_type", ev.EntityType,
		"entity_id", ev.EntityID,
		"metadata", ev.Metadata,
	)
	return nil
}

// Nop discards events.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, Event) error { return nil }

// Try records ev and logs locally on failure instead of propagating.
func Try(ctx context.Context, log *slog.Logger, rec Recorder, ev Event) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, ev); err != nil {
		log.Warn("audit record failed", "action", ev.Action, "error", err)
	}
}
