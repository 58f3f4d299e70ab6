package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one captured log record of a job.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// JobLogHandler is a slog.Handler that copies every record into the
// job's in-memory log buffer so GET /api/research/:id/logs can return
// them, and forwards the record to the process handler so the run still
// shows up on the server console.
type JobLogHandler struct {
	store *Store
	jobID uuid.UUID
	next  slog.Handler
	attrs []slog.Attr
}

func NewJobLogHandler(store *Store, jobID uuid.UUID, next slog.Handler) *JobLogHandler {
	return &JobLogHandler{store: store, jobID: jobID, next: next}
}

// Enabled captures every level; the forwarding handler applies its own
// level filter when the record reaches it.
func (h *JobLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *JobLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}

	h.store.AppendLog(h.jobID, LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Attrs:     attrs,
	})

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *JobLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	return &clone
}

// WithGroup flattens groups into the captured attrs; the pipeline never
// logs with groups, so losing the nesting costs nothing.
func (h *JobLogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	return &clone
}
