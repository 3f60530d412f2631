// Package audit records authorization decisions and administrative changes.
// Recording is a side channel: a failed write is logged locally and never
// surfaces to the caller of a permission decision.
package audit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"authzd/internal/authz/clock"
	"authzd/internal/authz/model"
	"authzd/internal/authz/repository"
)

type Logger struct {
	repo  repository.AuditRepository
	clock clock.Clock
	log   *slog.Logger
	seq   atomic.Int64
}

func NewLogger(repo repository.AuditRepository, clk clock.Clock, log *slog.Logger) *Logger {
	return &Logger{repo: repo, clock: clk, log: log}
}

// Record appends an event, stamping id, timestamp and sequence. Best-effort:
// storage failures are logged and swallowed.
func (l *Logger) Record(ctx context.Context, e model.AuditEvent) {
	e.ID = uuid.NewString()
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock.Now()
	}
	e.Seq = l.seq.Add(1)

	if err := l.repo.AppendEvent(ctx, &e); err != nil {
		l.log.Error("audit event write failed",
			"event_type", e.EventType,
			"actor", e.Actor,
			"decision", e.Decision,
			"error", err,
		)
	}
}

// Decision records a permission-check outcome with full context.
func (l *Logger) Decision(ctx context.Context, eventType, actor, resource, action, scope, decision string, metadata map[string]string) {
	l.Record(ctx, model.AuditEvent{
		Actor:     actor,
		Resource:  resource,
		Action:    action,
		Scope:     scope,
		Decision:  decision,
		EventType: eventType,
		Metadata:  metadata,
	})
}

// Query streams matching events ordered by (timestamp, seq) ascending. The
// iterator is lazy and not restartable; callers must Close it.
func (l *Logger) Query(ctx context.Context, filter repository.AuditFilter) (*Iterator, error) {
	cur, err := l.repo.FindEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Iterator{cur: cur}, nil
}

// Iterator is a forward-only stream over audit events.
type Iterator struct {
	cur     repository.AuditCursor
	current model.AuditEvent
	err     error
}

func (it *Iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if !it.cur.Next(ctx) {
		return false
	}
	if err := it.cur.Decode(&it.current); err != nil {
		it.err = err
		return false
	}
	return true
}

// Event returns the event loaded by the last successful Next.
func (it *Iterator) Event() model.AuditEvent { return it.current }

func (it *Iterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.cur.Err()
}

func (it *Iterator) Close(ctx context.Context) error { return it.cur.Close(ctx) }
