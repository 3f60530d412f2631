package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authzd/internal/authz/clock"
	"authzd/internal/authz/model"
	"authzd/internal/authz/repository"
)

func newTestLogger(t *testing.T, repo repository.AuditRepository) (*Logger, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewLogger(repo, clk, slog.New(slog.NewTextHandler(io.Discard, nil))), clk
}

type failingAuditRepo struct{}

func (failingAuditRepo) AppendEvent(ctx context.Context, e *model.AuditEvent) error {
	return errors.New("disk full")
}

func (failingAuditRepo) FindEvents(ctx context.Context, f repository.AuditFilter) (repository.AuditCursor, error) {
	return nil, errors.New("disk full")
}

func TestRecordStampsEvents(t *testing.T) {
	mem := repository.NewMemory()
	l, clk := newTestLogger(t, mem)
	ctx := context.Background()

	l.Record(ctx, model.AuditEvent{Actor: "alice", EventType: model.EventPermissionCheck, Decision: model.DecisionAllow})
	clk.Advance(time.Second)
	l.Record(ctx, model.AuditEvent{Actor: "bob", EventType: model.EventPermissionCheck, Decision: model.DecisionDeny})

	it, err := l.Query(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	defer it.Close(ctx)

	var events []model.AuditEvent
	for it.Next(ctx) {
		events = append(events, it.Event())
	}
	require.NoError(t, it.Err())
	require.Len(t, events, 2)

	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
	assert.True(t, events[0].Timestamp.Before(events[1].Timestamp))
	assert.Equal(t, "alice", events[0].Actor)
}

func TestRecordIsBestEffort(t *testing.T) {
	l, _ := newTestLogger(t, failingAuditRepo{})

	// Must not panic or surface the storage failure.
	l.Record(context.Background(), model.AuditEvent{Actor: "alice", EventType: model.EventPermissionCheck})
	l.Decision(context.Background(), model.EventPermissionCheck, "alice", "mcp", "read", "*",
		model.DecisionDeny, nil)
}

func TestQueryFilters(t *testing.T) {
	mem := repository.NewMemory()
	l, clk := newTestLogger(t, mem)
	ctx := context.Background()

	start := clk.Now()
	l.Record(ctx, model.AuditEvent{Actor: "alice", EventType: model.EventPermissionCheck, Decision: model.DecisionAllow})
	clk.Advance(time.Minute)
	l.Record(ctx, model.AuditEvent{Actor: "bob", EventType: model.EventRoleAssigned, Decision: model.DecisionAllow})
	clk.Advance(time.Minute)
	l.Record(ctx, model.AuditEvent{Actor: "alice", EventType: model.EventRoleAssigned, Decision: model.DecisionAllow})

	collect := func(f repository.AuditFilter) []model.AuditEvent {
		it, err := l.Query(ctx, f)
		require.NoError(t, err)
		defer it.Close(ctx)
		var out []model.AuditEvent
		for it.Next(ctx) {
			out = append(out, it.Event())
		}
		require.NoError(t, it.Err())
		return out
	}

	t.Run("by actor", func(t *testing.T) {
		events := collect(repository.AuditFilter{Actor: "alice"})
		assert.Len(t, events, 2)
	})

	t.Run("by event type", func(t *testing.T) {
		events := collect(repository.AuditFilter{EventType: model.EventRoleAssigned})
		assert.Len(t, events, 2)
	})

	t.Run("by time window, from inclusive and to exclusive", func(t *testing.T) {
		events := collect(repository.AuditFilter{From: start.Add(time.Minute), To: start.Add(2 * time.Minute)})
		require.Len(t, events, 1)
		assert.Equal(t, "bob", events[0].Actor)
	})

	t.Run("limit", func(t *testing.T) {
		events := collect(repository.AuditFilter{Limit: 2})
		require.Len(t, events, 2)
		assert.Equal(t, int64(1), events[0].Seq, "limit keeps the oldest events in order")
	})
}
