package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authzd/internal/authz/model"
)

func TestMemoryAssignments(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	a := &model.RoleAssignment{UserID: "alice", Role: "premium_user", AssignedAt: time.Now()}
	require.NoError(t, mem.InsertAssignment(ctx, a))

	t.Run("duplicate insert", func(t *testing.T) {
		err := mem.InsertAssignment(ctx, a)
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("delete missing", func(t *testing.T) {
		err := mem.DeleteAssignment(ctx, "alice", "admin")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find returns copies", func(t *testing.T) {
		found, err := mem.FindAssignments(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, found, 1)
		found[0].Role = "mutated"

		again, err := mem.FindAssignments(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "premium_user", again[0].Role)
	})
}

func TestMemoryFinalizeRequestExactlyOnce(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	req := &model.PermissionRequest{
		ID:          "req-1",
		UserID:      "bob",
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}
	require.NoError(t, mem.InsertRequest(ctx, req))

	now := time.Now()
	require.NoError(t, mem.FinalizeRequest(ctx, "req-1", model.StatusApproved, "r1", "ok", now))

	t.Run("second finalize loses", func(t *testing.T) {
		err := mem.FinalizeRequest(ctx, "req-1", model.StatusRejected, "r2", "no", now)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)

		got, err := mem.GetRequest(ctx, "req-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, got.Status)
		assert.Equal(t, "r1", got.ReviewerID)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := mem.FinalizeRequest(ctx, "req-404", model.StatusApproved, "r1", "", now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryFinalizeRequestConcurrent(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.InsertRequest(ctx, &model.PermissionRequest{
		ID:          "req-1",
		UserID:      "bob",
		Status:      model.StatusPending,
		SubmittedAt: time.Now(),
	}))

	const reviewers = 8
	var wg sync.WaitGroup
	wins := make(chan model.RequestStatus, reviewers)
	for i := 0; i < reviewers; i++ {
		status := model.StatusApproved
		if i%2 == 1 {
			status = model.StatusRejected
		}
		wg.Add(1)
		go func(s model.RequestStatus) {
			defer wg.Done()
			if err := mem.FinalizeRequest(ctx, "req-1", s, "r", "", time.Now()); err == nil {
				wins <- s
			}
		}(status)
	}
	wg.Wait()
	close(wins)

	var winners []model.RequestStatus
	for s := range wins {
		winners = append(winners, s)
	}
	require.Len(t, winners, 1, "exactly one reviewer wins")

	got, err := mem.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.Status)
}

func TestMemoryAuditCursor(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Inserted out of order; the cursor must come back sorted by
	// (timestamp, seq).
	require.NoError(t, mem.AppendEvent(ctx, &model.AuditEvent{ID: "c", Timestamp: base.Add(time.Minute), Seq: 3}))
	require.NoError(t, mem.AppendEvent(ctx, &model.AuditEvent{ID: "b", Timestamp: base, Seq: 2}))
	require.NoError(t, mem.AppendEvent(ctx, &model.AuditEvent{ID: "a", Timestamp: base, Seq: 1}))

	cur, err := mem.FindEvents(ctx, AuditFilter{})
	require.NoError(t, err)
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var e model.AuditEvent
		require.NoError(t, cur.Decode(&e))
		ids = append(ids, e.ID)
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestMemoryHistoryNewestFirstWithLimit(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for i, action := range []string{"grant", "revoke", "grant"} {
		require.NoError(t, mem.AppendHistory(ctx, &model.PermissionHistory{
			UserID:    "alice",
			Action:    action,
			CreatedAt: time.Date(2025, 6, 1, 12, i, 0, 0, time.UTC),
		}))
	}

	entries, err := mem.FindHistory(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "grant", entries[0].Action)
	assert.Equal(t, "revoke", entries[1].Action)
}
