package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"authzd/internal/authz/model"
)

// Memory is an in-process implementation of every store interface, used by
// tests and by deployments that do not need durability. All methods are safe
// for concurrent use; FinalizeRequest is serialized by the store mutex, which
// gives it the same exactly-once semantics as the conditional Mongo update.
type Memory struct {
	mu          sync.RWMutex
	assignments map[string]*model.RoleAssignment // key: user_id + "\x00" + role
	history     []*model.PermissionHistory
	grants      map[string]*model.TemporaryPermission
	requests    map[string]*model.PermissionRequest
	events      []*model.AuditEvent
}

func NewMemory() *Memory {
	return &Memory{
		assignments: make(map[string]*model.RoleAssignment),
		grants:      make(map[string]*model.TemporaryPermission),
		requests:    make(map[string]*model.PermissionRequest),
	}
}

func assignmentKey(userID, role string) string {
	return userID + "\x00" + role
}

// --- RoleRepository ---

func (m *Memory) EnsureIndexes(ctx context.Context) error { return nil }

func (m *Memory) InsertAssignment(ctx context.Context, a *model.RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := assignmentKey(a.UserID, a.Role)
	if _, exists := m.assignments[key]; exists {
		return ErrDuplicate
	}
	cp := *a
	m.assignments[key] = &cp
	return nil
}

func (m *Memory) DeleteAssignment(ctx context.Context, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := assignmentKey(userID, role)
	if _, exists := m.assignments[key]; !exists {
		return ErrNotFound
	}
	delete(m.assignments, key)
	return nil
}

func (m *Memory) FindAssignments(ctx context.Context, userID string) ([]*model.RoleAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.RoleAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].Role < out[j].Role
	})
	return out, nil
}

func (m *Memory) DistinctUsers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, a := range m.assignments {
		seen[a.UserID] = true
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// --- HistoryRepository ---

func (m *Memory) AppendHistory(ctx context.Context, h *model.PermissionHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *h
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.history = append(m.history, &cp)
	return nil
}

func (m *Memory) FindHistory(ctx context.Context, userID string, limit int64) ([]*model.PermissionHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.PermissionHistory
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].UserID != userID {
			continue
		}
		cp := *m.history[i]
		out = append(out, &cp)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// --- TemporaryPermissionRepository ---

func (m *Memory) InsertGrant(ctx context.Context, t *model.TemporaryPermission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.grants[t.ID]; exists {
		return ErrDuplicate
	}
	cp := *t
	m.grants[t.ID] = &cp
	return nil
}

func (m *Memory) FindGrants(ctx context.Context, userID string) ([]*model.TemporaryPermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.TemporaryPermission
	for _, g := range m.grants {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeactivateGrant(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, exists := m.grants[id]
	if !exists {
		return ErrNotFound
	}
	g.IsActive = false
	return nil
}

func (m *Memory) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, g := range m.grants {
		if g.IsActive && !now.Before(g.ExpiresAt) {
			g.IsActive = false
			n++
		}
	}
	return n, nil
}

// --- RequestRepository ---

func (m *Memory) InsertRequest(ctx context.Context, r *model.PermissionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[r.ID]; exists {
		return ErrDuplicate
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) GetRequest(ctx context.Context, id string) (*model.PermissionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.requests[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) FindRequests(ctx context.Context, status model.RequestStatus) ([]*model.PermissionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.PermissionRequest
	for _, r := range m.requests {
		if status != "" && r.Status != status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *Memory) FinalizeRequest(ctx context.Context, id string, status model.RequestStatus, reviewerID, comment string, reviewedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.requests[id]
	if !exists {
		return ErrNotFound
	}
	if r.Status != model.StatusPending {
		return ErrAlreadyFinalized
	}
	r.Status = status
	r.ReviewerID = reviewerID
	r.ReviewComment = comment
	t := reviewedAt
	r.ReviewedAt = &t
	return nil
}

// --- AuditRepository ---

func (m *Memory) AppendEvent(ctx context.Context, e *model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *Memory) FindEvents(ctx context.Context, filter AuditFilter) (AuditCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*model.AuditEvent
	for _, e := range m.events {
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.Timestamp.Before(filter.To) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].Seq < matched[j].Seq
	})
	if filter.Limit > 0 && int64(len(matched)) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return &memoryCursor{events: matched, pos: -1}, nil
}

// memoryCursor adapts a slice to the AuditCursor stream interface.
type memoryCursor struct {
	events []*model.AuditEvent
	pos    int
}

func (c *memoryCursor) Next(ctx context.Context) bool {
	if c.pos+1 >= len(c.events) {
		return false
	}
	c.pos++
	return true
}

func (c *memoryCursor) Decode(v any) error {
	dst, ok := v.(*model.AuditEvent)
	if !ok {
		return fmt.Errorf("unsupported decode target %T", v)
	}
	*dst = *c.events[c.pos]
	return nil
}

func (c *memoryCursor) Err() error { return nil }

func (c *memoryCursor) Close(ctx context.Context) error { return nil }
