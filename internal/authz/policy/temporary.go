package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authzd/internal/authz/audit"
	"authzd/internal/authz/clock"
	"authzd/internal/authz/model"
	"authzd/internal/authz/repository"
)

// TemporaryManager persists and evaluates time-bounded grants independent of
// role membership. A grant is active iff is_active is true AND the clock is
// before expires_at; the time check is mandatory even when is_active was
// never flipped, so expiry needs no background sweeper.
type TemporaryManager struct {
	repo    repository.TemporaryPermissionRepository
	history repository.HistoryRepository
	audit   *audit.Logger
	clock   clock.Clock
	log     *slog.Logger
}

func NewTemporaryManager(repo repository.TemporaryPermissionRepository, history repository.HistoryRepository, aud *audit.Logger, clk clock.Clock, log *slog.Logger) *TemporaryManager {
	return &TemporaryManager{repo: repo, history: history, audit: aud, clock: clk, log: log}
}

// Grant creates a new grant expiring at now + ttl. Overlapping grants for the
// same tuple are allowed and independent.
func (t *TemporaryManager) Grant(ctx context.Context, userID, resource, action, scope string, ttl time.Duration, grantedBy string) (*model.TemporaryPermission, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	now := t.clock.Now()
	grant := &model.TemporaryPermission{
		ID:        uuid.NewString(),
		UserID:    userID,
		Resource:  resource,
		Action:    action,
		Scope:     scope,
		GrantedBy: grantedBy,
		ExpiresAt: now.Add(ttl),
		IsActive:  true,
		CreatedAt: now,
	}
	if err := t.repo.InsertGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("insert temporary grant: %w", err)
	}

	if err := t.history.AppendHistory(ctx, &model.PermissionHistory{
		UserID:          userID,
		Action:          model.HistoryActionGrant,
		PermissionType:  model.PermissionTypeTemporary,
		PermissionValue: grant.Permission().String(),
		Actor:           grantedBy,
		CreatedAt:       now,
		Metadata:        map[string]string{"expires_at": grant.ExpiresAt.Format(time.RFC3339)},
	}); err != nil {
		t.log.Error("permission history write failed; grant is durable, reconcile manually",
			"user_id", userID, "grant_id", grant.ID, "error", err)
	}
	t.audit.Record(ctx, model.AuditEvent{
		Actor:     grantedBy,
		Resource:  resource,
		Action:    action,
		Scope:     scope,
		Decision:  model.DecisionAllow,
		EventType: model.EventTemporaryGranted,
		Metadata:  map[string]string{"user_id": userID, "grant_id": grant.ID, "expires_at": grant.ExpiresAt.Format(time.RFC3339)},
	})
	return grant, nil
}

// Check reports whether any of the user's grants is active now and matches
// the requested tuple.
func (t *TemporaryManager) Check(ctx context.Context, userID, resource, action, scope string) (bool, error) {
	matches, err := t.MatchingGrants(ctx, userID, resource, action, scope)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// MatchingGrants returns the active grants covering the requested tuple,
// shared with the diagnostic path.
func (t *TemporaryManager) MatchingGrants(ctx context.Context, userID, resource, action, scope string) ([]*model.TemporaryPermission, error) {
	grants, err := t.repo.FindGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find temporary grants: %w", err)
	}

	now := t.clock.Now()
	var matches []*model.TemporaryPermission
	for _, g := range grants {
		if !t.active(g, now) {
			continue
		}
		if Match(g.Permission(), resource, action, scope) {
			matches = append(matches, g)
		}
	}
	return matches, nil
}

// Revoke deactivates a grant, preserving the row. Returns false for unknown
// ids.
func (t *TemporaryManager) Revoke(ctx context.Context, id, revokedBy string) (bool, error) {
	err := t.repo.DeactivateGrant(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deactivate temporary grant: %w", err)
	}

	t.audit.Record(ctx, model.AuditEvent{
		Actor:     revokedBy,
		Decision:  model.DecisionAllow,
		EventType: model.EventTemporaryRevoked,
		Metadata:  map[string]string{"grant_id": id},
	})
	return true, nil
}

// Grants returns all of the user's grants, expired and revoked included.
func (t *TemporaryManager) Grants(ctx context.Context, userID string) ([]*model.TemporaryPermission, error) {
	return t.repo.FindGrants(ctx, userID)
}

// ActiveGrants returns the user's currently active grants.
func (t *TemporaryManager) ActiveGrants(ctx context.Context, userID string) ([]*model.TemporaryPermission, error) {
	grants, err := t.repo.FindGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := t.clock.Now()
	var active []*model.TemporaryPermission
	for _, g := range grants {
		if t.active(g, now) {
			active = append(active, g)
		}
	}
	return active, nil
}

// ReapExpired flips is_active on rows past their expiry. Storage hygiene
// only: Check never trusts is_active alone.
func (t *TemporaryManager) ReapExpired(ctx context.Context) (int64, error) {
	return t.repo.DeactivateExpired(ctx, t.clock.Now())
}

func (t *TemporaryManager) active(g *model.TemporaryPermission, now time.Time) bool {
	return g.IsActive && now.Before(g.ExpiresAt)
}
