// Package workflow runs the submit/review state machine for elevated-access
// requests. States are pending, approved and rejected; a request is created
// pending and finalized exactly once.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authzd/internal/authz/audit"
	"authzd/internal/authz/catalog"
	"authzd/internal/authz/clock"
	"authzd/internal/authz/model"
	"authzd/internal/authz/policy"
	"authzd/internal/authz/repository"
)

// ErrReviewerForbidden is returned when the reviewer does not hold admin
// permission.
var ErrReviewerForbidden = errors.New("reviewer lacks admin permission")

// StateError reports an invalid state transition: reviewing an already
// finalized request, an expired request, or submitting for an unknown role.
// No state is mutated when it is returned, except for the lazy expiry of a
// stale pending request.
type StateError struct {
	RequestID string
	Reason    string
}

func (e *StateError) Error() string {
	if e.RequestID == "" {
		return "workflow state error: " + e.Reason
	}
	return fmt.Sprintf("workflow state error on request %s: %s", e.RequestID, e.Reason)
}

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Authorizer verifies the reviewer's own permission. Implemented by the
// authorization manager; never bypassed.
type Authorizer interface {
	CheckPermission(ctx context.Context, userID, resource, action, scope string) bool
}

type Workflow struct {
	requests   repository.RequestRepository
	store      *policy.Store
	catalog    *catalog.Catalog
	audit      *audit.Logger
	clock      clock.Clock
	log        *slog.Logger
	authorizer Authorizer
	pendingTTL time.Duration
}

// New builds the workflow. pendingTTL bounds how long a request may sit
// pending before review lazily rejects it; zero disables expiry.
func New(requests repository.RequestRepository, store *policy.Store, cat *catalog.Catalog, aud *audit.Logger, clk clock.Clock, log *slog.Logger, authorizer Authorizer, pendingTTL time.Duration) *Workflow {
	return &Workflow{
		requests:   requests,
		store:      store,
		catalog:    cat,
		audit:      aud,
		clock:      clk,
		log:        log,
		authorizer: authorizer,
		pendingTTL: pendingTTL,
	}
}

// Submit creates a pending request for the given role. Unknown roles are
// rejected up front with a StateError and nothing is written.
func (w *Workflow) Submit(ctx context.Context, userID, requestedRole, reason string) (string, error) {
	if !w.catalog.HasRole(requestedRole) {
		return "", &StateError{Reason: "unknown role: " + requestedRole}
	}

	req := &model.PermissionRequest{
		ID:            uuid.NewString(),
		UserID:        userID,
		RequestedRole: requestedRole,
		Reason:        reason,
		Status:        model.StatusPending,
		SubmittedAt:   w.clock.Now(),
	}
	if err := w.requests.InsertRequest(ctx, req); err != nil {
		return "", fmt.Errorf("insert permission request: %w", err)
	}

	w.audit.Record(ctx, model.AuditEvent{
		Actor:     userID,
		Decision:  model.DecisionAllow,
		EventType: model.EventRequestSubmitted,
		Metadata:  map[string]string{"request_id": req.ID, "requested_role": requestedRole, "reason": reason},
	})
	return req.ID, nil
}

// List returns requests filtered by status; empty status returns all.
func (w *Workflow) List(ctx context.Context, status model.RequestStatus) ([]*model.PermissionRequest, error) {
	return w.requests.FindRequests(ctx, status)
}

// PendingCount returns the number of pending requests for a user.
func (w *Workflow) PendingCount(ctx context.Context, userID string) (int, error) {
	pending, err := w.requests.FindRequests(ctx, model.StatusPending)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range pending {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

// Review finalizes a pending request. The reviewer must independently hold
// mcp:admin:*. On approve the requested role is assigned before the request
// is marked approved; the pending → terminal transition is a conditional
// write, so concurrent reviewers cannot both win.
func (w *Workflow) Review(ctx context.Context, requestID, reviewerID string, decision Decision, comment string) error {
	if decision != DecisionApprove && decision != DecisionReject {
		return &StateError{RequestID: requestID, Reason: "invalid decision: " + string(decision)}
	}
	if !w.authorizer.CheckPermission(ctx, reviewerID, "mcp", "admin", "*") {
		return ErrReviewerForbidden
	}

	req, err := w.requests.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != model.StatusPending {
		return &StateError{RequestID: requestID, Reason: "already finalized"}
	}

	now := w.clock.Now()
	if w.pendingTTL > 0 && now.Sub(req.SubmittedAt) > w.pendingTTL {
		return w.expire(ctx, req, now)
	}

	if decision == DecisionApprove {
		// Assign first: a crash between the two writes leaves a granted role
		// and a pending request, which a retried review resolves, whereas the
		// opposite order could approve without granting anything.
		if _, err := w.store.AssignRole(ctx, req.UserID, req.RequestedRole, reviewerID, comment); err != nil {
			return fmt.Errorf("assign approved role: %w", err)
		}
	}

	status := model.StatusRejected
	eventType := model.EventRequestRejected
	if decision == DecisionApprove {
		status = model.StatusApproved
		eventType = model.EventRequestApproved
	}

	err = w.requests.FinalizeRequest(ctx, requestID, status, reviewerID, comment, now)
	if errors.Is(err, repository.ErrAlreadyFinalized) {
		return &StateError{RequestID: requestID, Reason: "already finalized"}
	}
	if err != nil {
		return fmt.Errorf("finalize permission request: %w", err)
	}

	w.audit.Record(ctx, model.AuditEvent{
		Actor:     reviewerID,
		Decision:  model.DecisionAllow,
		EventType: eventType,
		Metadata: map[string]string{
			"request_id":     requestID,
			"user_id":        req.UserID,
			"requested_role": req.RequestedRole,
			"comment":        comment,
		},
	})
	return nil
}

// expire lazily rejects a stale pending request. The review that discovered
// the staleness fails with a StateError.
func (w *Workflow) expire(ctx context.Context, req *model.PermissionRequest, now time.Time) error {
	err := w.requests.FinalizeRequest(ctx, req.ID, model.StatusRejected, "system", "request expired", now)
	if err != nil && !errors.Is(err, repository.ErrAlreadyFinalized) {
		return fmt.Errorf("expire permission request: %w", err)
	}
	if err == nil {
		w.audit.Record(ctx, model.AuditEvent{
			Actor:     "system",
			Decision:  model.DecisionDeny,
			EventType: model.EventRequestRejected,
			Metadata:  map[string]string{"request_id": req.ID, "user_id": req.UserID, "comment": "request expired"},
		})
	}
	return &StateError{RequestID: req.ID, Reason: "request expired"}
}
