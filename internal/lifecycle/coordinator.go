package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/audit"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/events"
	"github.com/agentgate/agentgate/internal/logging"
	"github.com/agentgate/agentgate/internal/metrics"
	"github.com/agentgate/agentgate/internal/policy"
	"github.com/agentgate/agentgate/internal/store"
	"github.com/agentgate/agentgate/internal/webhook"
)

// Event names carried by webhooks and the live stream
const (
	EventRequestCreated  = "request.created"
	EventRequestApproved = "request.approved"
	EventRequestDenied   = "request.denied"
	EventRequestExpired  = "request.expired"
)

// CreateInput carries the fields of a new approval request
type CreateInput struct {
	Action    string
	Params    map[string]interface{}
	Context   map[string]interface{}
	Urgency   string
	ExpiresAt *time.Time
}

// Coordinator owns every approval request state transition. Creation may
// auto-decide via policy; decide and redeem share one conditional-write
// path; expiry is a time-driven transition with the same single-writer
// guarantee.
type Coordinator struct {
	store      store.Store
	recorder   *audit.Recorder
	dispatcher *webhook.Dispatcher
	bus        events.Bus
	logger     *logging.Logger
}

// NewCoordinator wires the lifecycle engine
func NewCoordinator(st store.Store, recorder *audit.Recorder, dispatcher *webhook.Dispatcher, bus events.Bus, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		store:      st,
		recorder:   recorder,
		dispatcher: dispatcher,
		bus:        bus,
		logger:     logger,
	}
}

// Create validates, applies policy, and persists a new request. A matching
// auto_approve or auto_deny rule decides the request at creation time;
// route_to_* and ask leave it pending.
func (c *Coordinator) Create(ctx context.Context, input CreateInput) (*db.ApprovalRequest, error) {
	if input.Action == "" {
		return nil, apperrors.Validation("action is required")
	}
	if input.Params == nil {
		input.Params = map[string]interface{}{}
	}
	if input.Context == nil {
		input.Context = map[string]interface{}{}
	}
	if !db.ValidUrgency(input.Urgency) {
		input.Urgency = db.UrgencyNormal
	}

	req := &db.ApprovalRequest{
		Action:    input.Action,
		Params:    input.Params,
		Context:   input.Context,
		Status:    db.StatusPending,
		Urgency:   input.Urgency,
		ExpiresAt: input.ExpiresAt,
	}

	policies, err := c.store.ListPolicies(ctx, true)
	if err != nil {
		return nil, err
	}
	outcome := policy.Evaluate(req, policies)

	now := time.Now().UTC()
	var autoEvent string
	switch outcome.Decision {
	case db.DecisionAutoApprove:
		decidedBy := db.DecidedByPolicy
		reason := fmt.Sprintf("auto-approved by policy %s", outcome.PolicyID)
		req.Status = db.StatusApproved
		req.DecidedBy = &decidedBy
		req.DecidedAt = &now
		req.DecisionReason = &reason
		autoEvent = EventRequestApproved
	case db.DecisionAutoDeny:
		decidedBy := db.DecidedByPolicy
		reason := fmt.Sprintf("auto-denied by policy %s", outcome.PolicyID)
		req.Status = db.StatusDenied
		req.DecidedBy = &decidedBy
		req.DecidedAt = &now
		req.DecisionReason = &reason
		autoEvent = EventRequestDenied
	}

	if err := c.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	details := map[string]interface{}{"action": req.Action, "urgency": req.Urgency}
	if outcome.PolicyID != "" {
		details["policyId"] = outcome.PolicyID
		details["policyDecision"] = outcome.Decision
	}
	_ = c.recorder.Record(ctx, req.ID, db.AuditCreated, db.ActorSystem, details)
	c.bus.Publish(events.Event{Type: EventRequestCreated, RequestID: req.ID})
	metrics.RecordRequestCreated(req.Status)

	if autoEvent != "" {
		eventType := db.AuditApproved
		if req.Status == db.StatusDenied {
			eventType = db.AuditDenied
		}
		_ = c.recorder.Record(ctx, req.ID, eventType, db.DecidedByPolicy, map[string]interface{}{
			"policyId": outcome.PolicyID,
		})
		metrics.RecordDecision(req.Status, "policy")
		c.notify(ctx, autoEvent, req)
	}

	return req, nil
}

// Get returns a request by ID
func (c *Coordinator) Get(ctx context.Context, id string) (*db.ApprovalRequest, error) {
	return c.store.GetRequest(ctx, id)
}

// View returns a request and leaves a viewed entry in its audit trail
func (c *Coordinator) View(ctx context.Context, id, actor string) (*db.ApprovalRequest, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = c.recorder.Record(ctx, id, db.AuditViewed, actor, nil)
	return req, nil
}

// List returns requests matching the filter, newest first
func (c *Coordinator) List(ctx context.Context, filter db.RequestListFilter) ([]db.ApprovalRequest, error) {
	return c.store.ListRequests(ctx, filter)
}

// Trail returns the audit history of a request
func (c *Coordinator) Trail(ctx context.Context, requestID string) ([]db.AuditLogEntry, error) {
	if _, err := c.store.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return c.recorder.Trail(ctx, requestID)
}

// Decide moves a pending request to approved or denied. The store's
// conditional transition guarantees exactly one winner under concurrent
// decide and redeem attempts; losers observe a conflict.
func (c *Coordinator) Decide(ctx context.Context, requestID, decision, decidedBy string, reason *string) (*db.ApprovalRequest, error) {
	if decision != db.StatusApproved && decision != db.StatusDenied {
		return nil, apperrors.Validation("decision must be %q or %q", db.StatusApproved, db.StatusDenied)
	}
	if decidedBy == "" {
		return nil, apperrors.Validation("decidedBy is required")
	}

	now := time.Now().UTC()
	if err := c.store.TransitionRequest(ctx, requestID, decision, decidedBy, reason, now); err != nil {
		return nil, err
	}

	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	eventType := db.AuditApproved
	event := EventRequestApproved
	if decision == db.StatusDenied {
		eventType = db.AuditDenied
		event = EventRequestDenied
	}
	details := map[string]interface{}{}
	if reason != nil {
		details["reason"] = *reason
	}
	_ = c.recorder.Record(ctx, requestID, eventType, decidedBy, details)
	path := "api"
	if decidedBy == db.DecidedByToken {
		path = "token"
	}
	metrics.RecordDecision(decision, path)
	c.notify(ctx, event, req)

	return req, nil
}

// DecideFunc adapts Decide for the token manager
func (c *Coordinator) DecideFunc(ctx context.Context, requestID, decision, decidedBy string, reason *string) error {
	_, err := c.Decide(ctx, requestID, decision, decidedBy, reason)
	return err
}

// ExpireOverdue sweeps pending requests past their expiry into the expired
// state. Each transition uses the same conditional write as Decide, so a
// request decided mid-sweep is skipped, not clobbered.
func (c *Coordinator) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	now := time.Now().UTC()
	overdue, err := c.store.ListOverdueRequests(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		req := &overdue[i]
		reason := "request expired before a decision was made"
		err := c.store.TransitionRequest(ctx, req.ID, db.StatusExpired, db.ActorSystem, &reason, now)
		if err != nil {
			if apperrors.Is(err, apperrors.KindConflict) {
				continue
			}
			return expired, err
		}
		expired++

		_ = c.recorder.Record(ctx, req.ID, db.AuditExpired, db.ActorSystem, nil)
		if current, err := c.store.GetRequest(ctx, req.ID); err == nil {
			c.notify(ctx, EventRequestExpired, current)
		}
	}
	return expired, nil
}

// notify fans a decided event out to webhooks and the live stream. Delivery
// problems are recorded by the dispatcher and never surfaced here.
func (c *Coordinator) notify(ctx context.Context, event string, req *db.ApprovalRequest) {
	payload := map[string]interface{}{
		"event":   event,
		"request": req,
	}
	c.dispatcher.Dispatch(ctx, event, payload)
	c.bus.Publish(events.Event{Type: event, RequestID: req.ID, Payload: payload})
}
