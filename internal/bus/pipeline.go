package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DispatchRequest is the payload carried on TopicDispatchRequest.
type DispatchRequest struct {
	TenantID string `json:"tenantId"`
	TraceID  string `json:"traceId,omitempty"`

	domain.ResolveRequest

	// Candidates may be supplied inline; otherwise the snapshot service
	// loads the subject's pool.
	Candidates []domain.Candidate `json:"candidates,omitempty"`
}

// RuleReload is the payload carried on TopicRuleReload. A subject scopes
// the candidate pool invalidation; empty means no pool is affected.
type RuleReload struct {
	SubjectID string `json:"subjectId,omitempty"`
}

// PublishDispatchRequest queues a dispatch request for the async workers.
func PublishDispatchRequest(ctx context.Context, b domain.EventBus, tenantID string, req *DispatchRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch request: %w", err)
	}
	return b.Publish(ctx, tenantID, domain.TopicDispatchRequest, payload)
}

// SubscribeDispatchRequests delivers decoded dispatch requests to fn. The
// envelope is passed along so handlers can fall back to its tenant and
// message id.
func SubscribeDispatchRequests(ctx context.Context, b domain.EventBus, tenantID string, fn func(ctx context.Context, msg *domain.Message, req *DispatchRequest) error) (domain.Subscription, error) {
	return b.Subscribe(ctx, tenantID, domain.TopicDispatchRequest, func(ctx context.Context, msg *domain.Message) error {
		var req DispatchRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			slog.Error("malformed dispatch request",
				"message_id", msg.ID,
				"error", err,
			)
			return err
		}
		return fn(ctx, msg, &req)
	})
}

// PublishDecision announces a completed dispatch decision.
func PublishDecision(ctx context.Context, b domain.EventBus, tenantID string, d *domain.Decision) error {
	return publishDecision(ctx, b, tenantID, domain.TopicDispatchDecision, d)
}

// PublishAlert mirrors a non-OK decision onto the alert topic so operators
// see starved strategies and misconfigured rules.
func PublishAlert(ctx context.Context, b domain.EventBus, tenantID string, d *domain.Decision) error {
	return publishDecision(ctx, b, tenantID, domain.TopicDispatchAlert, d)
}

func publishDecision(ctx context.Context, b domain.EventBus, tenantID, topic string, d *domain.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode decision %s: %w", d.ID, err)
	}
	return b.Publish(ctx, tenantID, topic, payload)
}

// SubscribeDecisions delivers decoded decisions to fn.
func SubscribeDecisions(ctx context.Context, b domain.EventBus, tenantID string, fn func(ctx context.Context, d *domain.Decision) error) (domain.Subscription, error) {
	return subscribeDecisions(ctx, b, tenantID, domain.TopicDispatchDecision, fn)
}

// SubscribeAlerts delivers decoded non-OK decisions to fn.
func SubscribeAlerts(ctx context.Context, b domain.EventBus, tenantID string, fn func(ctx context.Context, d *domain.Decision) error) (domain.Subscription, error) {
	return subscribeDecisions(ctx, b, tenantID, domain.TopicDispatchAlert, fn)
}

func subscribeDecisions(ctx context.Context, b domain.EventBus, tenantID, topic string, fn func(ctx context.Context, d *domain.Decision) error) (domain.Subscription, error) {
	return b.Subscribe(ctx, tenantID, topic, func(ctx context.Context, msg *domain.Message) error {
		var d domain.Decision
		if err := json.Unmarshal(msg.Payload, &d); err != nil {
			slog.Error("malformed decision",
				"message_id", msg.ID,
				"topic", topic,
				"error", err,
			)
			return err
		}
		return fn(ctx, &d)
	})
}

// PublishRuleReload tells the tenant's workers that the rule set changed.
func PublishRuleReload(ctx context.Context, b domain.EventBus, tenantID, subjectID string) error {
	payload, err := json.Marshal(&RuleReload{SubjectID: subjectID})
	if err != nil {
		return fmt.Errorf("failed to encode rule reload: %w", err)
	}
	return b.Publish(ctx, tenantID, domain.TopicRuleReload, payload)
}

// SubscribeRuleReloads delivers decoded rule reloads to fn. A payload that
// cannot be decoded is dropped; reloads are advisory.
func SubscribeRuleReloads(ctx context.Context, b domain.EventBus, tenantID string, fn func(ctx context.Context, rel *RuleReload) error) (domain.Subscription, error) {
	return b.Subscribe(ctx, tenantID, domain.TopicRuleReload, func(ctx context.Context, msg *domain.Message) error {
		var rel RuleReload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &rel); err != nil {
				slog.Warn("malformed rule reload",
					"message_id", msg.ID,
					"error", err,
				)
				return nil
			}
		}
		return fn(ctx, &rel)
	})
}
