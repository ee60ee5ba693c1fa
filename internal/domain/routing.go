package domain

import "time"

// Routing target kinds.
const (
	TargetChannel        = "channel"
	TargetChannelAccount = "channel_account"
	TargetChannelGroup   = "channel_group"
)

// RoutingRule decides where a transaction is sent: a channel code, a specific
// channel account or a channel group.
type RoutingRule struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Owner is the subject the rule is exclusive to. Empty means global.
	Owner string `json:"owner,omitempty"`

	Criteria MatchCriteria `json:"criteria"`

	// Target payload
	TargetKind string `json:"targetKind"` // channel | channel_account | channel_group
	Target     string `json:"target"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *RoutingRule) RuleID() string           { return r.ID }
func (r *RoutingRule) OwnerID() string          { return r.Owner }
func (r *RoutingRule) MatchSpec() MatchCriteria { return r.Criteria }
