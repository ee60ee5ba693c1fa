package domain

import "time"

// SettleCycle is the settlement cadence of a settle config.
type SettleCycle string

const (
	CycleT0 SettleCycle = "T0"
	CycleT1 SettleCycle = "T1"
	CycleD0 SettleCycle = "D0"
	CycleD1 SettleCycle = "D1"
	CycleW1 SettleCycle = "W1"
	CycleM1 SettleCycle = "M1"
)

// Contract binds a subject to its accepted transaction parameters and
// settlement configuration, split per direction.
type Contract struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId"`
	SubjectID string `json:"subjectId"`

	Payin  SettlementBinding `json:"payin"`
	Payout SettlementBinding `json:"payout"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SettlementBinding carries one direction's accepted parameter combinations
// and settlement configs.
type SettlementBinding struct {
	TrxConfigs    []ContractTrxConfig    `json:"trxConfigs,omitempty"`
	SettleConfigs []ContractSettleConfig `json:"settleConfigs,omitempty"`
}

// ContractTrxConfig is one accepted parameter combination for a direction.
type ContractTrxConfig struct {
	TrxMethod string  `json:"trxMethod,omitempty"`
	Currency  string  `json:"ccy,omitempty"`
	MinAmount float64 `json:"minAmount,omitempty"`
	MaxAmount float64 `json:"maxAmount,omitempty"`
	Status    string  `json:"status"`
}

// ContractSettleConfig is a settlement row: cadence plus MatchCriteria plus
// the strategy codes it resolves to. It is matched by the same scoped
// resolver as every other rule kind.
type ContractSettleConfig struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId"`

	Cycle    SettleCycle   `json:"cycle"`
	Criteria MatchCriteria `json:"criteria"`

	StrategyCodes []string `json:"strategyCodes,omitempty"`
}

func (c *ContractSettleConfig) RuleID() string           { return c.ID }
func (c *ContractSettleConfig) OwnerID() string          { return c.SubjectID }
func (c *ContractSettleConfig) MatchSpec() MatchCriteria { return c.Criteria }

// StrategyDetail is a resolved settlement strategy carrying its own fee
// tables.
type StrategyDetail struct {
	Code    string         `json:"code"`
	Version string         `json:"version"`
	Rules   []StrategyRule `json:"rules,omitempty"`
}

// StrategyRule is one fee table row inside a settlement strategy, again
// matched through the shared resolver.
type StrategyRule struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId,omitempty"`

	Criteria MatchCriteria `json:"criteria"`

	FixedFee float64 `json:"fixedFee"`
	Rate     float64 `json:"rate"` // percent
	MinFee   float64 `json:"minFee,omitempty"`
	MaxFee   float64 `json:"maxFee,omitempty"`
}

func (r *StrategyRule) RuleID() string           { return r.ID }
func (r *StrategyRule) OwnerID() string          { return r.SubjectID }
func (r *StrategyRule) MatchSpec() MatchCriteria { return r.Criteria }
