package domain

import "time"

// CommissionConfig is a fee table row: MatchCriteria plus the fee formula.
// Scope is distinguished by CID (owning merchant id); empty means global.
type CommissionConfig struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	CID      string `json:"cid,omitempty"`

	Criteria MatchCriteria `json:"criteria"`

	// Fee formula: fee = FixedCommission + amount * Rate/100, with the
	// rate clamped to [MinRate, MaxRate] and the fee to [MinFee, MaxFee]
	// where those bounds are set.
	FixedCommission float64 `json:"fixedCommission"`
	Rate            float64 `json:"rate"` // percent
	MinFee          float64 `json:"minFee,omitempty"`
	MaxFee          float64 `json:"maxFee,omitempty"`
	MinRate         float64 `json:"minRate,omitempty"`
	MaxRate         float64 `json:"maxRate,omitempty"`

	// USD-equivalent fee bounds, applied when the fee is computed on the
	// USD amount instead of the native one.
	MinUSDFee float64 `json:"minUsdFee,omitempty"`
	MaxUSDFee float64 `json:"maxUsdFee,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *CommissionConfig) RuleID() string           { return c.ID }
func (c *CommissionConfig) OwnerID() string          { return c.CID }
func (c *CommissionConfig) MatchSpec() MatchCriteria { return c.Criteria }

// Fee computes the commission for a native amount.
func (c *CommissionConfig) Fee(amount float64) float64 {
	rate := c.Rate
	if c.MinRate > 0 && rate < c.MinRate {
		rate = c.MinRate
	}
	if c.MaxRate > 0 && rate > c.MaxRate {
		rate = c.MaxRate
	}

	fee := c.FixedCommission + amount*rate/100
	if c.MinFee > 0 && fee < c.MinFee {
		fee = c.MinFee
	}
	if c.MaxFee > 0 && fee > c.MaxFee {
		fee = c.MaxFee
	}
	return fee
}
