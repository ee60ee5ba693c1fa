package domain

// Candidate is one account/member eligible for a dispatch decision. The pool
// is materialized by the caller (or the snapshot service); the engine only
// reads it.
type Candidate struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId"`

	// Online flags
	UserOnline    bool `json:"userOnline"`
	AccountOnline bool `json:"accountOnline"`

	// Status fields checked by the set-membership gates
	UserStatus          string `json:"userStatus"`
	AccountStatus       string `json:"accountStatus"`
	UserPayinStatus     string `json:"userPayinStatus,omitempty"`
	UserPayoutStatus    string `json:"userPayoutStatus,omitempty"`
	AccountPayinStatus  string `json:"accountPayinStatus,omitempty"`
	AccountPayoutStatus string `json:"accountPayoutStatus,omitempty"`

	AvailableBalance float64 `json:"availableBalance"`

	// Score is supplied by an external scoring collaborator; score_desc
	// ordering reads it as-is.
	Score float64 `json:"score"`

	// Weight drives weighted_random sampling.
	Weight float64 `json:"weight,omitempty"`

	// UPIID identifies the candidate's UPI handle for the
	// prevent_same_upi clause.
	UPIID string `json:"upiId,omitempty"`

	// ChannelConfig is the candidate's own channel-level transaction
	// acceptance, read by the enforce_trx_config clause.
	ChannelConfig ChannelTrxConfig `json:"channelConfig"`
}

// ChannelTrxConfig is the candidate-side acceptance window for transactions.
type ChannelTrxConfig struct {
	TrxMethods []string `json:"trxMethods,omitempty"`
	MinAmount  float64  `json:"minAmount,omitempty"`
	MaxAmount  float64  `json:"maxAmount,omitempty"`
}

// Accepts reports whether the channel configuration admits the transaction.
func (c *ChannelTrxConfig) Accepts(tc TransactionContext) bool {
	if c.MinAmount > 0 && tc.Amount < c.MinAmount {
		return false
	}
	if c.MaxAmount > 0 && tc.Amount > c.MaxAmount {
		return false
	}
	if len(c.TrxMethods) > 0 && tc.TrxMethod != "" {
		for _, m := range c.TrxMethods {
			if m == tc.TrxMethod {
				return true
			}
		}
		return false
	}
	return true
}

// CandidateResult is the per-candidate filter trace: pass/fail and, on fail,
// the first violated clause.
type CandidateResult struct {
	CandidateID  string `json:"candidateId"`
	Pass         bool   `json:"pass"`
	FailedClause string `json:"failedClause,omitempty"`
}
