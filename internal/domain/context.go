package domain

import (
	"time"
)

// TransactionContext carries the request-side facts a rule is matched against.
// It is assembled by the caller before resolution; the engine never mutates it.
type TransactionContext struct {
	// SubjectID is the merchant, cashier team or team member the request
	// belongs to. Exclusive rules only apply when their owner equals it.
	SubjectID string `json:"subjectId"`

	// Transaction classification
	TrxType   string `json:"trxType"` // e.g. "payin", "payout"
	TrxMethod string `json:"trxMethod,omitempty"`
	Currency  string `json:"ccy,omitempty"`
	Country   string `json:"country,omitempty"`

	// Financial details
	Amount float64 `json:"amount"`

	// USDAmount is the FX-converted equivalent, supplied by the caller when
	// available. Zero means "not supplied"; USD ranges are skipped then.
	USDAmount float64 `json:"usdAmount,omitempty"`

	// Timestamp is the instant the transaction is evaluated at. Validity
	// windows and daily windows are checked against it.
	Timestamp time.Time `json:"timestamp"`
}

// ResolveRequest is the API request payload for rule resolution.
type ResolveRequest struct {
	SubjectID string  `json:"subjectId"`
	TrxType   string  `json:"trxType"`
	TrxMethod string  `json:"trxMethod,omitempty"`
	Currency  string  `json:"ccy,omitempty"`
	Country   string  `json:"country,omitempty"`
	Amount    float64 `json:"amount"`
	USDAmount float64 `json:"usdAmount,omitempty"`

	// Timestamp is optional; the server clock is used when absent.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ToContext converts a request to a TransactionContext.
func (r *ResolveRequest) ToContext() TransactionContext {
	ts := time.Now().UTC()
	if r.Timestamp != nil {
		ts = *r.Timestamp
	}
	return TransactionContext{
		SubjectID: r.SubjectID,
		TrxType:   r.TrxType,
		TrxMethod: r.TrxMethod,
		Currency:  r.Currency,
		Country:   r.Country,
		Amount:    r.Amount,
		USDAmount: r.USDAmount,
		Timestamp: ts,
	}
}
