package model

import "time"

// PrepaidBalance is the cash surplus carried for a student after a manual
// payment was reconciled: money received that did not add up to a whole
// class credit. Always in [0, class rate); only the reconciliation flow
// writes it.
type PrepaidBalance struct {
	StudentID string    `json:"student_id"`
	Amount    float64   `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}
