package model

import "time"

type LedgerEntryType string

const (
	LedgerEntryCredit     LedgerEntryType = "credit"
	LedgerEntryDebit      LedgerEntryType = "debit"
	LedgerEntryAdjustment LedgerEntryType = "adjustment"
)

// LedgerEntry is one signed transaction against a student's credit balance.
// The ledger is append-only and is the source of truth for the balance;
// corrections are new adjustment entries, never updates. BalanceAfter is a
// snapshot taken at write time and must equal the previous entry's
// BalanceAfter plus Amount.
type LedgerEntry struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	SubscriptionID *string         `json:"subscription_id"`
	Type           LedgerEntryType `json:"type"`
	Amount         int             `json:"amount"`
	BalanceAfter   int             `json:"balance_after"`
	Reason         string          `json:"reason"`
	ReferenceID    *string         `json:"reference_id"`
	CreatedAt      time.Time       `json:"created_at"`
}
