package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is a student's credit-bearing plan. CreditsRemaining is a
// denormalized running total maintained by the billing service; the credit
// ledger stays authoritative and the audit operation reconciles the two.
type Subscription struct {
	ID                    string             `json:"id"`
	StudentID             string             `json:"student_id"`
	PlanID                string             `json:"plan_id"`
	BillingCustomerID     string             `json:"billing_customer_id"`
	BillingSubscriptionID string             `json:"billing_subscription_id"`
	Status                SubscriptionStatus `json:"status"`
	CreditsRemaining      int                `json:"credits_remaining"`
	CreditsAllocated      int                `json:"credits_allocated"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}
