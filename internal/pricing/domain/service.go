package domain

import "errors"

// ResolveChargeRequest asks for the canonical charge of a plan purchase.
type ResolveChargeRequest struct {
	PlanType             PlanType
	BillingTerm          BillingTerm
	RequestedAmountCents int64
}

// Charge is the resolved canonical charge.
type Charge struct {
	AmountCents int64
	Currency    string
}

type Service interface {
	// ResolveBillingTerm picks the cadence: an explicit term wins, else the
	// term is inferred from the purchase duration, defaulting to MONTHLY.
	ResolveBillingTerm(explicit string, durationDays int) BillingTerm
	// ResolveCharge computes the canonical charge for a plan and term,
	// validating any caller-supplied amount.
	ResolveCharge(req ResolveChargeRequest) (Charge, error)
	// DurationDays returns the subscription length implied by a term.
	DurationDays(term BillingTerm) int
}

var (
	ErrInvalidPlan    = errors.New("invalid_plan")
	ErrAmountMismatch = errors.New("amount_mismatch")
	ErrMissingAmount  = errors.New("missing_amount")
)
