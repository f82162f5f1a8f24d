// Package domain contains plan and billing-term types shared across billing.
package domain

import "strings"

// PlanType identifies a directory plan tier.
type PlanType string

const (
	PlanFree       PlanType = "FREE"
	PlanBasic      PlanType = "BASIC"
	PlanPro        PlanType = "PRO"
	PlanBusiness   PlanType = "BUSINESS"
	PlanEnterprise PlanType = "ENTERPRISE"
)

// ParsePlanType normalizes a raw plan value, reporting whether it is known.
func ParsePlanType(raw string) (PlanType, bool) {
	switch PlanType(strings.ToUpper(strings.TrimSpace(raw))) {
	case PlanFree:
		return PlanFree, true
	case PlanBasic:
		return PlanBasic, true
	case PlanPro:
		return PlanPro, true
	case PlanBusiness:
		return PlanBusiness, true
	case PlanEnterprise:
		return PlanEnterprise, true
	default:
		return "", false
	}
}

// SelfServe reports whether the plan can be purchased through checkout
// without sales involvement.
func (p PlanType) SelfServe() bool {
	switch p {
	case PlanBasic, PlanPro, PlanBusiness:
		return true
	default:
		return false
	}
}

// BillingTerm is the subscription cadence.
type BillingTerm string

const (
	TermMonthly BillingTerm = "MONTHLY"
	TermAnnual  BillingTerm = "ANNUAL"
)

// ParseBillingTerm normalizes a raw term value, reporting whether it is known.
func ParseBillingTerm(raw string) (BillingTerm, bool) {
	switch BillingTerm(strings.ToUpper(strings.TrimSpace(raw))) {
	case TermMonthly:
		return TermMonthly, true
	case TermAnnual:
		return TermAnnual, true
	default:
		return "", false
	}
}
