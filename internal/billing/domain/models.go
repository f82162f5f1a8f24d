// Package domain contains persistence models and contracts for the billing
// and payment-activation engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	pricingdomain "github.com/dirhublabs/dirhub/internal/pricing/domain"
)

// BillingAccount is the per-organization billing anchor. One account per
// organization, upserted on first checkout.
type BillingAccount struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrganizationID snowflake.ID `gorm:"not null;uniqueIndex"`
	Email          string       `gorm:"type:text"`
	Name           string       `gorm:"type:text"`
	LastGateway    string       `gorm:"type:text"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingAccount) TableName() string { return "billing_accounts" }

// InvoiceStatus represents lifecycle states for an invoice.
type InvoiceStatus string

const (
	InvoiceStatusOpen InvoiceStatus = "OPEN"
	InvoiceStatusPaid InvoiceStatus = "PAID"
	InvoiceStatusVoid InvoiceStatus = "VOID"
)

// PurchaseMetadata is the structured purchase context stamped on an invoice
// at creation and read back during activation.
type PurchaseMetadata struct {
	PlanType            pricingdomain.PlanType    `json:"planType"`
	BillingTerm         pricingdomain.BillingTerm `json:"billingTerm"`
	DurationDays        int                       `json:"durationDays"`
	OrganizationID      string                    `json:"organizationId"`
	Provider            string                    `json:"provider,omitempty"`
	CheckoutRedirectURL string                    `json:"checkoutRedirectUrl,omitempty"`
	CheckoutSessionID   string                    `json:"checkoutSessionId,omitempty"`
}

// Invoice is the billing document for one plan purchase. OPEN invoices may
// transition to PAID or VOID exactly once; terminal invoices never reopen.
type Invoice struct {
	ID               snowflake.ID     `gorm:"primaryKey"`
	BillingAccountID snowflake.ID     `gorm:"not null;index"`
	OrganizationID   snowflake.ID     `gorm:"not null;index"`
	InvoiceNumber    string           `gorm:"type:text;not null;uniqueIndex"`
	ExternalID       string           `gorm:"type:text"`
	Status           InvoiceStatus    `gorm:"type:text;not null"`
	PlanType         string           `gorm:"type:text;not null"`
	AmountCents      int64            `gorm:"not null"`
	Currency         string           `gorm:"type:text;not null"`
	IntegrityHash    string           `gorm:"type:text;not null"`
	Metadata         PurchaseMetadata `gorm:"serializer:json;type:jsonb"`
	PaidAt           *time.Time       `gorm:""`
	CreatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// AttemptStatus represents lifecycle states for a payment attempt.
type AttemptStatus string

const (
	AttemptStatusPending  AttemptStatus = "PENDING"
	AttemptStatusSuccess  AttemptStatus = "SUCCESS"
	AttemptStatusFailed   AttemptStatus = "FAILED"
	AttemptStatusCanceled AttemptStatus = "CANCELED"
)

// Terminal reports whether the status admits no further transitions.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSuccess || s == AttemptStatusFailed || s == AttemptStatusCanceled
}

// PaymentAttempt tracks one try at paying an invoice. The
// (billing_account_id, idempotency_key) pair is unique; RequestHash detects
// key reuse with different purchase parameters.
type PaymentAttempt struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	BillingAccountID snowflake.ID   `gorm:"not null;uniqueIndex:idx_attempt_idempotency,priority:1"`
	InvoiceID        snowflake.ID   `gorm:"not null;index"`
	OrganizationID   snowflake.ID   `gorm:"not null;index"`
	IdempotencyKey   string         `gorm:"type:text;not null;uniqueIndex:idx_attempt_idempotency,priority:2"`
	RequestHash      string         `gorm:"type:text;not null"`
	Status           AttemptStatus  `gorm:"type:text;not null"`
	Provider         string         `gorm:"type:text;not null"`
	AmountCents      int64          `gorm:"not null"`
	Currency         string         `gorm:"type:text;not null"`
	GatewaySessionID string         `gorm:"type:text"`
	GatewayPaymentID string         `gorm:"type:text"`
	RedirectURL      string         `gorm:"type:text"`
	ErrorMessage     string         `gorm:"type:text"`
	GatewayPayload   datatypes.JSON `gorm:"type:jsonb"`
	ProcessedAt      *time.Time     `gorm:""`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentAttempt) TableName() string { return "payment_attempts" }

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

// SubscriptionMetadata is the structured term context stamped on a
// subscription at activation.
type SubscriptionMetadata struct {
	BillingTerm  pricingdomain.BillingTerm `json:"billingTerm"`
	DurationDays int                       `json:"durationDays"`
}

// Subscription is an activated plan entitlement. At most one ACTIVE
// subscription exists per organization; activation supersedes any prior one.
type Subscription struct {
	ID                 snowflake.ID         `gorm:"primaryKey"`
	BillingAccountID   snowflake.ID         `gorm:"not null;index"`
	OrganizationID     snowflake.ID         `gorm:"not null;index"`
	InvoiceID          snowflake.ID         `gorm:"not null;index"`
	PlanType           string               `gorm:"type:text;not null"`
	Status             SubscriptionStatus   `gorm:"type:text;not null"`
	AmountCents        int64                `gorm:"not null"`
	Currency           string               `gorm:"type:text;not null"`
	StartedAt          time.Time            `gorm:"not null"`
	CurrentPeriodStart time.Time            `gorm:"not null"`
	CurrentPeriodEnd   time.Time            `gorm:"not null"`
	Metadata           SubscriptionMetadata `gorm:"serializer:json;type:jsonb"`
	CanceledAt         *time.Time           `gorm:""`
	CreatedAt          time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// TrialStatus represents lifecycle states for a trial session.
type TrialStatus string

const (
	TrialStatusActive    TrialStatus = "ACTIVE"
	TrialStatusConverted TrialStatus = "CONVERTED"
	TrialStatusExpired   TrialStatus = "EXPIRED"
)

// TrialSession records a free-trial window for an organization. A successful
// paid activation converts the active trial.
type TrialSession struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrganizationID snowflake.ID `gorm:"not null;index"`
	PlanType       string       `gorm:"type:text;not null"`
	Status         TrialStatus  `gorm:"type:text;not null"`
	StartedAt      time.Time    `gorm:"not null"`
	ExpiresAt      time.Time    `gorm:"not null"`
	ConvertedAt    *time.Time   `gorm:""`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TrialSession) TableName() string { return "trial_sessions" }
