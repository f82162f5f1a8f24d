package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// UpsertAccount finds or creates the billing account for an organization,
	// refreshing contact fields only when the new values are non-empty.
	UpsertAccount(ctx context.Context, db *gorm.DB, account *BillingAccount) (*BillingAccount, error)
	FindAccountByOrganization(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*BillingAccount, error)
	SetAccountGateway(ctx context.Context, db *gorm.DB, accountID snowflake.ID, gateway string, now time.Time) error

	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	UpdateInvoiceMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata PurchaseMetadata, now time.Time) error
	// MarkInvoicePaid transitions OPEN -> PAID; reports whether this call won
	// the transition.
	MarkInvoicePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error)
	// MarkInvoiceVoid transitions OPEN -> VOID; reports whether this call won
	// the transition.
	MarkInvoiceVoid(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)

	InsertAttempt(ctx context.Context, db *gorm.DB, attempt *PaymentAttempt) error
	FindAttemptByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentAttempt, error)
	FindAttemptByIdempotencyKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*PaymentAttempt, error)
	UpdateAttemptGatewayRefs(ctx context.Context, db *gorm.DB, id snowflake.ID, sessionID, paymentID, redirectURL string, now time.Time) error
	// MarkAttemptSucceeded atomically transitions PENDING -> SUCCESS; reports
	// whether this call won the transition.
	MarkAttemptSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, gatewayPaymentID string, rawPayload []byte, now time.Time) (bool, error)
	// MarkAttemptTerminal atomically transitions PENDING -> FAILED/CANCELED;
	// reports whether this call won the transition.
	MarkAttemptTerminal(ctx context.Context, db *gorm.DB, id snowflake.ID, status AttemptStatus, reason, gatewayPaymentID string, rawPayload []byte, now time.Time) (bool, error)

	InsertSubscription(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindActiveSubscription(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*Subscription, error)
	FindSubscriptionByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*Subscription, error)
	// CancelActiveSubscriptions cancels every ACTIVE subscription for the
	// account except the one being created, returning how many were superseded.
	CancelActiveSubscriptions(ctx context.Context, db *gorm.DB, accountID, exceptID snowflake.ID, now time.Time) (int64, error)

	FindActiveTrial(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*TrialSession, error)
	ConvertTrial(ctx context.Context, db *gorm.DB, trialID snowflake.ID, now time.Time) error
}
