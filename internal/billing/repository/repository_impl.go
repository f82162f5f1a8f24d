package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) UpsertAccount(ctx context.Context, db *gorm.DB, account *billingdomain.BillingAccount) (*billingdomain.BillingAccount, error) {
	existing, err := r.FindAccountByOrganization(ctx, db, account.OrganizationID)
	if err != nil && !errors.Is(err, billingdomain.ErrAccountNotFound) {
		return nil, err
	}
	if existing == nil {
		if err := db.WithContext(ctx).Create(account).Error; err != nil {
			return nil, err
		}
		return account, nil
	}

	updates := map[string]any{"updated_at": account.UpdatedAt}
	if account.Email != "" && account.Email != existing.Email {
		updates["email"] = account.Email
		existing.Email = account.Email
	}
	if account.Name != "" && account.Name != existing.Name {
		updates["name"] = account.Name
		existing.Name = account.Name
	}
	if len(updates) > 1 {
		if err := db.WithContext(ctx).
			Model(&billingdomain.BillingAccount{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return existing, nil
}

func (r *repo) FindAccountByOrganization(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*billingdomain.BillingAccount, error) {
	var account billingdomain.BillingAccount
	err := db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) SetAccountGateway(ctx context.Context, db *gorm.DB, accountID snowflake.ID, gateway string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&billingdomain.BillingAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{"last_gateway": gateway, "updated_at": now}).Error
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *billingdomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Invoice, error) {
	var invoice billingdomain.Invoice
	err := db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) UpdateInvoiceMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata billingdomain.PurchaseMetadata, now time.Time) error {
	// Map-based Updates skip the model's json serializer, so the metadata is
	// marshaled here.
	payload, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&billingdomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{"metadata": datatypes.JSON(payload), "updated_at": now}).Error
}

func (r *repo) MarkInvoicePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&billingdomain.Invoice{}).
		Where("id = ? AND status = ?", id, billingdomain.InvoiceStatusOpen).
		Updates(map[string]any{
			"status":     billingdomain.InvoiceStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkInvoiceVoid(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&billingdomain.Invoice{}).
		Where("id = ? AND status = ?", id, billingdomain.InvoiceStatusOpen).
		Updates(map[string]any{
			"status":     billingdomain.InvoiceStatusVoid,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertAttempt(ctx context.Context, db *gorm.DB, attempt *billingdomain.PaymentAttempt) error {
	return db.WithContext(ctx).Create(attempt).Error
}

func (r *repo) FindAttemptByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.PaymentAttempt, error) {
	var attempt billingdomain.PaymentAttempt
	err := db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repo) FindAttemptByIdempotencyKey(ctx context.Context, db *gorm.DB, accountID snowflake.ID, key string) (*billingdomain.PaymentAttempt, error) {
	var attempt billingdomain.PaymentAttempt
	err := db.WithContext(ctx).
		Where("billing_account_id = ? AND idempotency_key = ?", accountID, key).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repo) UpdateAttemptGatewayRefs(ctx context.Context, db *gorm.DB, id snowflake.ID, sessionID, paymentID, redirectURL string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&billingdomain.PaymentAttempt{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gateway_session_id": sessionID,
			"gateway_payment_id": paymentID,
			"redirect_url":       redirectURL,
			"updated_at":         now,
		}).Error
}

// MarkAttemptSucceeded is the only path from PENDING to SUCCESS. The status
// predicate makes the transition atomic: of two concurrent callers, exactly
// one observes RowsAffected > 0.
func (r *repo) MarkAttemptSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, gatewayPaymentID string, rawPayload []byte, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":       billingdomain.AttemptStatusSuccess,
		"processed_at": now,
		"updated_at":   now,
	}
	if gatewayPaymentID != "" {
		updates["gateway_payment_id"] = gatewayPaymentID
	}
	if len(rawPayload) > 0 {
		updates["gateway_payload"] = datatypes.JSON(rawPayload)
	}
	result := db.WithContext(ctx).
		Model(&billingdomain.PaymentAttempt{}).
		Where("id = ? AND status = ?", id, billingdomain.AttemptStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkAttemptTerminal(ctx context.Context, db *gorm.DB, id snowflake.ID, status billingdomain.AttemptStatus, reason, gatewayPaymentID string, rawPayload []byte, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":        status,
		"error_message": reason,
		"processed_at":  now,
		"updated_at":    now,
	}
	if gatewayPaymentID != "" {
		updates["gateway_payment_id"] = gatewayPaymentID
	}
	if len(rawPayload) > 0 {
		updates["gateway_payload"] = datatypes.JSON(rawPayload)
	}
	result := db.WithContext(ctx).
		Model(&billingdomain.PaymentAttempt{}).
		Where("id = ? AND status = ?", id, billingdomain.AttemptStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, subscription *billingdomain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindActiveSubscription(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*billingdomain.Subscription, error) {
	var subscription billingdomain.Subscription
	err := db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, billingdomain.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) FindSubscriptionByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*billingdomain.Subscription, error) {
	var subscription billingdomain.Subscription
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billingdomain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) CancelActiveSubscriptions(ctx context.Context, db *gorm.DB, accountID, exceptID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&billingdomain.Subscription{}).
		Where("billing_account_id = ? AND status = ? AND id <> ?", accountID, billingdomain.SubscriptionStatusActive, exceptID).
		Updates(map[string]any{
			"status":      billingdomain.SubscriptionStatusCanceled,
			"canceled_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) FindActiveTrial(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*billingdomain.TrialSession, error) {
	var trial billingdomain.TrialSession
	err := db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, billingdomain.TrialStatusActive).
		First(&trial).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trial, nil
}

func (r *repo) ConvertTrial(ctx context.Context, db *gorm.DB, trialID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).
		Model(&billingdomain.TrialSession{}).
		Where("id = ? AND status = ?", trialID, billingdomain.TrialStatusActive).
		Updates(map[string]any{
			"status":       billingdomain.TrialStatusConverted,
			"converted_at": now,
			"updated_at":   now,
		}).Error
}
