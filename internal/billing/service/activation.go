package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
	"github.com/dirhublabs/dirhub/internal/integrity"
	orgdomain "github.com/dirhublabs/dirhub/internal/organization/domain"
	pricingdomain "github.com/dirhublabs/dirhub/internal/pricing/domain"
)

const integrityFailureReason = "Invoice integrity validation failed"

// ActivatePayment promotes a confirmed-success attempt into an active
// subscription. Webhooks are delivered at least once and possibly
// concurrently, so the whole path is guarded twice: a read-side replay check
// for the common duplicate, and the conditional PENDING->SUCCESS update
// inside the transaction for the race.
func (s *Service) ActivatePayment(ctx context.Context, req billingdomain.ActivateRequest) (*billingdomain.ActivationResult, error) {
	attempt, err := s.repo.FindAttemptByID(ctx, s.db, req.AttemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == billingdomain.AttemptStatusSuccess {
		return s.replayedActivation(ctx, attempt)
	}
	if attempt.Status.Terminal() {
		return &billingdomain.ActivationResult{Idempotent: true, Attempt: attempt}, nil
	}

	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, attempt.InvoiceID)
	if err != nil {
		return nil, err
	}

	if attempt.AmountCents != invoice.AmountCents || !strings.EqualFold(attempt.Currency, invoice.Currency) {
		s.log.Error("attempt amount disagrees with invoice",
			zap.String("attempt_id", attempt.ID.String()),
			zap.Int64("attempt_amount", attempt.AmountCents),
			zap.Int64("invoice_amount", invoice.AmountCents),
		)
		return nil, billingdomain.ErrAmountValidation
	}

	if req.ObservedAmountCents > 0 && req.ObservedAmountCents != attempt.AmountCents {
		return nil, billingdomain.ErrProviderMismatch
	}
	if req.ObservedCurrency != "" && !strings.EqualFold(req.ObservedCurrency, attempt.Currency) {
		return nil, billingdomain.ErrProviderMismatch
	}

	planType, ok := pricingdomain.ParsePlanType(string(invoice.Metadata.PlanType))
	if !ok {
		planType, ok = pricingdomain.ParsePlanType(invoice.PlanType)
		if !ok {
			return nil, billingdomain.ErrInvalidPlan
		}
	}
	term := s.pricingSvc.ResolveBillingTerm(string(invoice.Metadata.BillingTerm), invoice.Metadata.DurationDays)
	durationDays := invoice.Metadata.DurationDays
	if durationDays <= 0 {
		durationDays = s.pricingSvc.DurationDays(term)
	}

	// The digest is validated over the fields the subscription will actually
	// be provisioned from, so a rewrite of the stored metadata fails here the
	// same way a rewrite of the billed columns does.
	if !integrity.ValidateInvoiceIntegrity(integrity.InvoiceFields{
		OrganizationID: invoice.OrganizationID.String(),
		PlanType:       string(planType),
		AmountCents:    invoice.AmountCents,
		Currency:       invoice.Currency,
		BillingTerm:    string(term),
		DurationDays:   durationDays,
	}, invoice.IntegrityHash) {
		s.log.Error("invoice integrity validation failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("attempt_id", attempt.ID.String()),
		)
		if _, failErr := s.FailPayment(ctx, billingdomain.FailRequest{
			AttemptID: attempt.ID,
			Status:    billingdomain.AttemptStatusFailed,
			Reason:    integrityFailureReason,
		}); failErr != nil {
			s.log.Error("failure handling after integrity violation", zap.Error(failErr))
		}
		return nil, billingdomain.ErrIntegrityViolation
	}

	now := s.clock.Now()
	subscription := &billingdomain.Subscription{
		ID:                 s.genID.Generate(),
		BillingAccountID:   attempt.BillingAccountID,
		OrganizationID:     attempt.OrganizationID,
		InvoiceID:          invoice.ID,
		PlanType:           string(planType),
		Status:             billingdomain.SubscriptionStatusActive,
		AmountCents:        invoice.AmountCents,
		Currency:           invoice.Currency,
		StartedAt:          now,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, durationDays),
		Metadata: billingdomain.SubscriptionMetadata{
			BillingTerm:  term,
			DurationDays: durationDays,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var replayed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := s.repo.MarkAttemptSucceeded(ctx, tx, attempt.ID, req.GatewayPaymentID, req.RawPayload, now)
		if err != nil {
			return err
		}
		if !won {
			// A concurrent delivery got here first; nothing left to write.
			replayed = true
			return nil
		}
		if _, err := s.repo.MarkInvoicePaid(ctx, tx, invoice.ID, now); err != nil {
			return err
		}
		if err := s.repo.InsertSubscription(ctx, tx, subscription); err != nil {
			return err
		}
		superseded, err := s.repo.CancelActiveSubscriptions(ctx, tx, attempt.BillingAccountID, subscription.ID, now)
		if err != nil {
			return err
		}
		if superseded > 0 {
			s.log.Info("prior subscription superseded",
				zap.String("organization_id", attempt.OrganizationID.String()),
				zap.Int64("superseded", superseded),
			)
		}
		trial, err := s.repo.FindActiveTrial(ctx, tx, attempt.OrganizationID)
		if err != nil {
			return err
		}
		if trial != nil {
			if err := s.repo.ConvertTrial(ctx, tx, trial.ID, now); err != nil {
				return err
			}
		}
		return s.repo.SetAccountGateway(ctx, tx, attempt.BillingAccountID, attempt.Provider, now)
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		current, err := s.repo.FindAttemptByID(ctx, s.db, attempt.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == billingdomain.AttemptStatusSuccess {
			return s.replayedActivation(ctx, current)
		}
		return &billingdomain.ActivationResult{Idempotent: true, Attempt: current}, nil
	}

	attempt.Status = billingdomain.AttemptStatusSuccess
	attempt.ProcessedAt = &now
	invoice.Status = billingdomain.InvoiceStatusPaid
	invoice.PaidAt = &now

	s.log.Info("payment activated",
		zap.String("organization_id", attempt.OrganizationID.String()),
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("plan_type", string(planType)),
		zap.Int("duration_days", durationDays),
	)

	// Plan application is best effort: the payment commit above is the
	// financial source of truth and never unwinds on a sync failure.
	if _, err := s.orgSvc.ApplyPlan(ctx, attempt.OrganizationID, orgdomain.PlanChange{
		PlanType:     string(planType),
		Status:       orgdomain.PlanStatusActive,
		DurationDays: durationDays,
	}); err != nil {
		s.log.Error("organization plan application failed after payment",
			zap.String("organization_id", attempt.OrganizationID.String()),
			zap.String("attempt_id", attempt.ID.String()),
			zap.Error(err),
		)
	}

	return &billingdomain.ActivationResult{
		Attempt:      attempt,
		Invoice:      invoice,
		Subscription: subscription,
	}, nil
}

func (s *Service) replayedActivation(ctx context.Context, attempt *billingdomain.PaymentAttempt) (*billingdomain.ActivationResult, error) {
	result := &billingdomain.ActivationResult{
		Idempotent: true,
		Replayed:   true,
		Attempt:    attempt,
	}
	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, attempt.InvoiceID)
	if err == nil {
		result.Invoice = invoice
	}
	subscription, err := s.repo.FindSubscriptionByInvoice(ctx, s.db, attempt.InvoiceID)
	if err == nil {
		result.Subscription = subscription
	}
	return result, nil
}
