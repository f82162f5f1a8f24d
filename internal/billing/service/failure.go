package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
)

// FailPayment moves a pending attempt to FAILED or CANCELED and voids the
// linked invoice. Terminal attempts are immune; a duplicate delivery is an
// idempotent no-op.
func (s *Service) FailPayment(ctx context.Context, req billingdomain.FailRequest) (*billingdomain.FailResult, error) {
	attempt, err := s.repo.FindAttemptByID(ctx, s.db, req.AttemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status.Terminal() {
		return &billingdomain.FailResult{Idempotent: true, Attempt: attempt}, nil
	}

	status := req.Status
	if status != billingdomain.AttemptStatusCanceled {
		status = billingdomain.AttemptStatusFailed
	}
	reason := req.Reason
	if reason == "" {
		reason = "payment failed"
	}

	now := s.clock.Now()
	var won bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err = s.repo.MarkAttemptTerminal(ctx, tx, attempt.ID, status, reason, req.GatewayPaymentID, req.RawPayload, now)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		_, err = s.repo.MarkInvoiceVoid(ctx, tx, attempt.InvoiceID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.repo.FindAttemptByID(ctx, s.db, attempt.ID)
		if err != nil {
			return nil, err
		}
		return &billingdomain.FailResult{Idempotent: true, Attempt: current}, nil
	}

	attempt.Status = status
	attempt.ErrorMessage = reason
	attempt.ProcessedAt = &now

	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, attempt.InvoiceID)
	if err != nil {
		invoice = nil
	}

	s.log.Info("payment attempt closed",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("status", string(status)),
		zap.String("reason", reason),
	)

	return &billingdomain.FailResult{Attempt: attempt, Invoice: invoice}, nil
}
