package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
	gatewaydomain "github.com/dirhublabs/dirhub/internal/gateway/domain"
	pricingdomain "github.com/dirhublabs/dirhub/internal/pricing/domain"
)

// CreateCheckout implements the self-serve purchase flow: resolve the
// canonical charge, enforce the idempotency key, persist the OPEN invoice
// and PENDING attempt in one transaction, then open the gateway session.
func (s *Service) CreateCheckout(ctx context.Context, req billingdomain.CreateCheckoutRequest) (*billingdomain.CheckoutResponse, error) {
	planType, ok := pricingdomain.ParsePlanType(req.PlanType)
	if !ok || planType == pricingdomain.PlanFree {
		return nil, billingdomain.ErrInvalidPlan
	}
	if !planType.SelfServe() {
		return nil, billingdomain.ErrPlanNotSelfServe
	}

	adapter, err := s.gateways.Active()
	if err != nil {
		return nil, billingdomain.ErrGatewayConfiguration
	}

	pair, err := s.openCheckoutPair(ctx, req, planType, adapter)
	if err != nil {
		return nil, err
	}
	if pair.replayed {
		return &billingdomain.CheckoutResponse{
			RedirectURL: pair.attempt.RedirectURL,
			Invoice:     pair.invoice,
			Attempt:     pair.attempt,
			Idempotent:  true,
		}, nil
	}

	session, err := adapter.CreateCheckout(ctx, gatewaydomain.CheckoutRequest{
		AttemptID:      pair.attempt.ID,
		InvoiceID:      pair.invoice.ID,
		OrganizationID: req.OrganizationID,
		PlanType:       string(planType),
		BillingTerm:    string(pair.term),
		AmountCents:    pair.invoice.AmountCents,
		Currency:       pair.invoice.Currency,
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
	})
	if err != nil {
		s.log.Error("gateway checkout failed",
			zap.String("provider", adapter.Provider()),
			zap.String("attempt_id", pair.attempt.ID.String()),
			zap.Error(err),
		)
		if _, failErr := s.FailPayment(ctx, billingdomain.FailRequest{
			AttemptID: pair.attempt.ID,
			Status:    billingdomain.AttemptStatusFailed,
			Reason:    "gateway session creation failed",
		}); failErr != nil {
			s.log.Error("failure handling after gateway error", zap.Error(failErr))
		}
		return nil, err
	}

	now := s.clock.Now()
	if err := s.repo.UpdateAttemptGatewayRefs(ctx, s.db, pair.attempt.ID, session.SessionID, session.PaymentID, session.RedirectURL, now); err != nil {
		return nil, err
	}
	pair.attempt.GatewaySessionID = session.SessionID
	pair.attempt.GatewayPaymentID = session.PaymentID
	pair.attempt.RedirectURL = session.RedirectURL

	metadata := pair.invoice.Metadata
	metadata.CheckoutRedirectURL = session.RedirectURL
	metadata.CheckoutSessionID = session.SessionID
	if err := s.repo.UpdateInvoiceMetadata(ctx, s.db, pair.invoice.ID, metadata, now); err != nil {
		return nil, err
	}
	pair.invoice.Metadata = metadata

	s.log.Info("checkout created",
		zap.String("organization_id", req.OrganizationID.String()),
		zap.String("plan_type", string(planType)),
		zap.String("billing_term", string(pair.term)),
		zap.String("provider", adapter.Provider()),
		zap.String("attempt_id", pair.attempt.ID.String()),
		zap.Int64("amount_cents", pair.invoice.AmountCents),
	)

	return &billingdomain.CheckoutResponse{
		RedirectURL: session.RedirectURL,
		Invoice:     pair.invoice,
		Attempt:     pair.attempt,
	}, nil
}

// ProvisionEnterprise records a negotiated enterprise purchase. The pair is
// created against the mock gateway and activated immediately; enterprise
// deals never touch a live checkout redirect.
func (s *Service) ProvisionEnterprise(ctx context.Context, req billingdomain.ProvisionEnterpriseRequest) (*billingdomain.MockCallbackResponse, error) {
	adapter, err := s.gateways.AdapterFor(gatewaydomain.ProviderMock)
	if err != nil {
		return nil, billingdomain.ErrGatewayConfiguration
	}

	pair, err := s.openCheckoutPair(ctx, billingdomain.CreateCheckoutRequest{
		OrganizationID: req.OrganizationID,
		PlanType:       string(pricingdomain.PlanEnterprise),
		AmountCents:    req.AmountCents,
		DurationDays:   req.DurationDays,
		IdempotencyKey: req.IdempotencyKey,
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
	}, pricingdomain.PlanEnterprise, adapter)
	if err != nil {
		return nil, err
	}

	return s.ProcessMockCallback(ctx, billingdomain.MockCallbackRequest{
		AttemptID: pair.attempt.ID,
		Result:    "success",
	})
}

type checkoutPair struct {
	invoice  *billingdomain.Invoice
	attempt  *billingdomain.PaymentAttempt
	term     pricingdomain.BillingTerm
	replayed bool
}

func (s *Service) openCheckoutPair(ctx context.Context, req billingdomain.CreateCheckoutRequest, planType pricingdomain.PlanType, adapter gatewaydomain.Adapter) (*checkoutPair, error) {
	if req.BillingTerm != "" {
		if _, ok := pricingdomain.ParseBillingTerm(req.BillingTerm); !ok {
			return nil, billingdomain.ErrInvalidBillingTerm
		}
	}
	term := s.pricingSvc.ResolveBillingTerm(req.BillingTerm, req.DurationDays)
	durationDays := req.DurationDays
	if durationDays <= 0 {
		durationDays = s.pricingSvc.DurationDays(term)
	}

	charge, err := s.pricingSvc.ResolveCharge(pricingdomain.ResolveChargeRequest{
		PlanType:             planType,
		BillingTerm:          term,
		RequestedAmountCents: req.AmountCents,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account, err := s.repo.UpsertAccount(ctx, s.db, &billingdomain.BillingAccount{
		ID:             s.genID.Generate(),
		OrganizationID: req.OrganizationID,
		Email:          req.CustomerEmail,
		Name:           req.CustomerName,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	requestHash, err := computeRequestHash(requestFields{
		OrganizationID: req.OrganizationID.String(),
		PlanType:       string(planType),
		BillingTerm:    string(term),
		Provider:       adapter.Provider(),
		AmountCents:    charge.AmountCents,
		Currency:       charge.Currency,
		DurationDays:   durationDays,
	})
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindAttemptByIdempotencyKey(ctx, s.db, account.ID, req.IdempotencyKey)
		if err != nil && !errors.Is(err, billingdomain.ErrAttemptNotFound) {
			return nil, err
		}
		if existing != nil {
			if existing.RequestHash != requestHash {
				s.log.Warn("idempotency key reused with different purchase",
					zap.String("idempotency_key", req.IdempotencyKey),
					zap.String("attempt_id", existing.ID.String()),
				)
				return nil, billingdomain.ErrIdempotencyConflict
			}
			invoice, err := s.repo.FindInvoiceByID(ctx, s.db, existing.InvoiceID)
			if err != nil {
				return nil, err
			}
			return &checkoutPair{invoice: invoice, attempt: existing, term: term, replayed: true}, nil
		}
	}

	integrityHash, err := integrityHashFor(req.OrganizationID.String(), string(planType), charge.AmountCents, charge.Currency, string(term), durationDays)
	if err != nil {
		return nil, err
	}

	invoice := &billingdomain.Invoice{
		ID:               s.genID.Generate(),
		BillingAccountID: account.ID,
		OrganizationID:   req.OrganizationID,
		InvoiceNumber:    newInvoiceNumber(),
		Status:           billingdomain.InvoiceStatusOpen,
		PlanType:         string(planType),
		AmountCents:      charge.AmountCents,
		Currency:         charge.Currency,
		IntegrityHash:    integrityHash,
		Metadata: billingdomain.PurchaseMetadata{
			PlanType:       planType,
			BillingTerm:    term,
			DurationDays:   durationDays,
			OrganizationID: req.OrganizationID.String(),
			Provider:       adapter.Provider(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	attempt := &billingdomain.PaymentAttempt{
		ID:               s.genID.Generate(),
		BillingAccountID: account.ID,
		InvoiceID:        invoice.ID,
		OrganizationID:   req.OrganizationID,
		IdempotencyKey:   req.IdempotencyKey,
		RequestHash:      requestHash,
		Status:           billingdomain.AttemptStatusPending,
		Provider:         adapter.Provider(),
		AmountCents:      charge.AmountCents,
		Currency:         charge.Currency,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if attempt.IdempotencyKey == "" {
		// The unique (account, key) index must not collide for callers that
		// send no key; fall back to the attempt's own id.
		attempt.IdempotencyKey = "attempt-" + attempt.ID.String()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		return s.repo.InsertAttempt(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	return &checkoutPair{invoice: invoice, attempt: attempt, term: term}, nil
}
