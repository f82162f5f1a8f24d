package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
	billingrepo "github.com/dirhublabs/dirhub/internal/billing/repository"
	billingservice "github.com/dirhublabs/dirhub/internal/billing/service"
	"github.com/dirhublabs/dirhub/internal/clock"
	"github.com/dirhublabs/dirhub/internal/config"
	"github.com/dirhublabs/dirhub/internal/gateway"
	"github.com/dirhublabs/dirhub/internal/integrity"
	orgdomain "github.com/dirhublabs/dirhub/internal/organization/domain"
	orgrepo "github.com/dirhublabs/dirhub/internal/organization/repository"
	orgservice "github.com/dirhublabs/dirhub/internal/organization/service"
	pricingservice "github.com/dirhublabs/dirhub/internal/pricing/service"
)

type testEnv struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	node    *snowflake.Node
	repo    billingdomain.Repository
	billing billingdomain.Service
	orgSvc  orgdomain.Service
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&billingdomain.BillingAccount{},
		&billingdomain.Invoice{},
		&billingdomain.PaymentAttempt{},
		&billingdomain.Subscription{},
		&billingdomain.TrialSession{},
		&orgdomain.OrganizationPlan{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupEnv(t *testing.T, nodeID int64) *testEnv {
	return setupEnvWithConfig(t, nodeID, nil)
}

func setupEnvWithConfig(t *testing.T, nodeID int64, mutate func(*config.Config)) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	cfg := config.Config{
		AppName:              "dirhub",
		Environment:          "test",
		AppURL:               "http://app.test",
		FrontendURL:          "http://front.test",
		PaymentMode:          config.PaymentModeMock,
		PaymentWebhookSecret: "whsec_internal",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	holder, err := config.NewPricingConfigHolder()
	if err != nil {
		t.Fatalf("pricing config: %v", err)
	}
	pricingSvc := pricingservice.NewService(pricingservice.ServiceParam{
		Log:    zap.NewNop(),
		Prices: holder,
	})

	orgSvc := orgservice.NewService(orgservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  orgrepo.Provide(),
	})

	repo := billingrepo.Provide()
	billingSvc := billingservice.NewService(billingservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Cfg:        cfg,
		GenID:      node,
		Clock:      fakeClock,
		Repo:       repo,
		PricingSvc: pricingSvc,
		Guard:      integrity.NewGuard(integrity.GuardParam{Log: zap.NewNop(), Cfg: cfg}),
		Gateways: gateway.NewSelector(gateway.SelectorParam{
			Log:      zap.NewNop(),
			Cfg:      cfg,
			Registry: gateway.NewRegistry(),
		}),
		OrgSvc: orgSvc,
	})

	return &testEnv{
		db:      db,
		clock:   fakeClock,
		node:    node,
		repo:    repo,
		billing: billingSvc,
		orgSvc:  orgSvc,
	}
}

func (e *testEnv) checkout(t *testing.T, orgID snowflake.ID, plan, term, key string) *billingdomain.CheckoutResponse {
	t.Helper()
	resp, err := e.billing.CreateCheckout(context.Background(), billingdomain.CreateCheckoutRequest{
		OrganizationID: orgID,
		PlanType:       plan,
		BillingTerm:    term,
		IdempotencyKey: key,
		CustomerEmail:  "owner@example.com",
		CustomerName:   "Owner",
	})
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	return resp
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestCreateCheckoutIdempotentReplay(t *testing.T) {
	env := setupEnv(t, 20)
	orgID := env.node.Generate()

	first := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")
	if first.Idempotent {
		t.Fatal("first checkout flagged idempotent")
	}
	if first.RedirectURL == "" {
		t.Fatal("first checkout returned no redirect")
	}

	second := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")
	if !second.Idempotent {
		t.Fatal("replay not flagged idempotent")
	}
	if second.Attempt.ID != first.Attempt.ID {
		t.Fatalf("replay returned a new attempt: %s vs %s", second.Attempt.ID, first.Attempt.ID)
	}
	if second.Invoice.ID != first.Invoice.ID {
		t.Fatalf("replay returned a new invoice: %s vs %s", second.Invoice.ID, first.Invoice.ID)
	}
	if second.RedirectURL != first.RedirectURL {
		t.Fatalf("replay changed redirect: %s vs %s", second.RedirectURL, first.RedirectURL)
	}

	if got := countRows(t, env.db, &billingdomain.Invoice{}); got != 1 {
		t.Fatalf("invoice rows = %d, want 1", got)
	}
	if got := countRows(t, env.db, &billingdomain.PaymentAttempt{}); got != 1 {
		t.Fatalf("attempt rows = %d, want 1", got)
	}
}

func TestCreateCheckoutIdempotencyConflict(t *testing.T) {
	env := setupEnv(t, 21)
	orgID := env.node.Generate()

	env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")

	_, err := env.billing.CreateCheckout(context.Background(), billingdomain.CreateCheckoutRequest{
		OrganizationID: orgID,
		PlanType:       "BUSINESS",
		BillingTerm:    "MONTHLY",
		IdempotencyKey: "key-1",
	})
	if !errors.Is(err, billingdomain.ErrIdempotencyConflict) {
		t.Fatalf("err = %v, want ErrIdempotencyConflict", err)
	}
}

func TestCreateCheckoutPlanRestrictions(t *testing.T) {
	env := setupEnv(t, 22)
	orgID := env.node.Generate()

	_, err := env.billing.CreateCheckout(context.Background(), billingdomain.CreateCheckoutRequest{
		OrganizationID: orgID,
		PlanType:       "FREE",
	})
	if !errors.Is(err, billingdomain.ErrInvalidPlan) {
		t.Fatalf("FREE err = %v, want ErrInvalidPlan", err)
	}

	_, err = env.billing.CreateCheckout(context.Background(), billingdomain.CreateCheckoutRequest{
		OrganizationID: orgID,
		PlanType:       "ENTERPRISE",
		AmountCents:    500_000,
	})
	if !errors.Is(err, billingdomain.ErrPlanNotSelfServe) {
		t.Fatalf("ENTERPRISE err = %v, want ErrPlanNotSelfServe", err)
	}
}

func TestMockCallbackActivatesSubscription(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 23)
	orgID := env.node.Generate()

	// Seed an active trial; the activation must convert it, not delete it.
	now := env.clock.Now()
	trial := &billingdomain.TrialSession{
		ID:             env.node.Generate(),
		OrganizationID: orgID,
		PlanType:       "FREE",
		Status:         billingdomain.TrialStatusActive,
		StartedAt:      now.AddDate(0, 0, -7),
		ExpiresAt:      now.AddDate(0, 0, 7),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := env.db.Create(trial).Error; err != nil {
		t.Fatalf("seed trial: %v", err)
	}

	resp := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")

	result, err := env.billing.ProcessMockCallback(ctx, billingdomain.MockCallbackRequest{
		AttemptID: resp.Attempt.ID,
		Result:    "success",
	})
	if err != nil {
		t.Fatalf("ProcessMockCallback: %v", err)
	}

	if result.Attempt.Status != billingdomain.AttemptStatusSuccess {
		t.Fatalf("attempt status = %s, want SUCCESS", result.Attempt.Status)
	}
	if result.Invoice.Status != billingdomain.InvoiceStatusPaid {
		t.Fatalf("invoice status = %s, want PAID", result.Invoice.Status)
	}
	if result.Subscription == nil {
		t.Fatal("no subscription created")
	}
	if result.Subscription.Status != billingdomain.SubscriptionStatusActive {
		t.Fatalf("subscription status = %s, want ACTIVE", result.Subscription.Status)
	}
	wantEnd := env.clock.Now().AddDate(0, 0, 30)
	if !result.Subscription.CurrentPeriodEnd.Equal(wantEnd) {
		t.Fatalf("period end = %s, want %s", result.Subscription.CurrentPeriodEnd, wantEnd)
	}

	var storedTrial billingdomain.TrialSession
	if err := env.db.Where("id = ?", trial.ID).First(&storedTrial).Error; err != nil {
		t.Fatalf("load trial: %v", err)
	}
	if storedTrial.Status != billingdomain.TrialStatusConverted {
		t.Fatalf("trial status = %s, want CONVERTED", storedTrial.Status)
	}
	if storedTrial.ConvertedAt == nil {
		t.Fatal("trial converted_at not set")
	}

	plan, err := env.orgSvc.CurrentPlan(ctx, orgID)
	if err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if plan.PlanType != "PRO" || plan.DurationDays != 30 {
		t.Fatalf("applied plan = %s/%dd, want PRO/30d", plan.PlanType, plan.DurationDays)
	}
}

func TestDuplicateActivationIsReplayed(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 24)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "BASIC", "MONTHLY", "key-1")

	first, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID})
	if err != nil {
		t.Fatalf("first activation: %v", err)
	}
	if first.Idempotent || first.Replayed {
		t.Fatalf("first activation flags = %+v, want fresh", first)
	}

	second, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID})
	if err != nil {
		t.Fatalf("second activation: %v", err)
	}
	if !second.Idempotent || !second.Replayed {
		t.Fatalf("second activation flags idempotent=%v replayed=%v, want both true", second.Idempotent, second.Replayed)
	}
	if second.Subscription == nil || second.Subscription.ID != first.Subscription.ID {
		t.Fatal("replay did not return the original subscription")
	}

	if got := countRows(t, env.db, &billingdomain.Subscription{}); got != 1 {
		t.Fatalf("subscription rows = %d, want exactly 1", got)
	}
}

func TestActivationSupersedesPriorSubscription(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 25)
	orgID := env.node.Generate()

	first := env.checkout(t, orgID, "BASIC", "MONTHLY", "key-1")
	if _, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: first.Attempt.ID}); err != nil {
		t.Fatalf("first activation: %v", err)
	}

	env.clock.Advance(24 * time.Hour)

	second := env.checkout(t, orgID, "PRO", "ANNUAL", "key-2")
	result, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: second.Attempt.ID})
	if err != nil {
		t.Fatalf("second activation: %v", err)
	}

	var active []billingdomain.Subscription
	if err := env.db.Where("status = ?", billingdomain.SubscriptionStatusActive).Find(&active).Error; err != nil {
		t.Fatalf("load active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active subscriptions = %d, want 1", len(active))
	}
	if active[0].ID != result.Subscription.ID {
		t.Fatal("surviving active subscription is not the new one")
	}

	var canceled []billingdomain.Subscription
	if err := env.db.Where("status = ?", billingdomain.SubscriptionStatusCanceled).Find(&canceled).Error; err != nil {
		t.Fatalf("load canceled: %v", err)
	}
	if len(canceled) != 1 {
		t.Fatalf("canceled subscriptions = %d, want 1", len(canceled))
	}
	if canceled[0].CanceledAt == nil {
		t.Fatal("superseded subscription has no canceled_at")
	}
}

func TestTamperedInvoiceFailsActivation(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 26)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")

	// Mutate both rows consistently so the amount cross-check passes and
	// only the integrity hash catches the tampering.
	if err := env.db.Model(&billingdomain.Invoice{}).
		Where("id = ?", resp.Invoice.ID).
		Update("amount_cents", 1).Error; err != nil {
		t.Fatalf("tamper invoice: %v", err)
	}
	if err := env.db.Model(&billingdomain.PaymentAttempt{}).
		Where("id = ?", resp.Attempt.ID).
		Update("amount_cents", 1).Error; err != nil {
		t.Fatalf("tamper attempt: %v", err)
	}

	_, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID})
	if !errors.Is(err, billingdomain.ErrIntegrityViolation) {
		t.Fatalf("err = %v, want ErrIntegrityViolation", err)
	}

	var invoice billingdomain.Invoice
	if err := env.db.Where("id = ?", resp.Invoice.ID).First(&invoice).Error; err != nil {
		t.Fatalf("load invoice: %v", err)
	}
	if invoice.Status != billingdomain.InvoiceStatusVoid {
		t.Fatalf("invoice status = %s, want VOID", invoice.Status)
	}

	var attempt billingdomain.PaymentAttempt
	if err := env.db.Where("id = ?", resp.Attempt.ID).First(&attempt).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Status != billingdomain.AttemptStatusFailed {
		t.Fatalf("attempt status = %s, want FAILED", attempt.Status)
	}
	if attempt.ErrorMessage != "Invoice integrity validation failed" {
		t.Fatalf("error message = %q", attempt.ErrorMessage)
	}

	if got := countRows(t, env.db, &billingdomain.Subscription{}); got != 0 {
		t.Fatalf("subscription rows = %d, want 0", got)
	}
}

func TestTamperedMetadataFailsActivation(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 34)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")

	// Rewrite only the metadata JSON; the billed columns stay untouched, so
	// the upgrade must be caught by the integrity digest alone.
	tampered := fmt.Sprintf(
		`{"planType":"ENTERPRISE","billingTerm":"ANNUAL","durationDays":3650,"organizationId":%q,"provider":"mock"}`,
		orgID.String(),
	)
	if err := env.db.Model(&billingdomain.Invoice{}).
		Where("id = ?", resp.Invoice.ID).
		Update("metadata", tampered).Error; err != nil {
		t.Fatalf("tamper metadata: %v", err)
	}

	_, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID})
	if !errors.Is(err, billingdomain.ErrIntegrityViolation) {
		t.Fatalf("err = %v, want ErrIntegrityViolation", err)
	}

	var invoice billingdomain.Invoice
	if err := env.db.Where("id = ?", resp.Invoice.ID).First(&invoice).Error; err != nil {
		t.Fatalf("load invoice: %v", err)
	}
	if invoice.Status != billingdomain.InvoiceStatusVoid {
		t.Fatalf("invoice status = %s, want VOID", invoice.Status)
	}

	var attempt billingdomain.PaymentAttempt
	if err := env.db.Where("id = ?", resp.Attempt.ID).First(&attempt).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Status != billingdomain.AttemptStatusFailed {
		t.Fatalf("attempt status = %s, want FAILED", attempt.Status)
	}

	if got := countRows(t, env.db, &billingdomain.Subscription{}); got != 0 {
		t.Fatalf("subscription rows = %d, want 0", got)
	}
}

func TestAttemptInvoiceAmountMismatch(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 27)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")

	if err := env.db.Model(&billingdomain.Invoice{}).
		Where("id = ?", resp.Invoice.ID).
		Update("amount_cents", 1).Error; err != nil {
		t.Fatalf("tamper invoice: %v", err)
	}

	_, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID})
	if !errors.Is(err, billingdomain.ErrAmountValidation) {
		t.Fatalf("err = %v, want ErrAmountValidation", err)
	}
}

func TestObservedAmountMismatch(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 28)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")

	_, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{
		AttemptID:           resp.Attempt.ID,
		ObservedAmountCents: resp.Invoice.AmountCents + 100,
	})
	if !errors.Is(err, billingdomain.ErrProviderMismatch) {
		t.Fatalf("amount err = %v, want ErrProviderMismatch", err)
	}

	_, err = env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{
		AttemptID:        resp.Attempt.ID,
		ObservedCurrency: "BDT",
	})
	if !errors.Is(err, billingdomain.ErrProviderMismatch) {
		t.Fatalf("currency err = %v, want ErrProviderMismatch", err)
	}
}

func TestFailPaymentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 29)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "BASIC", "MONTHLY", "key-1")

	first, err := env.billing.FailPayment(ctx, billingdomain.FailRequest{
		AttemptID: resp.Attempt.ID,
		Status:    billingdomain.AttemptStatusCanceled,
		Reason:    "user canceled at gateway",
	})
	if err != nil {
		t.Fatalf("FailPayment: %v", err)
	}
	if first.Idempotent {
		t.Fatal("first failure flagged idempotent")
	}
	if first.Attempt.Status != billingdomain.AttemptStatusCanceled {
		t.Fatalf("attempt status = %s, want CANCELED", first.Attempt.Status)
	}
	if first.Invoice == nil || first.Invoice.Status != billingdomain.InvoiceStatusVoid {
		t.Fatal("invoice not voided on failure")
	}

	second, err := env.billing.FailPayment(ctx, billingdomain.FailRequest{AttemptID: resp.Attempt.ID})
	if err != nil {
		t.Fatalf("second FailPayment: %v", err)
	}
	if !second.Idempotent {
		t.Fatal("duplicate failure not idempotent")
	}

	// A canceled attempt can never activate afterwards.
	activation, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID})
	if err != nil {
		t.Fatalf("activation after cancel: %v", err)
	}
	if !activation.Idempotent || activation.Replayed {
		t.Fatalf("activation flags = %+v, want idempotent non-replayed no-op", activation)
	}
	if got := countRows(t, env.db, &billingdomain.Subscription{}); got != 0 {
		t.Fatalf("subscription rows = %d, want 0", got)
	}
}

func TestSuccessfulAttemptImmuneToFailure(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 30)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "BASIC", "MONTHLY", "key-1")
	if _, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID}); err != nil {
		t.Fatalf("activation: %v", err)
	}

	result, err := env.billing.FailPayment(ctx, billingdomain.FailRequest{AttemptID: resp.Attempt.ID, Reason: "late failure"})
	if err != nil {
		t.Fatalf("FailPayment: %v", err)
	}
	if !result.Idempotent {
		t.Fatal("failure on a successful attempt not idempotent")
	}

	var attempt billingdomain.PaymentAttempt
	if err := env.db.Where("id = ?", resp.Attempt.ID).First(&attempt).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Status != billingdomain.AttemptStatusSuccess {
		t.Fatalf("attempt status = %s, want SUCCESS untouched", attempt.Status)
	}
}

func TestProvisionEnterprise(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 31)
	orgID := env.node.Generate()

	result, err := env.billing.ProvisionEnterprise(ctx, billingdomain.ProvisionEnterpriseRequest{
		OrganizationID: orgID,
		AmountCents:    2_400_000,
		DurationDays:   365,
		IdempotencyKey: "ent-1",
	})
	if err != nil {
		t.Fatalf("ProvisionEnterprise: %v", err)
	}

	if result.Subscription == nil {
		t.Fatal("no subscription provisioned")
	}
	if result.Subscription.PlanType != "ENTERPRISE" {
		t.Fatalf("plan = %s, want ENTERPRISE", result.Subscription.PlanType)
	}
	if result.Subscription.AmountCents != 2_400_000 {
		t.Fatalf("amount = %d, want 2400000", result.Subscription.AmountCents)
	}
	if result.Invoice.Status != billingdomain.InvoiceStatusPaid {
		t.Fatalf("invoice status = %s, want PAID", result.Invoice.Status)
	}
	wantEnd := env.clock.Now().AddDate(0, 0, 365)
	if !result.Subscription.CurrentPeriodEnd.Equal(wantEnd) {
		t.Fatalf("period end = %s, want %s", result.Subscription.CurrentPeriodEnd, wantEnd)
	}

	_, err = env.billing.ProvisionEnterprise(ctx, billingdomain.ProvisionEnterpriseRequest{
		OrganizationID: orgID,
		DurationDays:   365,
		IdempotencyKey: "ent-2",
	})
	if err == nil {
		t.Fatal("enterprise provisioning without an amount should fail")
	}
}

func TestHandleInternalWebhook(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 32)
	orgID := env.node.Generate()

	resp := env.checkout(t, orgID, "PRO", "MONTHLY", "key-1")

	payload := []byte(fmt.Sprintf(`{"paymentAttemptId":"%s","result":"success"}`, resp.Attempt.ID))
	signature, err := integrity.SignPayload(payload, "whsec_internal")
	if err != nil {
		t.Fatalf("SignPayload: %v", err)
	}

	result, err := env.billing.HandleInternalWebhook(ctx, payload, signature)
	if err != nil {
		t.Fatalf("HandleInternalWebhook: %v", err)
	}
	if !result.Received || result.Ignored {
		t.Fatalf("result = %+v, want received", result)
	}
	if result.Activation == nil || result.Activation.Subscription == nil {
		t.Fatal("webhook did not activate the subscription")
	}

	if _, err := env.billing.HandleInternalWebhook(ctx, payload, "bad-signature"); !errors.Is(err, integrity.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	unknown := []byte(`{"paymentAttemptId":"999999999999999999","result":"success"}`)
	unknownSig, err := integrity.SignPayload(unknown, "whsec_internal")
	if err != nil {
		t.Fatalf("SignPayload: %v", err)
	}
	ignored, err := env.billing.HandleInternalWebhook(ctx, unknown, unknownSig)
	if err != nil {
		t.Fatalf("unknown attempt: %v", err)
	}
	if !ignored.Ignored {
		t.Fatal("unknown attempt not ignored")
	}
}

func TestGetActiveSubscription(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, 33)
	orgID := env.node.Generate()

	if _, err := env.billing.GetActiveSubscription(ctx, orgID); !errors.Is(err, billingdomain.ErrSubscriptionNotFound) {
		t.Fatalf("err = %v, want ErrSubscriptionNotFound", err)
	}

	resp := env.checkout(t, orgID, "BUSINESS", "ANNUAL", "key-1")
	if _, err := env.billing.ActivatePayment(ctx, billingdomain.ActivateRequest{AttemptID: resp.Attempt.ID}); err != nil {
		t.Fatalf("activation: %v", err)
	}

	subscription, err := env.billing.GetActiveSubscription(ctx, orgID)
	if err != nil {
		t.Fatalf("GetActiveSubscription: %v", err)
	}
	if subscription.PlanType != "BUSINESS" {
		t.Fatalf("plan = %s, want BUSINESS", subscription.PlanType)
	}
	if subscription.AmountCents != 214_920 {
		t.Fatalf("amount = %d, want 214920 (annual business)", subscription.AmountCents)
	}
	if subscription.Metadata.BillingTerm != "ANNUAL" || subscription.Metadata.DurationDays != 365 {
		t.Fatalf("metadata = %+v, want ANNUAL/365", subscription.Metadata)
	}
}
