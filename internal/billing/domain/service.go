package domain

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/bwmarrin/snowflake"
)

// CreateCheckoutRequest opens (or replays) a self-serve checkout for an
// organization.
type CreateCheckoutRequest struct {
	OrganizationID snowflake.ID
	PlanType       string
	BillingTerm    string
	// AmountCents is honored only for plans without a list price; self-serve
	// plans must match the computed charge.
	AmountCents    int64
	DurationDays   int
	IdempotencyKey string
	CustomerEmail  string
	CustomerName   string
}

// CheckoutResponse is the checkout result handed back to the caller.
type CheckoutResponse struct {
	RedirectURL string
	Invoice     *Invoice
	Attempt     *PaymentAttempt
	// Idempotent is true when an existing attempt was replayed and no new
	// gateway session was created.
	Idempotent bool
}

// MockCallbackRequest simulates a gateway result for one attempt.
type MockCallbackRequest struct {
	AttemptID snowflake.ID
	// Result is "success" or "failure".
	Result string
}

// MockCallbackResponse reports the state after a simulated gateway result.
type MockCallbackResponse struct {
	Attempt      *PaymentAttempt
	Invoice      *Invoice
	Subscription *Subscription
}

// ProvisionEnterpriseRequest provisions a negotiated enterprise plan through
// the mock gateway with an immediate simulated success.
type ProvisionEnterpriseRequest struct {
	OrganizationID snowflake.ID
	AmountCents    int64
	DurationDays   int
	IdempotencyKey string
	CustomerEmail  string
	CustomerName   string
}

// ActivateRequest promotes a confirmed-success attempt into a subscription.
type ActivateRequest struct {
	AttemptID snowflake.ID
	// Observed* carry the gateway's own report of what was paid; zero/empty
	// when the gateway did not report them.
	ObservedAmountCents int64
	ObservedCurrency    string
	GatewayPaymentID    string
	RawPayload          []byte
}

// ActivationResult reports an activation, including idempotent replays.
type ActivationResult struct {
	// Idempotent is true when the attempt was already terminal and no writes
	// happened.
	Idempotent bool
	// Replayed is true when the attempt had already succeeded; the existing
	// subscription is returned.
	Replayed     bool
	Attempt      *PaymentAttempt
	Invoice      *Invoice
	Subscription *Subscription
}

// FailRequest transitions a pending attempt to a terminal failure state and
// voids its invoice.
type FailRequest struct {
	AttemptID snowflake.ID
	// Status is FAILED (default) or CANCELED.
	Status           AttemptStatus
	Reason           string
	GatewayPaymentID string
	RawPayload       []byte
}

// FailResult reports a failure transition, including idempotent replays.
type FailResult struct {
	Idempotent bool
	Attempt    *PaymentAttempt
	Invoice    *Invoice
}

// WebhookResult is the acknowledgement returned to webhook/callback callers.
type WebhookResult struct {
	Received  bool
	Ignored   bool
	EventType string
	// RedirectURL is set for browser-redirect callbacks that expect a 302.
	RedirectURL string
	Activation  *ActivationResult
	Failure     *FailResult
}

// SSLCommerzCallbackRequest carries one browser callback from SSLCommerz.
type SSLCommerzCallbackRequest struct {
	// Kind is "success", "fail" or "cancel".
	Kind   string
	Values url.Values
}

type Service interface {
	// CreateCheckout runs the self-serve checkout flow for BASIC/PRO/BUSINESS.
	CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*CheckoutResponse, error)
	// ProvisionEnterprise creates and immediately activates an enterprise
	// purchase through the mock gateway.
	ProvisionEnterprise(ctx context.Context, req ProvisionEnterpriseRequest) (*MockCallbackResponse, error)
	// ProcessMockCallback applies a simulated gateway result.
	ProcessMockCallback(ctx context.Context, req MockCallbackRequest) (*MockCallbackResponse, error)
	// HandleStripeWebhook verifies and dispatches one Stripe event.
	HandleStripeWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookResult, error)
	// HandleSSLCommerzCallback validates and dispatches one SSLCommerz
	// browser callback, returning the status-page redirect.
	HandleSSLCommerzCallback(ctx context.Context, req SSLCommerzCallbackRequest) (*WebhookResult, error)
	// HandleInternalWebhook verifies the X-Webhook-Signature header and
	// dispatches a normalized internal payment event.
	HandleInternalWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
	// ActivatePayment promotes a confirmed-success attempt, exactly once.
	ActivatePayment(ctx context.Context, req ActivateRequest) (*ActivationResult, error)
	// FailPayment transitions a pending attempt to FAILED or CANCELED.
	FailPayment(ctx context.Context, req FailRequest) (*FailResult, error)
	// GetActiveSubscription returns the organization's ACTIVE subscription.
	GetActiveSubscription(ctx context.Context, organizationID snowflake.ID) (*Subscription, error)
}

var (
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrPlanNotSelfServe     = errors.New("plan_not_self_serve")
	ErrInvalidBillingTerm   = errors.New("invalid_billing_term")
	ErrIdempotencyConflict  = errors.New("idempotency_conflict")
	ErrIntegrityViolation   = errors.New("integrity_violation")
	ErrProviderMismatch     = errors.New("provider_mismatch")
	ErrAmountValidation     = errors.New("amount_validation_failed")
	ErrAttemptNotFound      = errors.New("payment_attempt_not_found")
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrAccountNotFound      = errors.New("billing_account_not_found")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidMockResult    = errors.New("invalid_mock_result")
	ErrGatewayConfiguration = errors.New("gateway_configuration_error")
)
