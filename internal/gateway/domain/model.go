// Package domain defines the payment gateway abstraction: checkout creation
// plus the normalized outcome parsed from each provider's callback shape.
package domain

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/bwmarrin/snowflake"
)

const (
	ProviderMock       = "mock"
	ProviderStripe     = "stripe"
	ProviderSSLCommerz = "sslcommerz"
)

// AdapterConfig carries provider credentials and URLs resolved from the
// process configuration.
type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

// CheckoutRequest asks a gateway to open a redirect checkout for one
// payment attempt.
type CheckoutRequest struct {
	AttemptID      snowflake.ID
	InvoiceID      snowflake.ID
	OrganizationID snowflake.ID
	PlanType       string
	BillingTerm    string
	AmountCents    int64
	Currency       string
	CustomerEmail  string
	CustomerName   string
	Description    string
}

// CheckoutSession is the gateway's answer: where to send the browser and
// which provider-side identifiers to persist.
type CheckoutSession struct {
	Provider    string
	RedirectURL string
	SessionID   string
	PaymentID   string
}

// OutcomeKind classifies a gateway-reported result.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeFailed   OutcomeKind = "failed"
	OutcomeCanceled OutcomeKind = "canceled"
)

// Outcome is the canonical result parsed from a provider callback or webhook.
type Outcome struct {
	Provider         string
	Kind             OutcomeKind
	AttemptID        string
	GatewayPaymentID string
	// AmountCents/Currency are the provider-observed values; zero/empty when
	// the provider did not report them.
	AmountCents int64
	Currency    string
	Reason      string
	EventType   string
	RawPayload  []byte
}

// CallbackValidation carries a browser-redirect callback for server-side
// confirmation before it is trusted.
type CallbackValidation struct {
	Kind                string
	Values              url.Values
	ExpectedTranID      string
	ExpectedAmountCents int64
	ExpectedCurrency    string
}

// Adapter creates checkouts with one provider.
type Adapter interface {
	Provider() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// WebhookAdapter additionally parses asynchronous webhook deliveries.
type WebhookAdapter interface {
	Adapter
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*Outcome, error)
}

// CallbackAdapter additionally validates browser-redirect callbacks against
// the provider's validation API.
type CallbackAdapter interface {
	Adapter
	ValidateCallback(ctx context.Context, req CallbackValidation) (*Outcome, error)
}

// AdapterFactory builds a provider adapter from resolved configuration.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_gateway_config")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrGatewayRejected  = errors.New("gateway_rejected")
)
