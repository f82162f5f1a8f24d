// Package stripe adapts Stripe Checkout Sessions and webhook events to the
// gateway abstraction.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dirhublabs/dirhub/internal/gateway/domain"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return domain.ProviderStripe
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	apiKey, _ := cfg.Config["api_key"].(string)
	apiKey = strings.TrimSpace(apiKey)
	webhookSecret, _ := cfg.Config["webhook_secret"].(string)
	webhookSecret = strings.TrimSpace(webhookSecret)
	frontendURL, _ := cfg.Config["frontend_url"].(string)
	frontendURL = strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	if apiKey == "" || frontendURL == "" {
		return nil, domain.ErrInvalidConfig
	}

	// Explicit per-adapter client; the package-global stripe.Key is never set.
	api := &client.API{}
	api.Init(apiKey, nil)

	return &Adapter{
		client:        api,
		webhookSecret: webhookSecret,
		frontendURL:   frontendURL,
	}, nil
}

type Adapter struct {
	client        *client.API
	webhookSecret string
	frontendURL   string
}

func (a *Adapter) Provider() string {
	return domain.ProviderStripe
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	attemptID := req.AttemptID.String()
	statusURL := fmt.Sprintf("%s/billing/status?status=%%s&attempt=%s", a.frontendURL, attemptID)

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("%s plan (%s)", req.PlanType, strings.ToLower(req.BillingTerm))
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode: stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				Quantity: stripeapi.Int64(1),
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(strings.ToLower(req.Currency)),
					UnitAmount: stripeapi.Int64(req.AmountCents),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(description),
					},
				},
			},
		},
		SuccessURL: stripeapi.String(fmt.Sprintf(statusURL, "success")),
		CancelURL:  stripeapi.String(fmt.Sprintf(statusURL, "canceled")),
		Metadata: map[string]string{
			"payment_attempt_id": attemptID,
			"invoice_id":         req.InvoiceID.String(),
			"organization_id":    req.OrganizationID.String(),
			"plan_type":          req.PlanType,
			"billing_term":       req.BillingTerm,
		},
	}
	params.Context = ctx
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripeapi.String(email)
	}

	sess, err := a.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}

	return &domain.CheckoutSession{
		Provider:    domain.ProviderStripe,
		RedirectURL: sess.URL,
		SessionID:   sess.ID,
		PaymentID:   sess.ID,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and normalizes checkout
// session events. Event types outside the checkout session family are
// ignored, as are sessions that carry no payment attempt metadata: they may
// belong to a checkout not managed by this system.
func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*domain.Outcome, error) {
	_ = ctx
	if a.webhookSecret == "" {
		return nil, domain.ErrInvalidConfig
	}

	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return nil, domain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, a.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}

	eventType := string(event.Type)
	var kind domain.OutcomeKind
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		kind = domain.OutcomeSuccess
	case "checkout.session.async_payment_failed":
		kind = domain.OutcomeFailed
	case "checkout.session.expired":
		kind = domain.OutcomeCanceled
	default:
		return nil, domain.ErrEventIgnored
	}

	var sess stripeapi.CheckoutSession
	if err := unmarshalSession(event, &sess); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	attemptID := strings.TrimSpace(sess.Metadata["payment_attempt_id"])
	if attemptID == "" {
		return nil, domain.ErrEventIgnored
	}

	// A completed session that is not yet paid (delayed payment methods)
	// will be followed by async_payment_succeeded; nothing to do yet.
	if kind == domain.OutcomeSuccess && sess.PaymentStatus != stripeapi.CheckoutSessionPaymentStatusPaid {
		return nil, domain.ErrEventIgnored
	}

	outcome := &domain.Outcome{
		Provider:         domain.ProviderStripe,
		Kind:             kind,
		AttemptID:        attemptID,
		GatewayPaymentID: sess.ID,
		EventType:        eventType,
		RawPayload:       payload,
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		outcome.GatewayPaymentID = sess.PaymentIntent.ID
	}
	if kind == domain.OutcomeSuccess {
		outcome.AmountCents = sess.AmountTotal
		outcome.Currency = strings.ToUpper(string(sess.Currency))
	}
	switch kind {
	case domain.OutcomeFailed:
		outcome.Reason = "Stripe async payment failed"
	case domain.OutcomeCanceled:
		outcome.Reason = "Stripe checkout session expired"
	}

	return outcome, nil
}

func unmarshalSession(event stripeapi.Event, sess *stripeapi.CheckoutSession) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return domain.ErrInvalidPayload
	}
	return json.Unmarshal(event.Data.Raw, sess)
}
