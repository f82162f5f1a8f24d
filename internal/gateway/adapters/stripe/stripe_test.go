package stripe_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dirhublabs/dirhub/internal/gateway/adapters/stripe"
	"github.com/dirhublabs/dirhub/internal/gateway/domain"
)

const webhookSecret = "whsec_test_secret"

func newAdapter(t *testing.T) domain.Adapter {
	t.Helper()
	adapter, err := stripe.NewFactory().NewAdapter(domain.AdapterConfig{
		Config: map[string]any{
			"api_key":        "sk_test_dummy",
			"webhook_secret": webhookSecret,
			"frontend_url":   "http://front.test/",
		},
	})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return adapter
}

func signedHeader(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, sessionJSON string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":%s}}`, eventType, sessionJSON))
}

func headersFor(payload []byte) http.Header {
	headers := http.Header{}
	headers.Set("Stripe-Signature", signedHeader(payload, webhookSecret))
	return headers
}

func TestParseWebhookCompletedPaidSession(t *testing.T) {
	adapter := newAdapter(t).(domain.WebhookAdapter)

	payload := eventPayload("checkout.session.completed", `{
		"id": "cs_test_1",
		"object": "checkout.session",
		"payment_status": "paid",
		"amount_total": 7900,
		"currency": "usd",
		"payment_intent": "pi_test_1",
		"metadata": {"payment_attempt_id": "123456789"}
	}`)

	outcome, err := adapter.ParseWebhook(context.Background(), payload, headersFor(payload))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if outcome.Kind != domain.OutcomeSuccess {
		t.Fatalf("kind = %s, want success", outcome.Kind)
	}
	if outcome.AttemptID != "123456789" {
		t.Fatalf("attempt id = %q", outcome.AttemptID)
	}
	if outcome.GatewayPaymentID != "pi_test_1" {
		t.Fatalf("gateway payment id = %q, want payment intent", outcome.GatewayPaymentID)
	}
	if outcome.AmountCents != 7900 || outcome.Currency != "USD" {
		t.Fatalf("amount = %d %s, want 7900 USD", outcome.AmountCents, outcome.Currency)
	}
}

func TestParseWebhookUnpaidCompletionIgnored(t *testing.T) {
	adapter := newAdapter(t).(domain.WebhookAdapter)

	payload := eventPayload("checkout.session.completed", `{
		"id": "cs_test_2",
		"object": "checkout.session",
		"payment_status": "unpaid",
		"metadata": {"payment_attempt_id": "123456789"}
	}`)

	if _, err := adapter.ParseWebhook(context.Background(), payload, headersFor(payload)); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("err = %v, want ErrEventIgnored", err)
	}
}

func TestParseWebhookFailureAndExpiry(t *testing.T) {
	adapter := newAdapter(t).(domain.WebhookAdapter)

	cases := []struct {
		eventType string
		wantKind  domain.OutcomeKind
	}{
		{"checkout.session.async_payment_failed", domain.OutcomeFailed},
		{"checkout.session.expired", domain.OutcomeCanceled},
	}
	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			payload := eventPayload(tc.eventType, `{
				"id": "cs_test_3",
				"object": "checkout.session",
				"metadata": {"payment_attempt_id": "42"}
			}`)

			outcome, err := adapter.ParseWebhook(context.Background(), payload, headersFor(payload))
			if err != nil {
				t.Fatalf("ParseWebhook: %v", err)
			}
			if outcome.Kind != tc.wantKind {
				t.Fatalf("kind = %s, want %s", outcome.Kind, tc.wantKind)
			}
			if outcome.Reason == "" {
				t.Fatal("terminal outcome carries no reason")
			}
		})
	}
}

func TestParseWebhookForeignSessionIgnored(t *testing.T) {
	adapter := newAdapter(t).(domain.WebhookAdapter)

	// No payment_attempt_id metadata: a checkout this system never created.
	payload := eventPayload("checkout.session.completed", `{
		"id": "cs_test_4",
		"object": "checkout.session",
		"payment_status": "paid",
		"metadata": {}
	}`)

	if _, err := adapter.ParseWebhook(context.Background(), payload, headersFor(payload)); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("err = %v, want ErrEventIgnored", err)
	}
}

func TestParseWebhookUnknownEventTypeIgnored(t *testing.T) {
	adapter := newAdapter(t).(domain.WebhookAdapter)

	payload := eventPayload("invoice.paid", `{"id": "in_test_1"}`)
	if _, err := adapter.ParseWebhook(context.Background(), payload, headersFor(payload)); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("err = %v, want ErrEventIgnored", err)
	}
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	adapter := newAdapter(t).(domain.WebhookAdapter)

	payload := eventPayload("checkout.session.completed", `{
		"id": "cs_test_5",
		"object": "checkout.session",
		"payment_status": "paid",
		"metadata": {"payment_attempt_id": "42"}
	}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signedHeader(payload, "whsec_wrong_secret"))
	if _, err := adapter.ParseWebhook(context.Background(), payload, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("wrong secret err = %v, want ErrInvalidSignature", err)
	}

	if _, err := adapter.ParseWebhook(context.Background(), payload, http.Header{}); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("missing header err = %v, want ErrInvalidSignature", err)
	}
}

func TestNewAdapterValidatesConfig(t *testing.T) {
	factory := stripe.NewFactory()

	_, err := factory.NewAdapter(domain.AdapterConfig{Config: map[string]any{"frontend_url": "http://front.test"}})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("missing api key err = %v, want ErrInvalidConfig", err)
	}

	_, err = factory.NewAdapter(domain.AdapterConfig{Config: map[string]any{"api_key": "sk_test_dummy"}})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("missing frontend url err = %v, want ErrInvalidConfig", err)
	}
}
