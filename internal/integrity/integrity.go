// Package integrity computes and checks the tamper-evidence hashes guarding
// stored invoices and inbound webhook payloads.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dirhublabs/dirhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrSecretRequired   = errors.New("webhook_secret_required")
)

// InvoiceFields are the purchase-defining fields covered by the invoice
// integrity hash: the billed columns plus the term and duration the
// activation will provision from. Mutating any of them, in the columns or in
// the stored metadata, invalidates the digest.
type InvoiceFields struct {
	OrganizationID string `json:"organization_id"`
	PlanType       string `json:"plan_type"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	BillingTerm    string `json:"billing_term"`
	DurationDays   int    `json:"duration_days"`
}

// Canonicalize renders a value as deterministic JSON. Round-tripping through
// a generic value makes encoding/json emit object keys in sorted order, so
// the digest is independent of field order in the input.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// ComputeInvoiceIntegrity returns the sha256 hex digest of the canonicalized
// invoice fields.
func ComputeInvoiceIntegrity(fields InvoiceFields) (string, error) {
	canonical, err := Canonicalize(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateInvoiceIntegrity recomputes the digest and compares it against the
// stored one. A mismatch signals tampering or corruption; it is never
// auto-corrected.
func ValidateInvoiceIntegrity(fields InvoiceFields, storedHash string) bool {
	computed, err := ComputeInvoiceIntegrity(fields)
	if err != nil {
		return false
	}
	stored := strings.ToLower(strings.TrimSpace(storedHash))
	if len(stored) != len(computed) {
		return false
	}
	return hmac.Equal([]byte(stored), []byte(computed))
}

// SignPayload returns the HMAC-SHA256 hex signature of the canonicalized
// payload.
func SignPayload(payload []byte, secret string) (string, error) {
	canonical, err := canonicalizeRaw(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verification reports the outcome of a webhook signature check.
type Verification struct {
	Valid bool
	// Placeholder is true only when no secret is configured in a development
	// environment and verification was bypassed. It must never be true in
	// production.
	Placeholder bool
}

// Guard verifies webhook signatures against the configured secret.
type Guard struct {
	log     *zap.Logger
	secret  string
	devMode bool
}

type GuardParam struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

var Module = fx.Provide(NewGuard)

func NewGuard(p GuardParam) *Guard {
	return &Guard{
		log:     p.Log.Named("integrity.guard"),
		secret:  strings.TrimSpace(p.Cfg.PaymentWebhookSecret),
		devMode: p.Cfg.IsDevelopment(),
	}
}

// VerifyWebhookSignature checks the signature of a raw webhook payload.
// The comparison is constant-time after an equal-length check. A missing
// secret bypasses verification only in development; elsewhere it is a
// configuration error.
func (g *Guard) VerifyWebhookSignature(payload []byte, signature string) (Verification, error) {
	if g.secret == "" {
		if !g.devMode {
			return Verification{}, ErrSecretRequired
		}
		g.log.Warn("webhook signature verification bypassed: no secret configured")
		return Verification{Valid: true, Placeholder: true}, nil
	}

	expected, err := SignPayload(payload, g.secret)
	if err != nil {
		return Verification{}, err
	}

	provided := strings.ToLower(strings.TrimSpace(signature))
	if len(provided) != len(expected) {
		return Verification{}, ErrInvalidSignature
	}
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return Verification{}, ErrInvalidSignature
	}
	return Verification{Valid: true}, nil
}

func canonicalizeRaw(payload []byte) ([]byte, error) {
	var generic any
	if err := json.Unmarshal(payload, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
