// Package mock implements the in-process gateway used when no live payment
// provider is configured and for system-initiated enterprise provisioning.
package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/dirhublabs/dirhub/internal/gateway/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return domain.ProviderMock
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	appURL, _ := cfg.Config["app_url"].(string)
	appURL = strings.TrimRight(strings.TrimSpace(appURL), "/")
	if appURL == "" {
		return nil, domain.ErrInvalidConfig
	}
	return &Adapter{appURL: appURL}, nil
}

// Adapter simulates a redirect checkout without network I/O. The redirect
// points at an app-served page that posts the mock callback.
type Adapter struct {
	appURL string
}

func (a *Adapter) Provider() string {
	return domain.ProviderMock
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	_ = ctx
	sessionID := fmt.Sprintf("mock_sess_%s", req.AttemptID.String())
	return &domain.CheckoutSession{
		Provider:    domain.ProviderMock,
		RedirectURL: fmt.Sprintf("%s/billing/mock/checkout?attempt=%s", a.appURL, req.AttemptID.String()),
		SessionID:   sessionID,
		PaymentID:   sessionID,
	}, nil
}
