package gateway

import (
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dirhublabs/dirhub/internal/config"
	"github.com/dirhublabs/dirhub/internal/gateway/adapters"
	"github.com/dirhublabs/dirhub/internal/gateway/domain"
)

// Selector resolves the adapter used for new checkouts and builds adapters
// for specific providers when a webhook or callback names one.
type Selector struct {
	log      *zap.Logger
	cfg      config.Config
	registry *adapters.Registry
}

type SelectorParam struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Registry *adapters.Registry
}

func NewSelector(p SelectorParam) *Selector {
	return &Selector{
		log:      p.Log.Named("gateway.selector"),
		cfg:      p.Cfg,
		registry: p.Registry,
	}
}

// Active returns the adapter new checkouts are routed through. Mock mode
// always wins; in live mode Stripe is preferred when configured, then
// SSLCommerz, and the mock gateway is the fallback so development
// environments keep working without credentials.
func (s *Selector) Active() (domain.Adapter, error) {
	if s.cfg.PaymentMode != config.PaymentModeLive {
		return s.AdapterFor(domain.ProviderMock)
	}
	if s.stripeConfigured() {
		return s.AdapterFor(domain.ProviderStripe)
	}
	if s.sslcommerzConfigured() {
		return s.AdapterFor(domain.ProviderSSLCommerz)
	}
	s.log.Warn("live payment mode without gateway credentials, using mock gateway")
	return s.AdapterFor(domain.ProviderMock)
}

// AdapterFor builds an adapter for a named provider from the process
// configuration.
func (s *Selector) AdapterFor(provider string) (domain.Adapter, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	return s.registry.NewAdapter(provider, domain.AdapterConfig{
		Provider: provider,
		Config:   s.configFor(provider),
	})
}

func (s *Selector) ProviderExists(provider string) bool {
	return s.registry.ProviderExists(provider)
}

func (s *Selector) stripeConfigured() bool {
	return s.cfg.StripeSecretKey != ""
}

func (s *Selector) sslcommerzConfigured() bool {
	return s.cfg.SSLCommerzStoreID != "" && s.cfg.SSLCommerzStorePassword != ""
}

func (s *Selector) configFor(provider string) map[string]any {
	switch provider {
	case domain.ProviderStripe:
		return map[string]any{
			"api_key":        s.cfg.StripeSecretKey,
			"webhook_secret": s.cfg.StripeWebhookSecret,
			"frontend_url":   s.cfg.FrontendURL,
		}
	case domain.ProviderSSLCommerz:
		return map[string]any{
			"store_id":       s.cfg.SSLCommerzStoreID,
			"store_password": s.cfg.SSLCommerzStorePassword,
			"sandbox":        s.cfg.SSLCommerzSandbox,
			"base_url":       s.cfg.SSLCommerzBaseURL,
			"app_url":        s.cfg.AppURL,
			"frontend_url":   s.cfg.FrontendURL,
		}
	case domain.ProviderMock:
		return map[string]any{
			"app_url": s.cfg.AppURL,
		}
	default:
		return map[string]any{}
	}
}
