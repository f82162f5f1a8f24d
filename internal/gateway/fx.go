package gateway

import (
	"go.uber.org/fx"

	"github.com/dirhublabs/dirhub/internal/gateway/adapters"
	"github.com/dirhublabs/dirhub/internal/gateway/adapters/mock"
	"github.com/dirhublabs/dirhub/internal/gateway/adapters/sslcommerz"
	"github.com/dirhublabs/dirhub/internal/gateway/adapters/stripe"
)

var Module = fx.Module("gateway",
	fx.Provide(NewRegistry),
	fx.Provide(NewSelector),
)

func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		mock.NewFactory(),
		stripe.NewFactory(),
		sslcommerz.NewFactory(),
	)
}
