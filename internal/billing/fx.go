package billing

import (
	"go.uber.org/fx"

	"github.com/dirhublabs/dirhub/internal/billing/repository"
	"github.com/dirhublabs/dirhub/internal/billing/service"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
