package organization

import (
	"go.uber.org/fx"

	"github.com/dirhublabs/dirhub/internal/organization/repository"
	"github.com/dirhublabs/dirhub/internal/organization/service"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
