package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
	"github.com/dirhublabs/dirhub/internal/config"
	orgdomain "github.com/dirhublabs/dirhub/internal/organization/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "sqlite" {
			// Embedded migrations target server databases; the sqlite dev
			// path builds its schema from the models directly.
			return conn.AutoMigrate(
				&billingdomain.BillingAccount{},
				&billingdomain.Invoice{},
				&billingdomain.PaymentAttempt{},
				&billingdomain.Subscription{},
				&billingdomain.TrialSession{},
				&orgdomain.OrganizationPlan{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB, cfg.DBType)
	}),
)
