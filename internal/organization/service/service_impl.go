package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dirhublabs/dirhub/internal/clock"
	orgdomain "github.com/dirhublabs/dirhub/internal/organization/domain"
	"github.com/dirhublabs/dirhub/internal/organization/repository"
	pricingdomain "github.com/dirhublabs/dirhub/internal/pricing/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository
}

func NewService(p Params) orgdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ApplyPlan(ctx context.Context, organizationID snowflake.ID, change orgdomain.PlanChange) (*orgdomain.OrganizationPlan, error) {
	planType, ok := pricingdomain.ParsePlanType(change.PlanType)
	if !ok {
		return nil, orgdomain.ErrInvalidPlanChange
	}
	if change.Status == "" {
		change.Status = orgdomain.PlanStatusActive
	}
	if change.Status != orgdomain.PlanStatusActive {
		return nil, orgdomain.ErrInvalidPlanChange
	}
	if change.DurationDays <= 0 {
		return nil, orgdomain.ErrInvalidPlanChange
	}

	now := s.clock.Now()
	expiresAt := now.AddDate(0, 0, change.DurationDays)
	plan := &orgdomain.OrganizationPlan{
		ID:             s.genID.Generate(),
		OrganizationID: organizationID,
		PlanType:       string(planType),
		Status:         orgdomain.PlanStatusActive,
		DurationDays:   change.DurationDays,
		ExpiresAt:      &expiresAt,
		AppliedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, plan); err != nil {
			return err
		}
		superseded, err := s.repo.SupersedeActive(ctx, tx, organizationID, plan.ID, now)
		if err != nil {
			return err
		}
		if superseded > 0 {
			s.log.Info("organization plan superseded",
				zap.String("organization_id", organizationID.String()),
				zap.Int64("superseded", superseded),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization plan applied",
		zap.String("organization_id", organizationID.String()),
		zap.String("plan_type", strings.ToUpper(change.PlanType)),
		zap.Int("duration_days", change.DurationDays),
		zap.Time("expires_at", expiresAt.Truncate(time.Second)),
	)
	return plan, nil
}

func (s *Service) CurrentPlan(ctx context.Context, organizationID snowflake.ID) (*orgdomain.OrganizationPlan, error) {
	return s.repo.FindActive(ctx, s.db, organizationID)
}
