package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	orgdomain "github.com/dirhublabs/dirhub/internal/organization/domain"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *orgdomain.OrganizationPlan) error
	FindActive(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*orgdomain.OrganizationPlan, error)
	SupersedeActive(ctx context.Context, db *gorm.DB, organizationID, exceptID snowflake.ID, now time.Time) (int64, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *orgdomain.OrganizationPlan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, organizationID snowflake.ID) (*orgdomain.OrganizationPlan, error) {
	var plan orgdomain.OrganizationPlan
	err := db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", organizationID, orgdomain.PlanStatusActive).
		Order("applied_at DESC").
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, orgdomain.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repo) SupersedeActive(ctx context.Context, db *gorm.DB, organizationID, exceptID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&orgdomain.OrganizationPlan{}).
		Where("organization_id = ? AND status = ? AND id <> ?", organizationID, orgdomain.PlanStatusActive, exceptID).
		Updates(map[string]any{
			"status":     orgdomain.PlanStatusSuperseded,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
