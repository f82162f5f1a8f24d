// Package domain contains the organization plan record applied after a
// successful payment activation.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PlanStatus represents lifecycle states for an applied organization plan.
type PlanStatus string

const (
	PlanStatusActive     PlanStatus = "ACTIVE"
	PlanStatusSuperseded PlanStatus = "SUPERSEDED"
)

// OrganizationPlan is the applied entitlement on the organization record.
// Prior rows are superseded, never deleted, preserving plan history.
type OrganizationPlan struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrganizationID snowflake.ID `gorm:"not null;index"`
	PlanType       string       `gorm:"type:text;not null"`
	Status         PlanStatus   `gorm:"type:text;not null"`
	DurationDays   int          `gorm:"not null"`
	ExpiresAt      *time.Time   `gorm:""`
	AppliedAt      time.Time    `gorm:"not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrganizationPlan) TableName() string { return "organization_plans" }

// PlanChange describes the plan to apply to an organization.
type PlanChange struct {
	PlanType     string
	Status       PlanStatus
	DurationDays int
}

type Service interface {
	// ApplyPlan records the new plan on the organization, superseding any
	// prior active plan row.
	ApplyPlan(ctx context.Context, organizationID snowflake.ID, change PlanChange) (*OrganizationPlan, error)
	// CurrentPlan returns the organization's active plan row, if any.
	CurrentPlan(ctx context.Context, organizationID snowflake.ID) (*OrganizationPlan, error)
}

var (
	ErrInvalidPlanChange = errors.New("invalid_plan_change")
	ErrPlanNotFound      = errors.New("organization_plan_not_found")
)
