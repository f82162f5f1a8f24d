package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/dirhublabs/dirhub/internal/billing/domain"
	"github.com/dirhublabs/dirhub/internal/clock"
	"github.com/dirhublabs/dirhub/internal/config"
	"github.com/dirhublabs/dirhub/internal/gateway"
	"github.com/dirhublabs/dirhub/internal/integrity"
	orgdomain "github.com/dirhublabs/dirhub/internal/organization/domain"
	pricingdomain "github.com/dirhublabs/dirhub/internal/pricing/domain"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       billingdomain.Repository
	PricingSvc pricingdomain.Service
	Guard      *integrity.Guard
	Gateways   *gateway.Selector
	OrgSvc     orgdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	genID      *snowflake.Node
	clock      clock.Clock
	repo       billingdomain.Repository
	pricingSvc pricingdomain.Service
	guard      *integrity.Guard
	gateways   *gateway.Selector
	orgSvc     orgdomain.Service
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		cfg:        p.Cfg,
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		pricingSvc: p.PricingSvc,
		guard:      p.Guard,
		gateways:   p.Gateways,
		orgSvc:     p.OrgSvc,
	}
}

func (s *Service) GetActiveSubscription(ctx context.Context, organizationID snowflake.ID) (*billingdomain.Subscription, error) {
	return s.repo.FindActiveSubscription(ctx, s.db, organizationID)
}

// requestFields are the purchase-defining inputs covered by the idempotency
// request hash. Reusing a key with any of these changed is a conflict.
type requestFields struct {
	OrganizationID string `json:"organizationId"`
	PlanType       string `json:"planType"`
	BillingTerm    string `json:"billingTerm"`
	Provider       string `json:"provider"`
	AmountCents    int64  `json:"amountCents"`
	Currency       string `json:"currency"`
	DurationDays   int    `json:"durationDays"`
}

func computeRequestHash(fields requestFields) (string, error) {
	canonical, err := integrity.Canonicalize(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func newInvoiceNumber() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "INV-" + token[:12]
}

func integrityHashFor(organizationID, planType string, amountCents int64, currency, billingTerm string, durationDays int) (string, error) {
	return integrity.ComputeInvoiceIntegrity(integrity.InvoiceFields{
		OrganizationID: organizationID,
		PlanType:       planType,
		AmountCents:    amountCents,
		Currency:       currency,
		BillingTerm:    billingTerm,
		DurationDays:   durationDays,
	})
}
