package service

import (
	"math"

	"github.com/dirhublabs/dirhub/internal/config"
	pricingdomain "github.com/dirhublabs/dirhub/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const annualDiscount = 0.9

type Service struct {
	log    *zap.Logger
	prices *config.PricingConfigHolder
}

type ServiceParam struct {
	fx.In

	Log    *zap.Logger
	Prices *config.PricingConfigHolder
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		log:    p.Log.Named("pricing.service"),
		prices: p.Prices,
	}
}

// ResolveBillingTerm implements domain.Service.
func (s *Service) ResolveBillingTerm(explicit string, durationDays int) pricingdomain.BillingTerm {
	if term, ok := pricingdomain.ParseBillingTerm(explicit); ok {
		return term
	}
	switch {
	case durationDays >= 300:
		return pricingdomain.TermAnnual
	case durationDays >= 20:
		return pricingdomain.TermMonthly
	default:
		return pricingdomain.TermMonthly
	}
}

// ResolveCharge implements domain.Service.
//
// Self-serve plans are priced from the plan table; the caller may not pick
// its own amount. Plans outside the table (ENTERPRISE) carry a negotiated
// amount which must be supplied.
func (s *Service) ResolveCharge(req pricingdomain.ResolveChargeRequest) (pricingdomain.Charge, error) {
	if req.PlanType == pricingdomain.PlanFree {
		return pricingdomain.Charge{}, pricingdomain.ErrInvalidPlan
	}

	table := s.prices.Get()

	monthly, listed := table.MonthlyPriceCents(string(req.PlanType))
	if !listed {
		if req.RequestedAmountCents <= 0 {
			return pricingdomain.Charge{}, pricingdomain.ErrMissingAmount
		}
		amount := req.RequestedAmountCents
		if amount < 1 {
			amount = 1
		}
		return pricingdomain.Charge{AmountCents: amount, Currency: table.Currency}, nil
	}

	amount := monthly
	if req.BillingTerm == pricingdomain.TermAnnual {
		amount = int64(math.Round(float64(monthly) * 12 * annualDiscount))
	}

	if req.RequestedAmountCents > 0 && req.RequestedAmountCents != amount {
		s.log.Warn("checkout amount disagrees with plan table",
			zap.String("plan", string(req.PlanType)),
			zap.String("term", string(req.BillingTerm)),
			zap.Int64("requested", req.RequestedAmountCents),
			zap.Int64("computed", amount),
		)
		return pricingdomain.Charge{}, pricingdomain.ErrAmountMismatch
	}

	return pricingdomain.Charge{AmountCents: amount, Currency: table.Currency}, nil
}

// DurationDays implements domain.Service.
func (s *Service) DurationDays(term pricingdomain.BillingTerm) int {
	if term == pricingdomain.TermAnnual {
		return 365
	}
	return 30
}
