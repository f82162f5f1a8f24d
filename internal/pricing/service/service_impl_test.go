package service

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/dirhublabs/dirhub/internal/config"
	pricingdomain "github.com/dirhublabs/dirhub/internal/pricing/domain"
)

func newTestService(t *testing.T) pricingdomain.Service {
	t.Helper()
	holder, err := config.NewPricingConfigHolder()
	if err != nil {
		t.Fatalf("pricing config holder: %v", err)
	}
	return NewService(ServiceParam{Log: zap.NewNop(), Prices: holder})
}

func TestResolveBillingTerm(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		name         string
		explicit     string
		durationDays int
		want         pricingdomain.BillingTerm
	}{
		{name: "explicit annual wins", explicit: "ANNUAL", durationDays: 30, want: pricingdomain.TermAnnual},
		{name: "explicit monthly wins", explicit: "monthly", durationDays: 400, want: pricingdomain.TermMonthly},
		{name: "long duration infers annual", durationDays: 365, want: pricingdomain.TermAnnual},
		{name: "boundary 300 infers annual", durationDays: 300, want: pricingdomain.TermAnnual},
		{name: "month-length infers monthly", durationDays: 30, want: pricingdomain.TermMonthly},
		{name: "boundary 20 infers monthly", durationDays: 20, want: pricingdomain.TermMonthly},
		{name: "short duration defaults monthly", durationDays: 7, want: pricingdomain.TermMonthly},
		{name: "zero duration defaults monthly", want: pricingdomain.TermMonthly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.ResolveBillingTerm(tc.explicit, tc.durationDays)
			if got != tc.want {
				t.Fatalf("ResolveBillingTerm(%q, %d) = %s, want %s", tc.explicit, tc.durationDays, got, tc.want)
			}
		})
	}
}

func TestResolveChargeSelfServe(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		name string
		plan pricingdomain.PlanType
		term pricingdomain.BillingTerm
		want int64
	}{
		{name: "basic monthly", plan: pricingdomain.PlanBasic, term: pricingdomain.TermMonthly, want: 2_900},
		{name: "pro monthly", plan: pricingdomain.PlanPro, term: pricingdomain.TermMonthly, want: 7_900},
		{name: "business monthly", plan: pricingdomain.PlanBusiness, term: pricingdomain.TermMonthly, want: 19_900},
		{name: "basic annual discounted", plan: pricingdomain.PlanBasic, term: pricingdomain.TermAnnual, want: 31_320},
		{name: "business annual discounted", plan: pricingdomain.PlanBusiness, term: pricingdomain.TermAnnual, want: 214_920},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			charge, err := svc.ResolveCharge(pricingdomain.ResolveChargeRequest{
				PlanType:    tc.plan,
				BillingTerm: tc.term,
			})
			if err != nil {
				t.Fatalf("ResolveCharge: %v", err)
			}
			if charge.AmountCents != tc.want {
				t.Fatalf("amount = %d, want %d", charge.AmountCents, tc.want)
			}
			if charge.Currency != "USD" {
				t.Fatalf("currency = %s, want USD", charge.Currency)
			}
		})
	}
}

func TestResolveChargeRejectsFreePlan(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ResolveCharge(pricingdomain.ResolveChargeRequest{
		PlanType:    pricingdomain.PlanFree,
		BillingTerm: pricingdomain.TermMonthly,
	})
	if !errors.Is(err, pricingdomain.ErrInvalidPlan) {
		t.Fatalf("err = %v, want ErrInvalidPlan", err)
	}
}

func TestResolveChargeAmountMismatch(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ResolveCharge(pricingdomain.ResolveChargeRequest{
		PlanType:             pricingdomain.PlanPro,
		BillingTerm:          pricingdomain.TermMonthly,
		RequestedAmountCents: 100,
	})
	if !errors.Is(err, pricingdomain.ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}
}

func TestResolveChargeEnterprise(t *testing.T) {
	svc := newTestService(t)

	t.Run("requires an amount", func(t *testing.T) {
		_, err := svc.ResolveCharge(pricingdomain.ResolveChargeRequest{
			PlanType:    pricingdomain.PlanEnterprise,
			BillingTerm: pricingdomain.TermAnnual,
		})
		if !errors.Is(err, pricingdomain.ErrMissingAmount) {
			t.Fatalf("err = %v, want ErrMissingAmount", err)
		}
	})

	t.Run("honors a negotiated amount", func(t *testing.T) {
		charge, err := svc.ResolveCharge(pricingdomain.ResolveChargeRequest{
			PlanType:             pricingdomain.PlanEnterprise,
			BillingTerm:          pricingdomain.TermAnnual,
			RequestedAmountCents: 1_250_000,
		})
		if err != nil {
			t.Fatalf("ResolveCharge: %v", err)
		}
		if charge.AmountCents != 1_250_000 {
			t.Fatalf("amount = %d, want 1250000", charge.AmountCents)
		}
	})
}

func TestDurationDays(t *testing.T) {
	svc := newTestService(t)

	if got := svc.DurationDays(pricingdomain.TermAnnual); got != 365 {
		t.Fatalf("annual duration = %d, want 365", got)
	}
	if got := svc.DurationDays(pricingdomain.TermMonthly); got != 30 {
		t.Fatalf("monthly duration = %d, want 30", got)
	}
}
