package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanPrice is the self-serve monthly list price for one plan.
type PlanPrice struct {
	Plan              string `mapstructure:"plan"`
	MonthlyPriceCents int64  `mapstructure:"monthlyPriceCents"`
}

// PricingConfig carries the self-serve plan price table.
type PricingConfig struct {
	Currency string      `mapstructure:"currency"`
	Plans    []PlanPrice `mapstructure:"plans"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency: "USD",
		Plans: []PlanPrice{
			{Plan: "BASIC", MonthlyPriceCents: 2_900},
			{Plan: "PRO", MonthlyPriceCents: 7_900},
			{Plan: "BUSINESS", MonthlyPriceCents: 19_900},
		},
	}
}

// PricingConfigHolder serves the current price table and hot-reloads it when
// the backing file changes.
type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dirhub/config") // Volume-mounted config
	v.AddConfigPath("/etc/dirhub")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("DIRHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultPricingConfig()
		v.SetDefault("pricing.currency", defaults.Currency)
		v.SetDefault("pricing.plans", defaults.Plans)
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

// MonthlyPriceCents returns the list price for a plan, or false when the plan
// is not in the self-serve table.
func (c PricingConfig) MonthlyPriceCents(plan string) (int64, bool) {
	plan = strings.ToUpper(strings.TrimSpace(plan))
	for _, p := range c.Plans {
		if strings.ToUpper(strings.TrimSpace(p.Plan)) == plan {
			return p.MonthlyPriceCents, true
		}
	}
	return 0, false
}

func validatePricingConfig(cfg PricingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("pricing.currency cannot be empty")
	}
	if len(cfg.Plans) == 0 {
		return errors.New("pricing.plans cannot be empty")
	}
	for _, p := range cfg.Plans {
		if p.MonthlyPriceCents <= 0 {
			return errors.New("pricing.plans prices must be positive")
		}
	}
	return nil
}
