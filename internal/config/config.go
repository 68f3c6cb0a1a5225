package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nurpe/bidworks/internal/model"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

// PlanPolicy is the per-tier visibility and quota policy. RadiusKm <= 0
// means unbounded radius.
type PlanPolicy struct {
	RadiusKm         float64
	AccessDelayHours int
	LeadsLimit       int
}

type PaymentsConfig struct {
	// DepositFraction of the accepted bid amount becomes the deposit
	// obligation; the rest is the completion obligation.
	DepositFraction float64
	AccessToken     string
	MockGateway     bool
	// WebhookSecret, when set, must accompany gateway callbacks in the
	// X-Webhook-Secret header.
	WebhookSecret string
}

type SweepConfig struct {
	CycleResetInterval time.Duration
	ReconcileInterval  time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Plans       map[model.MembershipTier]PlanPolicy
	Payments    PaymentsConfig
	Sweeps      SweepConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Plans: map[model.MembershipTier]PlanPolicy{
			model.TierBasic:    planPolicy(v, "BASIC", PlanPolicy{RadiusKm: 25, AccessDelayHours: 24, LeadsLimit: 10}),
			model.TierStandard: planPolicy(v, "STANDARD", PlanPolicy{RadiusKm: 75, AccessDelayHours: 6, LeadsLimit: 30}),
			model.TierPremium:  planPolicy(v, "PREMIUM", PlanPolicy{RadiusKm: 0, AccessDelayHours: 0, LeadsLimit: 100}),
		},
		Payments: PaymentsConfig{
			DepositFraction: v.GetFloat64("PAYMENT_DEPOSIT_FRACTION"),
			AccessToken:     v.GetString("MERCADOPAGO_ACCESS_TOKEN"),
			MockGateway:     v.GetBool("PAYMENT_GATEWAY_MOCK"),
			WebhookSecret:   v.GetString("PAYMENT_WEBHOOK_SECRET"),
		},
		Sweeps: SweepConfig{
			CycleResetInterval: v.GetDuration("SWEEP_CYCLE_RESET_INTERVAL"),
			ReconcileInterval:  v.GetDuration("SWEEP_RECONCILE_INTERVAL"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Payments.DepositFraction == 0 {
		cfg.Payments.DepositFraction = 0.2
	}
	if cfg.Sweeps.CycleResetInterval == 0 {
		cfg.Sweeps.CycleResetInterval = time.Hour
	}
	if cfg.Sweeps.ReconcileInterval == 0 {
		cfg.Sweeps.ReconcileInterval = 15 * time.Minute
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// planPolicy reads one tier's policy, falling back to defaults per key so a
// deployment can override a single attribute.
func planPolicy(v *viper.Viper, tier string, def PlanPolicy) PlanPolicy {
	policy := def
	if key := "PLAN_" + tier + "_RADIUS_KM"; v.IsSet(key) {
		policy.RadiusKm = v.GetFloat64(key)
	}
	if key := "PLAN_" + tier + "_ACCESS_DELAY_HOURS"; v.IsSet(key) {
		policy.AccessDelayHours = v.GetInt(key)
	}
	if key := "PLAN_" + tier + "_LEADS_LIMIT"; v.IsSet(key) {
		policy.LeadsLimit = v.GetInt(key)
	}
	return policy
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Payments.DepositFraction <= 0 || cfg.Payments.DepositFraction >= 1 {
		return fmt.Errorf("PAYMENT_DEPOSIT_FRACTION must be between 0 and 1")
	}
	for tier, policy := range cfg.Plans {
		if policy.LeadsLimit <= 0 {
			return fmt.Errorf("leads limit for %s must be positive", strings.ToLower(string(tier)))
		}
		if policy.AccessDelayHours < 0 {
			return fmt.Errorf("access delay for %s must not be negative", strings.ToLower(string(tier)))
		}
	}
	return nil
}
