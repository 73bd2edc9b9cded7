// Package config carries the typed runtime configuration for the payment
// and contract subsystems. Plain string lookups stay in internal/pkg/env;
// everything with a type, a default, or a required flag lives here.
package config

import (
	"os"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// Payments configures webhook verification, the processing lease and the
// processor API client.
type Payments struct {
	Provider           string        `envconfig:"PAYMENT_PROVIDER" default:"stripe"`
	WebhookSecret      string        `envconfig:"PAYMENT_WEBHOOK_SECRET" required:"true"`
	SignatureTolerance time.Duration `envconfig:"PAYMENT_SIGNATURE_TOLERANCE" default:"5m"`
	LeaseTimeout       time.Duration `envconfig:"PAYMENT_LEASE_TIMEOUT" default:"5m"`
	APIBase            string        `envconfig:"PAYMENT_API_BASE" default:"https://api.stripe.com"`
	SecretKey          string        `envconfig:"PAYMENT_SECRET_KEY"`
	SuccessURL         string        `envconfig:"CHECKOUT_SUCCESS_URL" default:"https://beatmarkt.io/checkout/success"`
	CancelURL          string        `envconfig:"CHECKOUT_CANCEL_URL" default:"https://beatmarkt.io/checkout/cancel"`
}

// Checkout configures the exclusive-lock sweep.
type Checkout struct {
	LockMaxAge        time.Duration `envconfig:"LOCK_MAX_AGE" default:"30m"`
	LockSweepInterval time.Duration `envconfig:"LOCK_SWEEP_INTERVAL" default:"5m"`
}

// Contracts configures the contract service notification hop and the
// contract email send lease.
type Contracts struct {
	ServiceURL         string        `envconfig:"CONTRACT_SERVICE_URL"`
	ServiceToken       string        `envconfig:"CONTRACT_SERVICE_TOKEN"`
	NotifyTimeout      time.Duration `envconfig:"CONTRACT_NOTIFY_TIMEOUT" default:"8s"`
	CallbackToken      string        `envconfig:"CONTRACT_CALLBACK_TOKEN"`
	EmailLeaseTimeout  time.Duration `envconfig:"CONTRACT_EMAIL_LEASE_TIMEOUT" default:"5m"`
	EmailMaxAttempts   int           `envconfig:"CONTRACT_EMAIL_MAX_ATTEMPTS" default:"5"`
	EmailSweepInterval time.Duration `envconfig:"CONTRACT_EMAIL_SWEEP_INTERVAL" default:"10m"`
}

// Config is the aggregate parsed once at startup.
type Config struct {
	Payments  Payments
	Checkout  Checkout
	Contracts Contracts
}

// Load parses the configuration from the environment. Values read from the
// .env file by env.SetupEnvFile are exported into the process environment
// first so envconfig can see them.
func Load() (*Config, error) {
	for k, v := range env.Env {
		if _, ok := os.LookupEnv(k); !ok {
			os.Setenv(k, v)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errs.Wrap(err, "parse runtime config")
	}
	// Only known processors may feed the event ledger. The provider string is
	// half of the idempotency key, so a typo would fork the keyspace and let
	// replayed events through.
	switch cfg.Payments.Provider {
	case models.PaymentProviderStripe, models.PaymentProviderMollie:
	default:
		return nil, errs.Newf("unsupported PAYMENT_PROVIDER %q", cfg.Payments.Provider)
	}
	return &cfg, nil
}

var (
	loaded   *Config
	loadOnce sync.Once
)

// Get returns the process-wide configuration, loading it on first use.
// Startup fails hard on invalid or missing required values.
func Get() *Config {
	loadOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			panic(err)
		}
		loaded = cfg
	})
	return loaded
}
