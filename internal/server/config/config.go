// Package config handles configuration for the server component,
// including defaults, environment variables, JSON overlay, and command-line
// flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds runtime settings for the CryptoDesk server.
//
// Fields worth calling out:
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - SecretKey: HMAC secret for signing session tokens (HS256).
//   - SessionTTL / AdminSessionTTL: session lifetimes; zero means no expiry.
//   - Prices: fiat price per asset. The keys are the supported assets.
//   - ExposeResetTokens: echo reset tokens in HTTP responses. Development only.
//   - S3Bucket: enables the transaction archive when set.
//   - AMQPURL: enables queued reset-token delivery when set.
type Config struct {
	HTTPAddr       string
	GRPCHealthAddr string
	DatabaseDSN    string
	SecretKey      string

	SessionTTL      time.Duration
	AdminSessionTTL time.Duration
	ResetTokenTTL   time.Duration
	ResetRetention  time.Duration

	AdminEmail    string
	AdminPassword string

	PlatformFeeRate decimal.Decimal
	Prices          map[string]decimal.Decimal
	MaxFiatAmount   decimal.Decimal

	MinPasswordLength int
	BcryptCost        int
	ExposeResetTokens bool
	WebhookSecret     string

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	JanitorSchedule string

	AMQPURL        string
	AMQPResetQueue string

	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	LogFormat string
}

// DefaultPrices is the demo price table in USD.
func DefaultPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"BTC":  decimal.RequireFromString("88360.65"),
		"ETH":  decimal.RequireFromString("3125.50"),
		"SOL":  decimal.RequireFromString("238.45"),
		"XRP":  decimal.RequireFromString("3.05"),
		"USDT": decimal.RequireFromString("1.00"),
	}
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey and AdminPassword must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCHealthAddr = ""
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.SessionTTL = 24 * time.Hour
	c.AdminSessionTTL = 8 * time.Hour
	c.ResetTokenTTL = 1 * time.Hour
	c.ResetRetention = 24 * time.Hour
	c.AdminEmail = "admin@cryptodesk.local"
	c.AdminPassword = "admin123"
	c.PlatformFeeRate = decimal.RequireFromString("0.02")
	c.Prices = DefaultPrices()
	c.MaxFiatAmount = decimal.NewFromInt(1_000_000)
	c.MinPasswordLength = 6
	c.BcryptCost = 10
	c.ExposeResetTokens = false
	c.WebhookSecret = ""
	c.CORSOrigins = []string{"*"}
	c.RateLimitRPS = 5
	c.RateLimitBurst = 10
	c.JanitorSchedule = "@every 5m"
	c.AMQPURL = ""
	c.AMQPResetQueue = "password_resets"
	c.S3Region = "us-east-1"
	c.LogFormat = "json"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment, an optional JSON file and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.PlatformFeeRate.IsNegative() || c.PlatformFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("platform fee rate %s must be in [0, 1)", c.PlatformFeeRate))
	}
	if len(c.Prices) == 0 {
		errs = append(errs, errors.New("price table is empty"))
	}
	for asset, price := range c.Prices {
		if !price.IsPositive() {
			errs = append(errs, fmt.Errorf("price for %s must be positive", asset))
		}
	}
	if !c.MaxFiatAmount.IsPositive() || c.MaxFiatAmount.GreaterThanOrEqual(decimal.New(1, 18)) {
		errs = append(errs, fmt.Errorf("max fiat amount %s must be in (0, 1e18)", c.MaxFiatAmount))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("reset token ttl must be positive"))
	}
	if c.SessionTTL < 0 || c.AdminSessionTTL < 0 {
		errs = append(errs, errors.New("session ttl must not be negative"))
	}
	return errors.Join(errs...)
}
