package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/cryptodesk/internal/flagx"
)

// EnvConfig mirrors Config for envdecode. Composite values (prices, CORS
// origins, fee rate) arrive as strings and are parsed after decoding.
type EnvConfig struct {
	HTTPAddr          string        `env:"CRYPTODESK_HTTP_ADDR"`
	GRPCHealthAddr    string        `env:"CRYPTODESK_GRPC_HEALTH_ADDR"`
	DatabaseDSN       string        `env:"CRYPTODESK_DATABASE_DSN"`
	SecretKey         string        `env:"CRYPTODESK_SECRET_KEY"`
	SessionTTL        time.Duration `env:"CRYPTODESK_SESSION_TTL"`
	AdminSessionTTL   time.Duration `env:"CRYPTODESK_ADMIN_SESSION_TTL"`
	ResetTokenTTL     time.Duration `env:"CRYPTODESK_RESET_TOKEN_TTL"`
	ResetRetention    time.Duration `env:"CRYPTODESK_RESET_RETENTION"`
	AdminEmail        string        `env:"CRYPTODESK_ADMIN_EMAIL"`
	AdminPassword     string        `env:"CRYPTODESK_ADMIN_PASSWORD"`
	PlatformFeeRate   string        `env:"CRYPTODESK_PLATFORM_FEE_RATE"`
	Prices            string        `env:"CRYPTODESK_PRICES"`
	MaxFiatAmount     string        `env:"CRYPTODESK_MAX_FIAT_AMOUNT"`
	MinPasswordLength int           `env:"CRYPTODESK_MIN_PASSWORD_LENGTH"`
	BcryptCost        int           `env:"CRYPTODESK_BCRYPT_COST"`
	ExposeResetTokens bool          `env:"CRYPTODESK_EXPOSE_RESET_TOKENS"`
	WebhookSecret     string        `env:"CRYPTODESK_WEBHOOK_SECRET"`
	CORSOrigins       string        `env:"CRYPTODESK_CORS_ORIGINS"`
	RateLimitRPS      float64       `env:"CRYPTODESK_RATE_LIMIT_RPS"`
	RateLimitBurst    int           `env:"CRYPTODESK_RATE_LIMIT_BURST"`
	JanitorSchedule   string        `env:"CRYPTODESK_JANITOR_SCHEDULE"`
	AMQPURL           string        `env:"CRYPTODESK_AMQP_URL"`
	AMQPResetQueue    string        `env:"CRYPTODESK_AMQP_RESET_QUEUE"`
	S3AccessKey       string        `env:"CRYPTODESK_S3_ACCESS_KEY"`
	S3SecretKey       string        `env:"CRYPTODESK_S3_SECRET_KEY"`
	S3Bucket          string        `env:"CRYPTODESK_S3_BUCKET"`
	S3Region          string        `env:"CRYPTODESK_S3_REGION"`
	S3BaseEndpoint    string        `env:"CRYPTODESK_S3_BASE_ENDPOINT"`
	LogFormat         string        `env:"CRYPTODESK_LOG_FORMAT"`
}

// dotenvLoad is a seam for tests.
var dotenvLoad = func() error { return godotenv.Load() }

// parseEnv overlays CRYPTODESK_* variables onto config. A .env file in the
// working directory is loaded first when present; variables already set in
// the process environment win over it. Malformed values panic.
func parseEnv(config *Config) {
	_ = dotenvLoad()

	e := &EnvConfig{
		HTTPAddr:          config.HTTPAddr,
		GRPCHealthAddr:    config.GRPCHealthAddr,
		DatabaseDSN:       config.DatabaseDSN,
		SecretKey:         config.SecretKey,
		SessionTTL:        config.SessionTTL,
		AdminSessionTTL:   config.AdminSessionTTL,
		ResetTokenTTL:     config.ResetTokenTTL,
		ResetRetention:    config.ResetRetention,
		AdminEmail:        config.AdminEmail,
		AdminPassword:     config.AdminPassword,
		MinPasswordLength: config.MinPasswordLength,
		BcryptCost:        config.BcryptCost,
		ExposeResetTokens: config.ExposeResetTokens,
		WebhookSecret:     config.WebhookSecret,
		RateLimitRPS:      config.RateLimitRPS,
		RateLimitBurst:    config.RateLimitBurst,
		JanitorSchedule:   config.JanitorSchedule,
		AMQPURL:           config.AMQPURL,
		AMQPResetQueue:    config.AMQPResetQueue,
		S3AccessKey:       config.S3AccessKey,
		S3SecretKey:       config.S3SecretKey,
		S3Bucket:          config.S3Bucket,
		S3Region:          config.S3Region,
		S3BaseEndpoint:    config.S3BaseEndpoint,
		LogFormat:         config.LogFormat,
	}

	if err := envdecode.Decode(e); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return
		}
		panic(err)
	}

	config.HTTPAddr = e.HTTPAddr
	config.GRPCHealthAddr = e.GRPCHealthAddr
	config.DatabaseDSN = e.DatabaseDSN
	config.SecretKey = e.SecretKey
	config.SessionTTL = e.SessionTTL
	config.AdminSessionTTL = e.AdminSessionTTL
	config.ResetTokenTTL = e.ResetTokenTTL
	config.ResetRetention = e.ResetRetention
	config.AdminEmail = e.AdminEmail
	config.AdminPassword = e.AdminPassword
	config.MinPasswordLength = e.MinPasswordLength
	config.BcryptCost = e.BcryptCost
	config.ExposeResetTokens = e.ExposeResetTokens
	config.WebhookSecret = e.WebhookSecret
	config.RateLimitRPS = e.RateLimitRPS
	config.RateLimitBurst = e.RateLimitBurst
	config.JanitorSchedule = e.JanitorSchedule
	config.AMQPURL = e.AMQPURL
	config.AMQPResetQueue = e.AMQPResetQueue
	config.S3AccessKey = e.S3AccessKey
	config.S3SecretKey = e.S3SecretKey
	config.S3Bucket = e.S3Bucket
	config.S3Region = e.S3Region
	config.S3BaseEndpoint = e.S3BaseEndpoint
	config.LogFormat = e.LogFormat

	if e.PlatformFeeRate != "" {
		config.PlatformFeeRate = decimal.RequireFromString(strings.TrimSpace(e.PlatformFeeRate))
	}
	if e.MaxFiatAmount != "" {
		config.MaxFiatAmount = decimal.RequireFromString(strings.TrimSpace(e.MaxFiatAmount))
	}
	if e.Prices != "" {
		prices, err := parsePrices(e.Prices)
		if err != nil {
			panic(err)
		}
		config.Prices = prices
	}
	if e.CORSOrigins != "" {
		config.CORSOrigins = flagx.SplitList(e.CORSOrigins)
	}
}

// parsePrices parses "BTC=88360.65,ETH=3125.50". Asset symbols are
// upper-cased.
func parsePrices(v string) (map[string]decimal.Decimal, error) {
	pairs, err := flagx.ParsePairs(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(pairs))
	for asset, raw := range pairs {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		out[strings.ToUpper(asset)] = price
	}
	return out, nil
}
