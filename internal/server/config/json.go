package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/cryptodesk/internal/flagx"
	"github.com/dmitrijs2005/cryptodesk/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds. Pointer fields tell
// an explicit false or zero apart from an absent key.
//
// Only keys present in the file override the current Config.
type JsonConfig struct {
	HTTPAddr          string                     `json:"http_addr"`
	GRPCHealthAddr    string                     `json:"grpc_health_addr"`
	DatabaseDSN       string                     `json:"database_dsn"`
	SecretKey         string                     `json:"secret_key"`
	SessionTTL        *timex.Duration            `json:"session_ttl"`
	AdminSessionTTL   *timex.Duration            `json:"admin_session_ttl"`
	ResetTokenTTL     *timex.Duration            `json:"reset_token_ttl"`
	ResetRetention    *timex.Duration            `json:"reset_retention"`
	AdminEmail        string                     `json:"admin_email"`
	AdminPassword     string                     `json:"admin_password"`
	PlatformFeeRate   *decimal.Decimal           `json:"platform_fee_rate"`
	Prices            map[string]decimal.Decimal `json:"prices"`
	MaxFiatAmount     *decimal.Decimal           `json:"max_fiat_amount"`
	MinPasswordLength int                        `json:"min_password_length"`
	BcryptCost        int                        `json:"bcrypt_cost"`
	ExposeResetTokens *bool                      `json:"expose_reset_tokens"`
	WebhookSecret     string                     `json:"webhook_secret"`
	CORSOrigins       []string                   `json:"cors_origins"`
	RateLimitRPS      *float64                   `json:"rate_limit_rps"`
	RateLimitBurst    *int                       `json:"rate_limit_burst"`
	JanitorSchedule   string                     `json:"janitor_schedule"`
	AMQPURL           string                     `json:"amqp_url"`
	AMQPResetQueue    string                     `json:"amqp_reset_queue"`
	S3AccessKey       string                     `json:"s3_access_key"`
	S3SecretKey       string                     `json:"s3_secret_key"`
	S3Bucket          string                     `json:"s3_bucket"`
	S3Region          string                     `json:"s3_region"`
	S3BaseEndpoint    string                     `json:"s3_base_endpoint"`
	LogFormat         string                     `json:"log_format"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags. If neither
// is set, nothing is loaded. A file that cannot be read or holds invalid
// JSON panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.WebhookSecret, c.WebhookSecret)
	setString(&config.JanitorSchedule, c.JanitorSchedule)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.AMQPResetQueue, c.AMQPResetQueue)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogFormat, c.LogFormat)

	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.AdminSessionTTL != nil {
		config.AdminSessionTTL = c.AdminSessionTTL.Duration
	}
	if c.ResetTokenTTL != nil {
		config.ResetTokenTTL = c.ResetTokenTTL.Duration
	}
	if c.ResetRetention != nil {
		config.ResetRetention = c.ResetRetention.Duration
	}
	if c.PlatformFeeRate != nil {
		config.PlatformFeeRate = *c.PlatformFeeRate
	}
	if c.MaxFiatAmount != nil {
		config.MaxFiatAmount = *c.MaxFiatAmount
	}
	if len(c.Prices) > 0 {
		config.Prices = make(map[string]decimal.Decimal, len(c.Prices))
		for asset, price := range c.Prices {
			config.Prices[strings.ToUpper(asset)] = price
		}
	}
	if c.MinPasswordLength > 0 {
		config.MinPasswordLength = c.MinPasswordLength
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.ExposeResetTokens != nil {
		config.ExposeResetTokens = *c.ExposeResetTokens
	}
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.RateLimitRPS != nil {
		config.RateLimitRPS = *c.RateLimitRPS
	}
	if c.RateLimitBurst != nil {
		config.RateLimitBurst = *c.RateLimitBurst
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
