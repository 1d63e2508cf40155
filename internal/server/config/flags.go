package config

import (
	"flag"
	"os"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/cryptodesk/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string    HTTP bind address (e.g., ":8080")
//	-g string    gRPC health bind address; empty disables it
//	-d string    PostgreSQL DSN; empty uses the in-memory store
//	-s string    session token HMAC secret
//	-t duration  user session lifetime (0 = no expiry)
//	-r duration  reset token lifetime
//	-f decimal   platform fee rate
//	-p list      price table, "BTC=88360.65,ETH=3125.50"
//	-o list      allowed CORS origins, comma separated
//	-w string    payment webhook secret
//	-q string    AMQP URL for reset-token delivery
//	-b string    S3 bucket for the transaction archive
//	-e string    S3 base endpoint
//	-l string    log format: json, text or zap
//	-x           echo reset tokens in responses (development only)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-g", "-d", "-s", "-t", "-r", "-f", "-p", "-o", "-w", "-q", "-b", "-e", "-l", "-x",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "address and port for gRPC health")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.SessionTTL, "t", config.SessionTTL, "user session lifetime")
	fs.DurationVar(&config.ResetTokenTTL, "r", config.ResetTokenTTL, "reset token lifetime")

	feeRate := fs.String("f", config.PlatformFeeRate.String(), "platform fee rate")

	prices := flagx.StringMap{}
	for asset, price := range config.Prices {
		prices[asset] = price.String()
	}
	fs.Var(prices, "p", "price table (ASSET=price,...)")

	origins := flagx.StringList(config.CORSOrigins)
	fs.Var(&origins, "o", "allowed CORS origins")

	fs.StringVar(&config.WebhookSecret, "w", config.WebhookSecret, "payment webhook secret")
	fs.StringVar(&config.AMQPURL, "q", config.AMQPURL, "AMQP URL")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format")
	fs.BoolVar(&config.ExposeResetTokens, "x", config.ExposeResetTokens, "echo reset tokens in responses")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	rate, err := decimal.NewFromString(*feeRate)
	if err != nil {
		panic(err)
	}
	config.PlatformFeeRate = rate

	parsed, err := parsePrices(prices.String())
	if err != nil {
		panic(err)
	}
	config.Prices = parsed
	config.CORSOrigins = []string(origins)
}
