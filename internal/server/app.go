// Package server assembles the CryptoDesk backend: storage, services, the
// HTTP API, the janitor and the optional gRPC health endpoint. It owns
// process lifetime and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/archive"
	"github.com/dmitrijs2005/cryptodesk/internal/server/auth"
	"github.com/dmitrijs2005/cryptodesk/internal/server/config"
	gs "github.com/dmitrijs2005/cryptodesk/internal/server/grpc"
	"github.com/dmitrijs2005/cryptodesk/internal/server/httpapi"
	"github.com/dmitrijs2005/cryptodesk/internal/server/janitor"
	"github.com/dmitrijs2005/cryptodesk/internal/server/metrics"
	"github.com/dmitrijs2005/cryptodesk/internal/server/notify"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/memory"
	"github.com/dmitrijs2005/cryptodesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptodesk/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	notifier notify.Notifier
	http     *httpapi.Server
	janitor  *janitor.Janitor
	health   *gs.HealthServer
}

// NewApp wires every component from c. Storage is PostgreSQL when a DSN is
// configured and the in-memory store otherwise.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	repos, err := openRepositories(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewHasher(c.BcryptCost, c.MinPasswordLength)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if c.AMQPURL != "" {
		n, err := notify.NewAMQPNotifier(c.AMQPURL, c.AMQPResetQueue)
		if err != nil {
			_ = repos.Close()
			return nil, err
		}
		notifier = n
	}

	var archiver services.Archiver
	if c.S3Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, archive.Options{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			_ = notifier.Close()
			_ = repos.Close()
			return nil, err
		}
		archiver = a
	}

	prices := services.NewPriceTable(c.Prices)
	authSvc := services.NewAuthService(repos, hasher, c, logger)
	ledger := services.NewLedgerService(repos, prices.Assets(), logger)
	svc := httpapi.Services{
		Auth:         authSvc,
		Resets:       services.NewResetService(repos, hasher, notifier, c.ResetTokenTTL, logger),
		Ledger:       ledger,
		Transactions: services.NewTransactionService(repos, ledger, prices, logger).WithMaxFiatAmount(c.MaxFiatAmount),
		Reports:      services.NewReportService(repos, ledger, c.PlatformFeeRate, archiver, logger),
	}

	if err := authSvc.BootstrapAdmin(ctx, c.AdminEmail, c.AdminPassword); err != nil {
		_ = notifier.Close()
		_ = repos.Close()
		return nil, fmt.Errorf("admin bootstrap: %w", err)
	}

	m := metrics.New()
	router := httpapi.NewRouter(svc, m, logger, httpapi.Options{
		ExposeResetTokens: c.ExposeResetTokens,
		WebhookSecret:     c.WebhookSecret,
		CORSOrigins:       c.CORSOrigins,
		RateLimitRPS:      c.RateLimitRPS,
		RateLimitBurst:    c.RateLimitBurst,
	})

	app := &App{
		config:   c,
		logger:   logger,
		repos:    repos,
		notifier: notifier,
		http:     httpapi.NewServer(c.HTTPAddr, router, logger),
		janitor:  janitor.New(repos, c.JanitorSchedule, c.ResetRetention, m, logger),
	}
	if c.GRPCHealthAddr != "" {
		app.health = gs.NewHealthServer(c.GRPCHealthAddr, logger)
	}

	if c.ExposeResetTokens {
		logger.Warn(ctx, "reset tokens are echoed in HTTP responses; do not use in production")
	}

	return app, nil
}

func openRepositories(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database configured, using in-memory store")
		return memory.NewManager(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	m := repomanager.NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return m, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// start runs fn in the group; a failing component brings the rest down.
func (app *App) start(ctx context.Context, wg *sync.WaitGroup, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error(ctx, "component stopped", "component", name, "error", err)
			cancelFunc()
		}
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "http", app.config.HTTPAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	app.start(ctx, &wg, cancelFunc, "http", app.http.Run)
	app.start(ctx, &wg, cancelFunc, "janitor", app.janitor.Run)
	if app.health != nil {
		app.start(ctx, &wg, cancelFunc, "grpc_health", app.health.Run)
	}

	<-ctx.Done()
	if app.health != nil {
		app.health.SetServing(false)
	}

	wg.Wait()

	if err := app.notifier.Close(); err != nil {
		app.logger.Error(ctx, "notifier close", "error", err)
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "storage close", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
