// Package server wires the security ledger together: storage, the 2FA
// engine, rate limiting, event publishing and metrics behind the gRPC and
// HTTP transports, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/secledger/internal/logging"
	"github.com/dmitrijs2005/secledger/internal/server/config"
	"github.com/dmitrijs2005/secledger/internal/server/events"
	"github.com/dmitrijs2005/secledger/internal/server/httpapi"
	"github.com/dmitrijs2005/secledger/internal/server/metrics"
	"github.com/dmitrijs2005/secledger/internal/server/otpengine"
	"github.com/dmitrijs2005/secledger/internal/server/qr"
	"github.com/dmitrijs2005/secledger/internal/server/ratelimit"
	"github.com/dmitrijs2005/secledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secledger/internal/server/repositories/security"
	"github.com/dmitrijs2005/secledger/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/secledger/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	store     security.Store
	publisher events.Publisher
	redis     *redis.Client
	metrics   *metrics.Metrics
	security  *services.SecurityService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	app := &App{config: c, logger: logger, metrics: metrics.New()}

	store, err := repomanager.Open(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	app.store = store

	limiter, err := app.newLimiter(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("rate limiter init error: %w", err)
	}

	app.publisher, err = app.newPublisher()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("event publisher init error: %w", err)
	}

	app.security = services.NewSecurityService(services.Dependencies{
		Store:     store,
		OTP:       otpengine.New(c.Issuer),
		QR:        qr.NewRenderer(c.QRCodeSize),
		Limiter:   limiter,
		Publisher: app.publisher,
		Metrics:   app.metrics,
		Logger:    logger,
	}, c)

	return app, nil
}

// newLimiter shares verification budgets through Redis when an address is
// configured and keeps them in process otherwise.
func (app *App) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	perMinute := app.config.VerifyAttemptsPerMinute
	if perMinute <= 0 {
		return nil, nil
	}
	if app.config.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(perMinute), nil
	}

	app.redis = redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	app.logger.Info(ctx, "Using redis rate limiter", "address", app.config.RedisAddr)
	return ratelimit.NewRedisLimiter(app.redis, "", perMinute), nil
}

func (app *App) newPublisher() (events.Publisher, error) {
	if app.config.AMQPURL == "" {
		return events.NewLogPublisher(app.logger), nil
	}
	p, err := events.NewAMQPPublisher(app.config.AMQPURL, app.config.EventsExchange, app.logger)
	if err != nil {
		return nil, err
	}
	return p, nil
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.security)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.security, app.logger, app.metrics.Handler())
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves both transports until ctx is cancelled, a signal arrives or
// either server fails, then releases resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(context.Background(), "shutdown error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases the store, the publisher and the Redis client.
func (app *App) Close() error {
	var errs []error
	if app.publisher != nil {
		errs = append(errs, app.publisher.Close())
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.store != nil {
		errs = append(errs, app.store.Close())
	}
	return errors.Join(errs...)
}
