package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cart-service/api/routes"
	"github.com/angelmondragon/cart-service/internal/cart"
	"github.com/angelmondragon/cart-service/internal/checkout"
	"github.com/angelmondragon/cart-service/internal/merge"
	"github.com/angelmondragon/cart-service/pkg/config"
	"github.com/angelmondragon/cart-service/pkg/instance"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/angelmondragon/cart-service/pkg/metrics"
	"github.com/angelmondragon/cart-service/pkg/pubsub"
	"github.com/angelmondragon/cart-service/pkg/redis"
	"github.com/angelmondragon/cart-service/pkg/retry"
	"github.com/angelmondragon/cart-service/pkg/security"
)

const serviceName = "cart-api"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Redactor:    security.NewRedactor(cfg.Security.LogHashKey),
	})
	if cfg.Security.LogHashKey == "" {
		logg.Warn(context.Background(), "CS_LOG_HASH_KEY not set, identifiers are hashed with an unkeyed digest")
	}

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(registry)
	metrics.RegisterPoolStats(registry, func() metrics.PoolSnapshot {
		s := redisClient.Stats()
		return metrics.PoolSnapshot{TotalConns: s.TotalConns, IdleConns: s.IdleConns, Timeouts: s.Timeouts}
	})

	scripts := redisClient.Scripts(logg)
	handles, err := cart.LoadScripts(ctx, scripts)
	if err != nil {
		return err
	}

	runner := retry.New(cfg.Retry, logg, cartMetrics)
	limits, ttl := cart.PolicyFromConfig(cfg.Cart)

	store, err := cart.NewStore(cart.StoreParams{
		Scripts:  scripts,
		Handles:  handles,
		Keyspace: redisClient,
		Runner:   runner,
		Limits:   limits,
		TTL:      ttl,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	coordinator, err := merge.NewCoordinator(merge.CoordinatorParams{
		Store:   store,
		Scripts: scripts,
		Handle:  handles.Merge,
		Runner:  runner,
		Metrics: cartMetrics,
		Limits:  limits,
		TTL:     ttl,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	var publisher checkout.Publisher
	if cfg.PubSub.Enabled() {
		psClient, psErr := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if psErr != nil {
			return psErr
		}
		events := pubsub.NewEventPublisher(psClient.CheckoutPublisher())
		defer func() {
			events.Stop()
			err = multierr.Append(err, psClient.Close())
		}()
		publisher = events
	} else {
		logg.Info(ctx, "checkout topic not configured, completion events disabled")
	}

	machine, err := checkout.NewStateMachine(checkout.StateMachineParams{
		Store:     store,
		Scripts:   scripts,
		Handle:    handles.Transition,
		Runner:    runner,
		TTL:       ttl,
		Logger:    logg,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"version":  cfg.App.Version,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, redisClient, scripts, registry, store, coordinator, machine),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}
