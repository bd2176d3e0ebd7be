package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/consumer"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	h "github.com/fjod/go_cart/storefront/internal/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	creds := &repository.Credentials{
		Driver:            cfg.Database.Driver,
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		DBName:            cfg.Database.Name,
		SQLitePath:        cfg.Database.SQLitePath,
		MigrationsDirPath: cfg.Database.MigrationsDir,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Error("failed to connect to database", "driver", creds.Driver, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("database ready", "driver", repo.Driver())

	var (
		productCache cache.ProductCache
		sessions     h.SessionRevoker
		provider     checkout.IdentityProvider
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, continuing", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()

		redisCache := cache.NewRedisCache(client)
		productCache = redisCache
		sessions = redisCache
		provider = identity.NewSessionProvider(redisCache)
	}
	if cfg.Auth.Mode == config.AuthStatic {
		provider = identity.StaticProvider{Identity: domain.Identity{UserID: cfg.Auth.StaticUserID}}
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:        "checkout-store",
		MaxFailures: cfg.Checkout.BreakerMaxFailures,
		Ignored: []error{
			repository.ErrProductNotFound,
			repository.ErrNegativeStock,
			repository.ErrMissingReference,
		},
	}, log)

	policy, err := checkout.ParseStockPolicy(cfg.Checkout.StockPolicy)
	if err != nil {
		log.Error("invalid stock policy", "error", err)
		os.Exit(1)
	}
	seq := checkout.NewSequencer(
		store.NewBreakerStore(repo, breaker),
		provider,
		checkout.WithStockPolicy(policy),
		checkout.WithMaxStockRetries(cfg.Checkout.MaxStockRetries),
		checkout.WithCallTimeout(cfg.Checkout.StoreCallTimeout),
		checkout.WithLogger(log),
	)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var events publisher.Publisher = publisher.Nop{}
	switch {
	case cfg.AMQP.URI != "":
		amqpPublisher, err := publisher.NewAMQPPublisher(log, cfg.AMQP.URI, cfg.AMQP.Queue)
		if err != nil {
			log.Error("failed to set up event publisher", "error", err)
			os.Exit(1)
		}
		events = amqpPublisher
		log.Info("publishing events", "queue", cfg.AMQP.Queue)
	case len(cfg.Kafka.Brokers) > 0:
		events = publisher.NewKafkaPublisher(log, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		log.Info("publishing events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)

		reconciliations := consumer.NewConsumer(repo, log, cfg.Kafka.GroupID, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer reconciliations.Close()
		go reconciliations.Run(consumerCtx)
	}
	defer events.Close()

	m := metrics.New()
	catalog := service.NewCatalog(repo, productCache, log)
	storefront := service.NewStorefront(seq, events, m, catalog, log)

	router := h.NewRouter(h.RouterConfig{
		Storefront:     storefront,
		Catalog:        catalog,
		Identity:       provider,
		Sessions:       sessions,
		Instrument:     m.Middleware,
		Metrics:        m.Handler(),
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", "addr", srv.Addr, "stock_policy", policy, "auth", cfg.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	stopConsumer()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
