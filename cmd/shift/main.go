// SHIFT pipeline process - runs one of the four components (ingestion
// gateway, state estimator, intervention selector, context aggregator)
// depending on -role, or all of them in a single process for local
// development.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/shift-health/pipeline/pkg/api"
	"github.com/shift-health/pipeline/pkg/bus"
	"github.com/shift-health/pipeline/pkg/config"
	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/dedup"
	"github.com/shift-health/pipeline/pkg/identity"
	"github.com/shift-health/pipeline/pkg/push"
	"github.com/shift-health/pipeline/pkg/queue"
	"github.com/shift-health/pipeline/pkg/services"
	"github.com/shift-health/pipeline/pkg/slack"
	"github.com/shift-health/pipeline/pkg/tracing"
	"github.com/shift-health/pipeline/pkg/version"
	"github.com/shift-health/pipeline/pkg/warehouse"
)

const (
	roleGateway   = "gateway"
	roleEstimator = "estimator"
	roleSelector  = "selector"
	roleAll       = "all"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	role := flag.String("role", getEnv("ROLE", roleAll), "Process role: gateway, estimator, selector, or all")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, filepath.Join(*configDir, "config.yaml"))
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	cfg.Role = *role

	slog.Info("starting "+version.Full(), "role", cfg.Role)

	tp, err := tracing.Init(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown failed", "error", err)
		}
	}()

	db, err := database.NewClient(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to postgres warehouse")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			slog.Error("error closing redis client", "error", err)
		}
	}()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	slog.Info("connected to redis")

	msgBus := bus.New(rdb)
	dedupStore := dedup.New(rdb)

	notifier := slack.NewService(slack.ServiceConfig{
		Token:   os.Getenv(cfg.Slack.TokenEnv),
		Channel: cfg.Slack.Channel,
	})

	var verifier identity.Verifier
	if cfg.Identity.StaticMode {
		verifier = identity.NewStaticVerifier()
	} else {
		v, err := identity.NewJWKSVerifier(cfg.Identity.JWKSURL, cfg.Identity.Issuer, cfg.Identity.Audience)
		if err != nil {
			log.Fatalf("failed to initialize identity verifier: %v", err)
		}
		verifier = v
	}

	pusher := buildPusher(cfg.Push)

	batches := warehouse.NewBatchRepository(db)
	states := warehouse.NewStateRepository(db)
	catalog := warehouse.NewCatalogRepository(db)
	preferences := warehouse.NewPreferenceRepository(db)
	instances := warehouse.NewInstanceRepository(db)
	statusChanges := warehouse.NewStatusChangeRepository(db)
	devices := warehouse.NewDeviceRepository(db)
	interactions := warehouse.NewInteractionRepository(db)

	ingestion := services.NewIngestionService(dedupStore, batches, msgBus)
	ingestion.SetDefectNotifier(notifier)

	interactionSvc := services.NewInteractionService(interactions, statusChanges)
	interactionSvc.SetDefectNotifier(notifier)

	aggregator := services.NewAggregatorService(states, instances, catalog, interactions, cfg.Queue.OnboardingWindow)
	aggregator.SetDefectNotifier(notifier)

	estimator := services.NewEstimatorService(services.NewSQLTransform(db), states, msgBus, cfg.Queue.LookbackWindow)

	selector := services.NewSelectorService(states, catalog, preferences, instances, statusChanges, devices, interactions, pusher, services.SelectorConfig{
		RateLimitWindow:  cfg.Queue.RateLimitWindow,
		RateLimitMax:     cfg.Queue.RateLimitMax,
		OnboardingWindow: cfg.Queue.OnboardingWindow,
	})
	selector.SetDefectNotifier(notifier)

	var pools []*queue.WorkerPool
	runGateway := cfg.Role == roleGateway || cfg.Role == roleAll
	runEstimator := cfg.Role == roleEstimator || cfg.Role == roleAll
	runSelector := cfg.Role == roleSelector || cfg.Role == roleAll

	if runEstimator {
		estimatorPool := queue.NewWorkerPool("estimator", bus.TopicWatchEvents, msgBus,
			queue.NewEstimatorBusHandler(estimator.Tick), cfg.Queue.EstimatorWorkers, 256)
		pools = append(pools, estimatorPool)
	}
	if runSelector {
		selectorPool := queue.NewWorkerPool("selector", bus.TopicStateEstimates, msgBus,
			queue.NewSelectorBusHandler(selector.HandleStateEstimate), cfg.Queue.SelectorWorkers, 256)
		pools = append(pools, selectorPool)
	}

	if err := msgBus.Start(ctx); err != nil {
		log.Fatalf("failed to start message bus: %v", err)
	}
	for _, p := range pools {
		p.Start(ctx)
	}

	var srv *api.Server
	if runGateway {
		srv = api.NewServer(db, rdb, verifier, api.NoopAppleExchanger{}, ingestion, interactionSvc, aggregator, pools)
		gin.SetMode(getEnv("GIN_MODE", "release"))
		go func() {
			slog.Info("http server listening", "addr", cfg.HTTP.Addr)
			if err := srv.Start(cfg.HTTP.Addr); err != nil {
				slog.Error("http server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
	}
	for _, p := range pools {
		p.Stop()
	}
	msgBus.Stop()

	slog.Info("shutdown complete")
}

func buildPusher(cfg config.PushConfig) push.Provider {
	if !cfg.Enabled {
		return push.NoopProvider{}
	}

	key := os.Getenv(cfg.PrivateKey)
	if key == "" {
		slog.Warn("push enabled but signing key env var is empty, falling back to no-op provider", "env_var", cfg.PrivateKey)
		return push.NoopProvider{}
	}

	provider, err := push.NewAPNsProvider(push.Config{
		TeamID:     cfg.TeamID,
		KeyID:      cfg.KeyID,
		BundleID:   cfg.BundleID,
		PrivateKey: []byte(key),
		Sandbox:    cfg.Sandbox,
	})
	if err != nil {
		log.Fatalf("failed to initialize APNs provider: %v", err)
	}
	return provider
}
