package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/identity"
	"github.com/shift-health/pipeline/pkg/queue"
	"github.com/shift-health/pipeline/pkg/services"
)

// Server wires the HTTP surface for the ingestion gateway and the
// context-aggregator endpoint (spec.md §4.B, §4.E, §6) onto a gin
// engine. It holds no package-level state: every dependency is injected
// through NewServer (spec.md §9 Design Notes).
type Server struct {
	engine *gin.Engine
	http   *http.Server

	db    *database.Client
	redis *redis.Client

	identity       identity.Verifier
	appleExchanger AppleTokenExchanger

	ingestion   *services.IngestionService
	interaction *services.InteractionService
	aggregator  *services.AggregatorService

	pools []*queue.WorkerPool
}

// NewServer assembles the gin engine and registers every route. pools is
// the set of worker pools running in-process (empty for a gateway-only
// deployment role) so GET /health can report their depth alongside the
// database and Redis checks.
func NewServer(
	db *database.Client,
	rdb *redis.Client,
	verifier identity.Verifier,
	appleExchanger AppleTokenExchanger,
	ingestion *services.IngestionService,
	interaction *services.InteractionService,
	aggregator *services.AggregatorService,
	pools []*queue.WorkerPool,
) *Server {
	if appleExchanger == nil {
		appleExchanger = NoopAppleExchanger{}
	}

	s := &Server{
		db:             db,
		redis:          rdb,
		identity:       verifier,
		appleExchanger: appleExchanger,
		ingestion:      ingestion,
		interaction:    interaction,
		aggregator:     aggregator,
		pools:          pools,
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), securityHeaders())
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := s.engine.Group("/")
	authed.Use(requireAuth(s.identity))
	{
		authed.POST("/auth/apple", s.postAuthApple)
		authed.POST("/watch_events", s.postWatchEvents)
		authed.POST("/app_interactions", s.postAppInteractions)
		authed.GET("/context", s.getContext)
		authed.POST("/user/reset", s.postUserReset)
	}
}

// Start runs the HTTP server on addr. It blocks until Shutdown causes
// ListenAndServe to return http.ErrServerClosed, matching the teacher's
// run-until-shutdown cmd/tarsy lifecycle.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Engine exposes the underlying gin engine so integration tests can drive
// it directly (e.g. via httptest.NewServer) without a real listening port.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) redisPing(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *Server) queueHealth() []queue.PoolHealth {
	health := make([]queue.PoolHealth, 0, len(s.pools))
	for _, p := range s.pools {
		health = append(health, p.Health())
	}
	return health
}
