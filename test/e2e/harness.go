// Package e2e boots a complete pipeline instance — real Postgres (a
// per-test schema), a real Redis (miniredis), and the four services wired
// the same way cmd/shift/main.go wires them — and drives it through its
// HTTP surface and bus-triggered workers.
package e2e

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/shift-health/pipeline/pkg/api"
	"github.com/shift-health/pipeline/pkg/bus"
	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/dedup"
	"github.com/shift-health/pipeline/pkg/identity"
	"github.com/shift-health/pipeline/pkg/push"
	"github.com/shift-health/pipeline/pkg/queue"
	"github.com/shift-health/pipeline/pkg/services"
	"github.com/shift-health/pipeline/pkg/warehouse"

	testdb "github.com/shift-health/pipeline/test/database"
)

// spyPusher records every Send call instead of reaching a real APNs
// gateway, so scenario tests can assert on push-delivery side effects.
type spyPusher struct {
	sent []sentPush
	fail bool
}

type sentPush struct {
	DeviceToken, Title, Body, InstanceID string
}

func (p *spyPusher) Send(_ context.Context, deviceToken, title, body, instanceID string) error {
	if p.fail {
		return push.ErrSendFailed
	}
	p.sent = append(p.sent, sentPush{deviceToken, title, body, instanceID})
	return nil
}

// TestApp wires one full pipeline instance for a single test.
type TestApp struct {
	t *testing.T

	DB    *database.Client
	Redis *redis.Client
	Bus   *bus.Bus

	Batches       *warehouse.BatchRepository
	States        *warehouse.StateRepository
	Catalog       *warehouse.CatalogRepository
	Preferences   *warehouse.PreferenceRepository
	Instances     *warehouse.InstanceRepository
	StatusChanges *warehouse.StatusChangeRepository
	Devices       *warehouse.DeviceRepository
	Interactions  *warehouse.InteractionRepository

	Ingestion   *services.IngestionService
	Interaction *services.InteractionService
	Aggregator  *services.AggregatorService
	Estimator   *services.EstimatorService
	Selector    *services.SelectorService

	Pusher *spyPusher

	HTTP *httptest.Server
}

// NewTestApp creates and starts a full test instance. Cleanup is
// registered via t.Cleanup.
func NewTestApp(t *testing.T) *TestApp {
	t.Helper()

	db := testdb.NewTestClient(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	msgBus := bus.New(rdb)
	dedupStore := dedup.New(rdb)

	batches := warehouse.NewBatchRepository(db)
	states := warehouse.NewStateRepository(db)
	catalog := warehouse.NewCatalogRepository(db)
	preferences := warehouse.NewPreferenceRepository(db)
	instances := warehouse.NewInstanceRepository(db)
	statusChanges := warehouse.NewStatusChangeRepository(db)
	devices := warehouse.NewDeviceRepository(db)
	interactions := warehouse.NewInteractionRepository(db)

	pusher := &spyPusher{}

	ingestion := services.NewIngestionService(dedupStore, batches, msgBus)
	interactionSvc := services.NewInteractionService(interactions, statusChanges)
	aggregator := services.NewAggregatorService(states, instances, catalog, interactions, 5*time.Minute)
	estimator := services.NewEstimatorService(services.NewSQLTransform(db), states, msgBus, 5*time.Minute)
	selector := services.NewSelectorService(states, catalog, preferences, instances, statusChanges, devices, interactions, pusher, services.SelectorConfig{
		RateLimitWindow:  30 * time.Minute,
		RateLimitMax:     3,
		OnboardingWindow: 5 * time.Minute,
	})

	estimatorPool := queue.NewWorkerPool("estimator", bus.TopicWatchEvents, msgBus,
		queue.NewEstimatorBusHandler(estimator.Tick), 2, 64)
	selectorPool := queue.NewWorkerPool("selector", bus.TopicStateEstimates, msgBus,
		queue.NewSelectorBusHandler(selector.HandleStateEstimate), 2, 64)
	pools := []*queue.WorkerPool{estimatorPool, selectorPool}

	ctx := context.Background()
	require.NoError(t, msgBus.Start(ctx))
	for _, p := range pools {
		p.Start(ctx)
	}

	srv := api.NewServer(db, rdb, identity.NewStaticVerifier(), api.NoopAppleExchanger{}, ingestion, interactionSvc, aggregator, pools)
	httpSrv := httptest.NewServer(srv.Engine())

	t.Cleanup(func() {
		httpSrv.Close()
		for _, p := range pools {
			p.Stop()
		}
		msgBus.Stop()
	})

	return &TestApp{
		t:             t,
		DB:            db,
		Redis:         rdb,
		Bus:           msgBus,
		Batches:       batches,
		States:        states,
		Catalog:       catalog,
		Preferences:   preferences,
		Instances:     instances,
		StatusChanges: statusChanges,
		Devices:       devices,
		Interactions:  interactions,
		Ingestion:     ingestion,
		Interaction:   interactionSvc,
		Aggregator:    aggregator,
		Estimator:     estimator,
		Selector:      selector,
		Pusher:        pusher,
		HTTP:          httpSrv,
	}
}
