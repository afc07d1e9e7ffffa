package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/srviswan/positionengine/internal/bus/inmembus"
	"github.com/srviswan/positionengine/internal/cache"
	"github.com/srviswan/positionengine/internal/cache/inmemcache"
	"github.com/srviswan/positionengine/internal/coldpath"
	"github.com/srviswan/positionengine/internal/contractsvc"
	"github.com/srviswan/positionengine/internal/contractsvc/mock"
	"github.com/srviswan/positionengine/internal/contractsvc/reststub"
	"github.com/srviswan/positionengine/internal/dispatcher"
	"github.com/srviswan/positionengine/internal/hotpath"
	"github.com/srviswan/positionengine/internal/metrics"
	"github.com/srviswan/positionengine/internal/position"
	"github.com/srviswan/positionengine/internal/retry"
	"github.com/srviswan/positionengine/internal/store"
)

// ShutdownTimeout bounds how long Stop waits for in-flight workers to
// drain before a caller gives up on a clean shutdown.
const ShutdownTimeout = 10 * time.Second

// Engine is the wired-up runtime: bus, stores, hot/cold paths, and the
// dispatcher that ties them together. Build one with New, then call
// Start and Stop to run and drain it.
type Engine struct {
	Config     *Config
	Bus        *inmembus.Bus
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Registry
	Logger     *zap.Logger

	Events      store.EventStore
	Snapshots   store.SnapshotStore
	Idempotency store.IdempotencyStore
	Lifecycle   store.LifecycleStore
	Breaks      store.ReconciliationBreakStore
	Submissions store.SubmissionStore
}

// New wires every component from cfg, choosing concrete adapters by the
// config's provider/type fields. Vendor bus/cache bindings (kafka, solace,
// redis) have no concrete implementation in this module (out of scope);
// any value other than "memory" logs a warning and falls back to the
// in-process adapter rather than branching on a vendor it never dials.
func New(cfg *Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MessagingProvider != "" && cfg.MessagingProvider != "memory" {
		logger.Warn("messaging.provider has no concrete binding in this module, using in-process bus",
			zap.String("configured", cfg.MessagingProvider))
	}
	if cfg.CacheType != "" && cfg.CacheType != "memory" {
		logger.Warn("cache.type has no concrete binding in this module, using in-process cache",
			zap.String("configured", cfg.CacheType))
	}

	b := inmembus.New(cfg.WorkerQueueDepth)

	var stores storeSet
	if cfg.MySQLDSN != "" {
		s, err := newGormStoreSet(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to wire GORM stores: %w", err)
		}
		stores = s
	} else {
		stores = newMemoryStoreSet()
	}

	contractSvc, err := newContractService(cfg)
	if err != nil {
		return nil, err
	}

	metricsReg := metrics.NewRegistry()
	var posCache cache.Cache[*position.State] = inmemcache.New[*position.State]()

	hp := &hotpath.Processor{
		Events:        stores.events,
		Snapshots:     stores.snapshots,
		Idempotency:   stores.idempotency,
		Lifecycle:     stores.lifecycle,
		Cache:         posCache,
		Contracts:     contractSvc,
		Producer:      b,
		DefaultMethod: cfg.TaxLotDefaultMethod,
		RetryPolicy:   retry.DefaultPolicy,
		Metrics:       metricsReg,
		Logger:        logger,
	}
	cp := &coldpath.Recalculator{
		Events:                  stores.events,
		Snapshots:               stores.snapshots,
		Idempotency:             stores.idempotency,
		Breaks:                  stores.breaks,
		Contracts:               contractSvc,
		Producer:                b,
		DefaultMethod:           cfg.TaxLotDefaultMethod,
		ReconciliationTolerance: cfg.ReconciliationBreakTolerance,
		Metrics:                 metricsReg,
		Logger:                  logger,
	}
	disp := &dispatcher.Dispatcher{
		Consumer:   b,
		Producer:   b,
		Hotpath:    hp,
		Coldpath:   cp,
		Workers:    cfg.PartitionsCount,
		QueueDepth: cfg.WorkerQueueDepth,
		Metrics:    metricsReg,
		Logger:     logger,
	}

	return &Engine{
		Config:      cfg,
		Bus:         b,
		Dispatcher:  disp,
		Metrics:     metricsReg,
		Logger:      logger,
		Events:      stores.events,
		Snapshots:   stores.snapshots,
		Idempotency: stores.idempotency,
		Lifecycle:   stores.lifecycle,
		Breaks:      stores.breaks,
		Submissions: stores.submissions,
	}, nil
}

// Start launches the dispatcher's worker pool and bus subscriptions.
func (e *Engine) Start(ctx context.Context) error {
	return e.Dispatcher.Start(ctx)
}

// Stop drains workers and stops the bus.
func (e *Engine) Stop(ctx context.Context) error {
	return e.Dispatcher.Stop(ctx)
}

// Publish is a convenience wrapper so callers (cmd/engine, tests) can feed
// trades into the engine without reaching into Engine.Bus directly.
func (e *Engine) Publish(ctx context.Context, topic, key string, payload []byte) error {
	return e.Bus.Send(ctx, topic, key, payload)
}

type storeSet struct {
	events      store.EventStore
	snapshots   store.SnapshotStore
	idempotency store.IdempotencyStore
	lifecycle   store.LifecycleStore
	breaks      store.ReconciliationBreakStore
	submissions store.SubmissionStore
}

func newMemoryStoreSet() storeSet {
	return storeSet{
		events:      store.NewMemoryEventStore(),
		snapshots:   store.NewMemorySnapshotStore(),
		idempotency: store.NewMemoryIdempotencyStore(),
		lifecycle:   store.NewMemoryLifecycleStore(),
		breaks:      store.NewMemoryReconciliationBreakStore(),
		submissions: store.NewMemorySubmissionStore(),
	}
}

func newGormStoreSet(dsn string) (storeSet, error) {
	events, err := store.NewGormEventStore(dsn)
	if err != nil {
		return storeSet{}, err
	}
	snapshots, err := store.NewGormSnapshotStore(dsn)
	if err != nil {
		return storeSet{}, err
	}
	idempotency, err := store.NewGormIdempotencyStore(dsn)
	if err != nil {
		return storeSet{}, err
	}
	lifecycle, err := store.NewGormLifecycleStore(dsn)
	if err != nil {
		return storeSet{}, err
	}
	breaks, err := store.NewGormReconciliationBreakStore(dsn)
	if err != nil {
		return storeSet{}, err
	}
	submissions, err := store.NewGormSubmissionStore(dsn)
	if err != nil {
		return storeSet{}, err
	}
	return storeSet{
		events:      events,
		snapshots:   snapshots,
		idempotency: idempotency,
		lifecycle:   lifecycle,
		breaks:      breaks,
		submissions: submissions,
	}, nil
}

func newContractService(cfg *Config) (contractsvc.ContractService, error) {
	switch cfg.ContractServiceType {
	case "rest":
		if cfg.ContractServiceBaseURL == "" {
			return nil, fmt.Errorf("contract_service.baseUrl is required when contract_service.type is \"rest\"")
		}
		return reststub.New(cfg.ContractServiceBaseURL, nil), nil
	case "mock", "":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unrecognized contract_service.type %q", cfg.ContractServiceType)
	}
}
