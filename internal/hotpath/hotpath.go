// Package hotpath implements the synchronous per-trade apply sequence:
// idempotency short-circuit, classification-driven
// backdated reroute, snapshot load, state-machine validation, tax-lot
// mutation, and the event-append/snapshot-save/idempotency-record triad
// under bounded optimistic-lock retry.
package hotpath

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srviswan/positionengine/internal/bus"
	"github.com/srviswan/positionengine/internal/cache"
	"github.com/srviswan/positionengine/internal/classifier"
	"github.com/srviswan/positionengine/internal/codec"
	"github.com/srviswan/positionengine/internal/contractsvc"
	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/lotengine"
	"github.com/srviswan/positionengine/internal/metrics"
	"github.com/srviswan/positionengine/internal/posid"
	"github.com/srviswan/positionengine/internal/position"
	"github.com/srviswan/positionengine/internal/retry"
	"github.com/srviswan/positionengine/internal/statemachine"
	"github.com/srviswan/positionengine/internal/store"
	"github.com/srviswan/positionengine/internal/trade"
)

// Outcome is what Process returns, enough for the caller (the dispatcher)
// to decide whether to ack and what, if anything, to publish.
type Outcome struct {
	PositionKey string
	EventVer    uint64
	Status      position.Status
	Rerouted    bool // true if sent to backdated-trades instead of applied
	FromIdempot bool // true if short-circuited by a prior idempotency record
}

// Processor wires together the stores, bus, cache, and contract service a
// hotpath apply needs. Every field is a port; concrete bindings are chosen
// by the composition root (internal/engine).
type Processor struct {
	Events        store.EventStore
	Snapshots     store.SnapshotStore
	Idempotency   store.IdempotencyStore
	Lifecycle     store.LifecycleStore
	Cache         cache.Cache[*position.State]
	Contracts     contractsvc.ContractService
	Producer      bus.Producer
	DefaultMethod position.TaxLotMethod
	RetryPolicy   retry.Policy
	Metrics       *metrics.Registry // optional; nil disables metric emission
	Now           func() time.Time  // injected for deterministic tests; defaults to time.Now
	Logger        *zap.Logger
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

// Process implements the full synchronous apply sequence: idempotency
// check, classification, snapshot load, validation, lot mutation, and
// the event-append/snapshot-save/idempotency-record triad.
func (p *Processor) Process(ctx context.Context, t trade.Trade) (out Outcome, err error) {
	start := p.now()
	defer func() {
		if p.Metrics == nil {
			return
		}
		p.Metrics.ObserveHotpathLatency(p.now().Sub(start))
		switch {
		case err != nil:
			return
		case out.FromIdempot:
			p.Metrics.ObserveTradeProcessed("idempotent")
		case out.Rerouted:
			p.Metrics.ObserveTradeProcessed("rerouted")
		default:
			p.Metrics.ObserveTradeProcessed("applied")
		}
	}()

	log := p.logger().With(zap.String("tradeId", t.TradeID))

	// Step 1: idempotency short-circuit.
	exists, rec, checkErr := p.Idempotency.Check(ctx, t.TradeID)
	if checkErr != nil {
		return Outcome{}, engineerr.Wrap(engineerr.KindTransient, "idempotency check failed", checkErr)
	}
	if exists {
		log.Debug("trade already processed, returning cached outcome")
		return Outcome{PositionKey: rec.PositionKey, EventVer: rec.EventVer, FromIdempot: true}, nil
	}

	// Step 2: derive positionKey if missing.
	if err := t.Derive(); err != nil {
		return Outcome{}, err
	}

	// Load snapshot early so the classifier has a comparison point; the
	// cache is consulted first, falling back to the store on miss
	// (step 4, pulled forward because step 3's classification needs it).
	snapshot, err := p.loadSnapshot(ctx, t.PositionKey)
	if err != nil {
		return Outcome{}, err
	}

	// Step 3: classify; reroute backdated trades to the coldpath.
	var lastEffective *time.Time
	if snapshot != nil {
		d := snapshot.LastUpdatedAt
		lastEffective = &d
	}
	t.Label = classifier.Classify(t.EffectiveDate, p.now(), lastEffective)
	if t.Label == classifier.Backdated {
		payload, err := codec.MarshalPayload(toPayload(t))
		if err != nil {
			return Outcome{}, err
		}
		if err := p.Producer.Send(ctx, bus.TopicBackdatedTrades, t.PositionKey, payload); err != nil {
			return Outcome{}, engineerr.Wrap(engineerr.KindTransient, "failed to publish backdated trade", err)
		}
		log.Info("trade classified BACKDATED, rerouted to coldpath", zap.String("positionKey", t.PositionKey))
		return Outcome{PositionKey: t.PositionKey, Rerouted: true}, nil
	}

	var outcome Outcome
	retryErr := retry.Do(ctx, p.RetryPolicy, isVersionConflict, func(attempt int) error {
		if attempt > 0 {
			if p.Metrics != nil {
				p.Metrics.IncVersionConflict()
			}
			// Reload on retry: another worker may have advanced the
			// snapshot since our last attempt. The cached copy may be the
			// stale state that just conflicted, so drop it and read the store.
			_ = p.Cache.Evict(ctx, cache.PositionCacheKey(t.PositionKey))
			snapshot, err = p.loadSnapshot(ctx, t.PositionKey)
			if err != nil {
				return err
			}
		}
		applied, err := p.applyOnce(ctx, t, snapshot)
		if err != nil {
			return err
		}
		outcome = applied
		return nil
	})
	if retryErr != nil {
		return Outcome{}, retryErr
	}
	return outcome, nil
}

func (p *Processor) loadSnapshot(ctx context.Context, positionKey string) (*position.State, error) {
	key := cache.PositionCacheKey(positionKey)
	if cached, ok, err := p.Cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}
	st, found, err := p.Snapshots.Load(ctx, positionKey)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "failed to load snapshot", err)
	}
	if !found {
		return nil, nil
	}
	return st, nil
}

// applyOnce runs steps 5-11 once; VersionConflict from Save bubbles up for
// retry.Do to catch.
func (p *Processor) applyOnce(ctx context.Context, t trade.Trade, snapshot *position.State) (Outcome, error) {
	expectedVersion := uint64(0)
	state := snapshot
	if state == nil {
		state = &position.State{
			PositionKey: t.PositionKey,
			Account:     t.Account,
			Instrument:  t.Instrument,
			Currency:    t.Currency,
			Direction:   string(t.Direction),
			Status:      position.StatusNonExistent,
			ContractID:  t.ContractID,
		}
	} else {
		expectedVersion = state.Version
	}
	state = state.Clone()

	currentQty := state.TotalQty()
	qtyAfter := currentQty.Add(t.SignedDelta())

	eventKind := statemachine.TradeEventKind(t.TradeType)
	nextStatus, changed, err := statemachine.Apply(state.Status, eventKind, qtyAfter)
	if err != nil {
		return Outcome{}, err
	}

	method, err := p.resolveMethod(ctx, t.ContractID)
	if err != nil {
		return Outcome{}, err
	}

	var metaLots []position.LotAllocationEntry
	var correlationID uuid.UUID
	switch {
	case t.SignedDelta().Sign() >= 0 || t.TradeType == trade.TypeNewTrade:
		qty := t.Quantity.Abs()
		if t.Direction == posid.Short {
			qty = qty.Neg()
		}
		alloc, err := lotengine.AddLot(state, qty, t.Price, t.EffectiveDate, t.SettlementDate)
		if err != nil {
			return Outcome{}, err
		}
		metaLots, correlationID = alloc.Entries, alloc.CorrelationID
	default:
		alloc, err := lotengine.ReduceLots(state, t.Quantity.Abs(), method, t.Price)
		if err != nil {
			return Outcome{}, err
		}
		metaLots, correlationID = alloc.Entries, alloc.CorrelationID
	}
	if correlationID == uuid.Nil {
		correlationID = t.CorrelationID
	}

	state.Status = nextStatus
	state.Version = expectedVersion + 1
	state.LastUpdatedAt = t.EffectiveDate

	eventType := position.EventType(t.TradeType)
	if nextStatus == position.StatusTerminated && changed {
		eventType = position.EventPositionClosed
	}

	payload, err := codec.MarshalPayload(toPayload(t))
	if err != nil {
		return Outcome{}, err
	}

	nextVer, err := p.Events.NextVersion(ctx, t.PositionKey)
	if err != nil {
		return Outcome{}, engineerr.Wrap(engineerr.KindTransient, "failed to compute next event version", err)
	}

	ev := position.Event{
		PositionKey:   t.PositionKey,
		EventVer:      nextVer,
		EventType:     eventType,
		EffectiveDate: t.EffectiveDate,
		OccurredAt:    p.now(),
		Payload:       payload,
		MetaLots:      metaLots,
		CorrelationID: correlationID,
		CausationID:   t.CausationID,
		ContractID:    t.ContractID,
		UserID:        t.UserID,
	}

	// Steps 7-9: append event, save snapshot, record idempotency. These are
	// three separate store calls with no transaction spanning them
	// (store.GormEventStore/GormSnapshotStore each wrap only their own
	// statement in a transaction), so a failure after Append leaves the
	// appended event in place.
	if err := p.Events.Append(ctx, ev); err != nil {
		return Outcome{}, err
	}
	if err := p.Snapshots.Save(ctx, state, expectedVersion); err != nil {
		return Outcome{}, err
	}
	if err := p.Idempotency.Record(ctx, t.TradeID, t.PositionKey, nextVer, position.OutcomeProcessed); err != nil {
		return Outcome{}, engineerr.Wrap(engineerr.KindTransient, "failed to record idempotency outcome", err)
	}

	// Step 10: cache update.
	if err := p.Cache.Put(ctx, cache.PositionCacheKey(t.PositionKey), state, 0); err != nil {
		p.logger().Warn("cache update failed after successful apply", zap.Error(err))
	}

	// Step 11: lifecycle side-events.
	if changed {
		kind := position.LifecycleCreated
		switch {
		case nextStatus == position.StatusTerminated:
			kind = position.LifecycleTerminated
		case snapshot != nil && snapshot.Status == position.StatusTerminated:
			kind = position.LifecycleReopened
		}
		if err := p.Lifecycle.Append(ctx, position.LifecycleEvent{
			HistoryID:   uuid.New(),
			PositionKey: t.PositionKey,
			Kind:        kind,
			OccurredAt:  p.now(),
		}); err != nil {
			p.logger().Warn("lifecycle event append failed", zap.Error(err))
		}
	}

	return Outcome{PositionKey: t.PositionKey, EventVer: nextVer, Status: nextStatus}, nil
}

func (p *Processor) resolveMethod(ctx context.Context, contractID string) (position.TaxLotMethod, error) {
	if p.Contracts == nil || contractID == "" {
		return p.DefaultMethod, nil
	}
	c, found, err := p.Contracts.Lookup(ctx, contractID)
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindTransient, "contract lookup failed", err)
	}
	if !found {
		return p.DefaultMethod, nil
	}
	return c.TaxLotMethod, nil
}

func toPayload(t trade.Trade) codec.TradePayload {
	return codec.TradePayload{
		TradeID:       t.TradeID,
		PositionKey:   t.PositionKey,
		TradeType:     string(t.TradeType),
		Quantity:      t.Quantity,
		Price:         t.Price,
		EffectiveDate: t.EffectiveDate,
	}
}

func isVersionConflict(err error) bool {
	return engineerr.Classify(err) == engineerr.KindVersionConflict
}
