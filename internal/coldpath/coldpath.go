// Package coldpath implements the asynchronous backdated-trade
// recalculation algorithm: mark the snapshot PROVISIONAL,
// replay the event log around the insertion point, and emit a correction
// summary plus per-event corrections without ever rewriting history
// in-place.
package coldpath

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/srviswan/positionengine/internal/bus"
	"github.com/srviswan/positionengine/internal/codec"
	"github.com/srviswan/positionengine/internal/contractsvc"
	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/lotengine"
	"github.com/srviswan/positionengine/internal/metrics"
	"github.com/srviswan/positionengine/internal/posid"
	"github.com/srviswan/positionengine/internal/position"
	"github.com/srviswan/positionengine/internal/store"
	"github.com/srviswan/positionengine/internal/trade"
)

// Recalculator replays history to fold a backdated trade into a position's
// timeline.
type Recalculator struct {
	Events                  store.EventStore
	Snapshots               store.SnapshotStore
	Idempotency             store.IdempotencyStore
	Breaks                  store.ReconciliationBreakStore
	Contracts               contractsvc.ContractService
	Producer                bus.Producer
	DefaultMethod           position.TaxLotMethod
	ReconciliationTolerance decimal.Decimal // fraction, e.g. 0.05 for 5%
	Metrics                 *metrics.Registry // optional; nil disables metric emission
	Now                     func() time.Time
	Logger                  *zap.Logger
}

func (r *Recalculator) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Recalculator) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

// Recalculate folds the backdated trade t into its position's history by
// replaying the stored events with t inserted at its effective date.
func (r *Recalculator) Recalculate(ctx context.Context, t trade.Trade) (err error) {
	start := r.now()
	defer func() {
		if r.Metrics != nil {
			r.Metrics.ObserveColdpathLatency(r.now().Sub(start))
		}
	}()

	if err := t.Derive(); err != nil {
		return err
	}
	log := r.logger().With(zap.String("positionKey", t.PositionKey), zap.String("tradeId", t.TradeID))

	// Step 1: mark the snapshot PROVISIONAL.
	prior, found, err := r.Snapshots.Load(ctx, t.PositionKey)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "failed to load snapshot for provisional mark", err)
	}
	if !found {
		prior = &position.State{PositionKey: t.PositionKey, Status: position.StatusNonExistent}
	}
	provisionalTradeID := t.TradeID
	marked := prior.Clone()
	marked.ReconciliationStatus = position.ReconProvisional
	marked.ProvisionalTradeID = &provisionalTradeID
	if err := r.Snapshots.Save(ctx, marked, prior.Version); err != nil {
		return err
	}

	// Step 2: load all non-archived events.
	all, err := r.Events.List(ctx, t.PositionKey)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "failed to load events for recalculation", err)
	}

	// Step 3: partition by effectiveDate relative to the backdated trade.
	var before, after []position.Event
	for _, ev := range all {
		if ev.EffectiveDate.Before(t.EffectiveDate) {
			before = append(before, ev)
		} else {
			after = append(after, ev)
		}
	}

	method, err := r.resolveMethod(ctx, t.ContractID)
	if err != nil {
		return err
	}

	// Step 4: replay E_before onto a fresh state.
	state := &position.State{
		PositionKey: t.PositionKey,
		Account:     t.Account,
		Instrument:  t.Instrument,
		Currency:    t.Currency,
		Direction:   string(t.Direction),
		ContractID:  t.ContractID,
		Status:      position.StatusNonExistent,
	}
	if err := replay(state, before, method); err != nil {
		return err
	}

	// Step 5: insert the backdated trade at its proper point.
	if err := applyTrade(state, t, method); err != nil {
		return err
	}

	// Step 6: replay E_after onto the same state.
	if err := replay(state, after, method); err != nil {
		return err
	}

	// Step 7: diff against the prior snapshot and emit correction events.
	oldTotal := prior.TotalQty()
	newTotal := state.TotalQty()
	correlationID := uuid.New()

	summaryPayload, err := codec.MarshalPayload(codec.TradePayload{
		TradeID:       t.TradeID,
		PositionKey:   t.PositionKey,
		TradeType:     string(t.TradeType),
		Quantity:      t.Quantity,
		Price:         t.Price,
		EffectiveDate: t.EffectiveDate,
	})
	if err != nil {
		return err
	}

	nextVer, err := r.Events.NextVersion(ctx, t.PositionKey)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "failed to compute next event version", err)
	}
	summaryEvent := position.Event{
		PositionKey:   t.PositionKey,
		EventVer:      nextVer,
		EventType:     position.EventHistoricalPositionCorrected,
		EffectiveDate: t.EffectiveDate,
		OccurredAt:    r.now(),
		Payload:       summaryPayload,
		CorrelationID: correlationID,
		CausationID:   t.CausationID,
		ContractID:    t.ContractID,
		UserID:        t.UserID,
	}
	if err := r.Events.Append(ctx, summaryEvent); err != nil {
		return err
	}
	correctionsAdded := uint64(1)

	for _, downstream := range after {
		correctionVer := nextVer + correctionsAdded
		correction := position.Event{
			PositionKey:   t.PositionKey,
			EventVer:      correctionVer,
			EventType:     position.EventCorrection,
			EffectiveDate: downstream.EffectiveDate,
			OccurredAt:    r.now(),
			Payload:       downstream.Payload,
			CorrelationID: correlationID,
			CausationID:   downstream.CorrelationID,
			ContractID:    t.ContractID,
		}
		if err := r.Events.Append(ctx, correction); err != nil {
			return err
		}
		correctionsAdded++
	}

	if err := r.Producer.Send(ctx, bus.TopicHistoricalPositionCorrected, t.PositionKey, summaryPayload); err != nil {
		log.Warn("failed to publish correction summary", zap.Error(err))
	}

	// Step 8: overwrite the snapshot, reconciled.
	state.Version = prior.Version + correctionsAdded
	state.ReconciliationStatus = position.ReconReconciled
	state.ProvisionalTradeID = nil
	state.LastUpdatedAt = t.EffectiveDate
	if err := r.Snapshots.Save(ctx, state, marked.Version); err != nil {
		return err
	}

	// Step 9: record idempotency.
	if err := r.Idempotency.Record(ctx, t.TradeID, t.PositionKey, nextVer, position.OutcomeProcessed); err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "failed to record idempotency outcome", err)
	}

	r.maybeRecordBreak(ctx, t.PositionKey, oldTotal, newTotal)
	return nil
}

// maybeRecordBreak writes a ReconciliationBreak when the magnitude of
// change between old and new total quantity exceeds ReconciliationTolerance.
func (r *Recalculator) maybeRecordBreak(ctx context.Context, positionKey string, oldTotal, newTotal decimal.Decimal) {
	if r.Breaks == nil || r.ReconciliationTolerance.IsZero() {
		return
	}
	denom := decimal.Max(decimal.NewFromInt(1), oldTotal.Abs())
	ratio := newTotal.Sub(oldTotal).Abs().Div(denom)
	if ratio.LessThanOrEqual(r.ReconciliationTolerance) {
		return
	}
	if err := r.Breaks.Record(ctx, position.ReconciliationBreak{
		BreakID:     uuid.New(),
		PositionKey: positionKey,
		Reason:      "backdated correction exceeded reconciliation tolerance",
		OldTotalQty: oldTotal,
		NewTotalQty: newTotal,
		DetectedAt:  r.now(),
	}); err != nil {
		r.logger().Warn("failed to record reconciliation break", zap.Error(err))
		return
	}
	if r.Metrics != nil {
		r.Metrics.IncReconciliationBreak()
	}
}

func (r *Recalculator) resolveMethod(ctx context.Context, contractID string) (position.TaxLotMethod, error) {
	if r.Contracts == nil || contractID == "" {
		return r.DefaultMethod, nil
	}
	c, found, err := r.Contracts.Lookup(ctx, contractID)
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindTransient, "contract lookup failed", err)
	}
	if !found {
		return r.DefaultMethod, nil
	}
	return c.TaxLotMethod, nil
}

// replay folds a canonically-ordered slice of events onto state in place.
func replay(state *position.State, events []position.Event, method position.TaxLotMethod) error {
	for _, ev := range events {
		payload, err := codec.UnmarshalPayload(ev.Payload)
		if err != nil {
			return err
		}
		t := trade.Trade{
			TradeID:       payload.TradeID,
			PositionKey:   payload.PositionKey,
			TradeType:     trade.Type(payload.TradeType),
			Quantity:      payload.Quantity,
			Price:         payload.Price,
			EffectiveDate: payload.EffectiveDate,
		}
		if err := applyTrade(state, t, method); err != nil {
			return err
		}
	}
	return nil
}

// applyTrade mutates state for one trade using the same state-machine and
// lot-engine rules the hotpath uses, without the persistence side effects.
func applyTrade(state *position.State, t trade.Trade, method position.TaxLotMethod) error {
	switch {
	case t.SignedDelta().Sign() >= 0 || t.TradeType == trade.TypeNewTrade:
		qty := t.Quantity.Abs()
		if t.Direction == posid.Short {
			qty = qty.Neg()
		}
		if _, err := lotengine.AddLot(state, qty, t.Price, t.EffectiveDate, t.SettlementDate); err != nil {
			return err
		}
		state.Status = position.StatusActive
	default:
		if _, err := lotengine.ReduceLots(state, t.Quantity.Abs(), method, t.Price); err != nil {
			return err
		}
		if state.TotalQty().IsZero() {
			state.Status = position.StatusTerminated
		} else {
			state.Status = position.StatusActive
		}
	}
	return nil
}
