// Package dispatcher implements a keyed worker pool: trades for the same
// position key are always handled by the same worker, giving
// single-threaded semantics per position without a global lock, while
// distinct keys process in parallel.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/srviswan/positionengine/internal/bus"
	"github.com/srviswan/positionengine/internal/coldpath"
	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/hotpath"
	"github.com/srviswan/positionengine/internal/metrics"
	"github.com/srviswan/positionengine/internal/posid"
	"github.com/srviswan/positionengine/internal/position"
	"github.com/srviswan/positionengine/internal/trade"
	"github.com/srviswan/positionengine/internal/validate"
)

// wireTrade is the JSON envelope producers publish to trade-events and
// backdated-trades. It carries everything internal/trade.Trade needs,
// unlike internal/codec.TradePayload which only captures what the event
// store persists after the fact.
type wireTrade struct {
	TradeID        string     `json:"tradeId"`
	PositionKey    string     `json:"positionKey,omitempty"`
	Account        string     `json:"account"`
	Instrument     string     `json:"instrument"`
	Currency       string     `json:"currency"`
	Direction      string     `json:"direction"`
	TradeType      string     `json:"tradeType"`
	Quantity       string     `json:"quantity"`
	Price          string     `json:"price"`
	EffectiveDate  time.Time  `json:"effectiveDate"`
	SettlementDate *time.Time `json:"settlementDate,omitempty"`
	ContractID     string     `json:"contractId,omitempty"`
	UserID         string     `json:"userId,omitempty"`
	CorrelationID  string     `json:"correlationId,omitempty"`
	CausationID    string     `json:"causationId,omitempty"`
}

// job is one unit of work handed to a worker goroutine.
type job struct {
	ctx           context.Context
	tr            trade.Trade
	fromColdTopic bool
	ack           func() error
}

// Dispatcher routes incoming trade messages to a fixed pool of per-key
// workers, validating each trade before handing it to the hotpath or
// coldpath.
type Dispatcher struct {
	Consumer   bus.Consumer
	Producer   bus.Producer
	Hotpath    *hotpath.Processor
	Coldpath   *coldpath.Recalculator
	Workers    uint32 // partition count, default 16
	QueueDepth int
	Metrics    *metrics.Registry // optional; nil disables metric emission
	Now        func() time.Time
	Logger     *zap.Logger

	queues []chan job
	group  *errgroup.Group
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

// Start subscribes to trade-events and backdated-trades and launches the
// worker pool. It returns once subscriptions are registered; workers run
// until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.Workers == 0 {
		d.Workers = 16
	}
	if d.QueueDepth <= 0 {
		d.QueueDepth = 64
	}

	d.queues = make([]chan job, d.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, d.QueueDepth)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	d.group = group
	for i := range d.queues {
		q := d.queues[i]
		group.Go(func() error {
			d.runWorker(groupCtx, q)
			return nil
		})
	}

	if err := d.Consumer.Subscribe(bus.TopicTradeEvents, d.handleHotpath); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", bus.TopicTradeEvents, err)
	}
	if err := d.Consumer.Subscribe(bus.TopicBackdatedTrades, d.handleColdpath); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", bus.TopicBackdatedTrades, err)
	}
	return d.Consumer.Start(ctx)
}

// Stop drains the worker pool and stops the underlying bus consumer.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if err := d.Consumer.Stop(ctx); err != nil {
		return err
	}
	for _, q := range d.queues {
		close(q)
	}
	if d.group != nil {
		return d.group.Wait()
	}
	return nil
}

func (d *Dispatcher) handleHotpath(ctx context.Context, key string, value []byte, ack func() error) error {
	return d.enqueue(ctx, key, value, ack, false)
}

func (d *Dispatcher) handleColdpath(ctx context.Context, key string, value []byte, ack func() error) error {
	return d.enqueue(ctx, key, value, ack, true)
}

// enqueue decodes the wire envelope, resolves the partition, and blocks
// until there is room in the target worker's queue — this blocking is
// the backpressure mechanism: a full queue pauses bus delivery rather
// than dropping or unboundedly buffering messages.
func (d *Dispatcher) enqueue(ctx context.Context, key string, value []byte, ack func() error, fromColdTopic bool) error {
	t, err := decodeWireTrade(value)
	if err != nil {
		d.logger().Warn("failed to decode trade message, routing to DLQ", zap.Error(err))
		return d.publishDLQ(ctx, key, value, "MALFORMED_MESSAGE", err.Error())
	}
	if err := t.Derive(); err != nil {
		return d.publishDLQ(ctx, key, value, "INVALID_ARGUMENT", err.Error())
	}

	idx, err := posid.Partition(t.PositionKey, d.Workers)
	if err != nil {
		return d.publishDLQ(ctx, key, value, "INVALID_ARGUMENT", err.Error())
	}

	select {
	case d.queues[idx] <- job{ctx: ctx, tr: t, fromColdTopic: fromColdTopic, ack: ack}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, q chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			d.process(j)
		}
	}
}

func (d *Dispatcher) process(j job) {
	if j.fromColdTopic {
		if err := d.Coldpath.Recalculate(j.ctx, j.tr); err != nil {
			d.logger().Error("coldpath recalculation failed", zap.String("positionKey", j.tr.PositionKey), zap.Error(err))
			return
		}
		_ = j.ack()
		return
	}

	snapshot := d.snapshotOrNil(j)
	findings := validate.Validate(j.tr, snapshot, d.now())
	if len(findings) > 0 {
		d.logger().Info("trade failed validation, routing to DLQ", zap.String("tradeId", j.tr.TradeID), zap.Int("findings", len(findings)))
		_ = d.publishDLQ(j.ctx, j.tr.TradeID, nil, "VALIDATION_FAILED", findingsSummary(findings))
		_ = j.ack()
		return
	}

	_, err := d.Hotpath.Process(j.ctx, j.tr)
	if err != nil {
		switch engineerr.Classify(err) {
		case engineerr.KindInvalidArgument, engineerr.KindStateViolation:
			_ = d.publishDLQ(j.ctx, j.tr.TradeID, nil, "PROCESSING_FAILED", err.Error())
			_ = j.ack()
		default:
			d.logger().Warn("transient hotpath failure, leaving unacked for redelivery", zap.Error(err))
		}
		return
	}
	_ = j.ack()
}

// snapshotOrNil best-effort loads the current snapshot for the
// validation gate's state-machine pre-check; a load failure is treated as
// "no snapshot" rather than aborting validation.
func (d *Dispatcher) snapshotOrNil(j job) *position.State {
	if d.Hotpath == nil || d.Hotpath.Snapshots == nil {
		return nil
	}
	st, found, err := d.Hotpath.Snapshots.Load(j.ctx, j.tr.PositionKey)
	if err != nil || !found {
		return nil
	}
	return st
}

func (d *Dispatcher) publishDLQ(ctx context.Context, key string, value []byte, errorType, message string) error {
	if d.Metrics != nil {
		d.Metrics.ObserveDLQMessage(errorType)
	}
	envelope := map[string]any{
		"key":       key,
		"errorType": errorType,
		"message":   message,
		"payload":   value,
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return d.Producer.Send(ctx, bus.TopicTradeEventsDLQ, key, b)
}

func decodeWireTrade(value []byte) (trade.Trade, error) {
	var w wireTrade
	if err := json.Unmarshal(value, &w); err != nil {
		return trade.Trade{}, engineerr.Wrap(engineerr.KindInvalidArgument, "failed to decode trade message", err)
	}
	qty, err := decimalFromString(w.Quantity)
	if err != nil {
		return trade.Trade{}, engineerr.InvalidArgument("quantity is not a valid decimal")
	}
	price, err := decimalFromString(w.Price)
	if err != nil {
		return trade.Trade{}, engineerr.InvalidArgument("price is not a valid decimal")
	}
	t := trade.Trade{
		TradeID:        w.TradeID,
		PositionKey:    w.PositionKey,
		Account:        w.Account,
		Instrument:     w.Instrument,
		Currency:       w.Currency,
		Direction:      posid.Direction(w.Direction),
		TradeType:      trade.Type(w.TradeType),
		Quantity:       qty,
		Price:          price,
		EffectiveDate:  w.EffectiveDate,
		SettlementDate: w.SettlementDate,
		ContractID:     w.ContractID,
		UserID:         w.UserID,
	}
	if w.CorrelationID != "" {
		t.CorrelationID = parseUUIDOrNil(w.CorrelationID)
	}
	if w.CausationID != "" {
		t.CausationID = parseUUIDOrNil(w.CausationID)
	}
	return t, nil
}

func findingsSummary(findings []validate.Finding) string {
	b, _ := json.Marshal(findings)
	return string(b)
}

func decimalFromString(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, engineerr.InvalidArgument("value is required")
	}
	return decimal.NewFromString(s)
}

func parseUUIDOrNil(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
