package dispatcher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srviswan/positionengine/internal/bus"
	"github.com/srviswan/positionengine/internal/bus/inmembus"
	"github.com/srviswan/positionengine/internal/cache/inmemcache"
	"github.com/srviswan/positionengine/internal/coldpath"
	"github.com/srviswan/positionengine/internal/hotpath"
	"github.com/srviswan/positionengine/internal/position"
	"github.com/srviswan/positionengine/internal/store"
)

func newTestFixture(t *testing.T) (*inmembus.Bus, *store.MemoryEventStore, *store.MemorySnapshotStore, func()) {
	t.Helper()
	b := inmembus.New(16)
	events := store.NewMemoryEventStore()
	snapshots := store.NewMemorySnapshotStore()
	clock := func() time.Time { return time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC) }

	hp := &hotpath.Processor{
		Events:        events,
		Snapshots:     snapshots,
		Idempotency:   store.NewMemoryIdempotencyStore(),
		Lifecycle:     store.NewMemoryLifecycleStore(),
		Cache:         inmemcache.New[*position.State](),
		Producer:      b,
		DefaultMethod: position.MethodFIFO,
		Now:           clock,
	}
	cp := &coldpath.Recalculator{
		Events:        events,
		Snapshots:     snapshots,
		Idempotency:   store.NewMemoryIdempotencyStore(),
		Breaks:        store.NewMemoryReconciliationBreakStore(),
		Producer:      b,
		DefaultMethod: position.MethodFIFO,
		Now:           clock,
	}

	d := &Dispatcher{
		Consumer:   b,
		Producer:   b,
		Hotpath:    hp,
		Coldpath:   cp,
		Workers:    4,
		QueueDepth: 16,
		Now:        clock,
	}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	return b, events, snapshots, cancel
}

func publishWire(t *testing.T, b *inmembus.Bus, topic string, w wireTrade) {
	t.Helper()
	payload, err := json.Marshal(w)
	require.NoError(t, err)
	require.NoError(t, b.Send(context.Background(), topic, w.PositionKey, payload))
}

// eventually polls fn until it returns true or the timeout elapses.
func eventually(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, fn(), "condition never became true within %s", timeout)
}

func TestDispatcher_CurrentDatedTradeReachesHotpath(t *testing.T) {
	b, _, snapshots, cancel := newTestFixture(t)
	defer cancel()

	w := wireTrade{
		TradeID:       "t-1",
		Account:       "ACC1",
		Instrument:    "AAPL",
		Currency:      "USD",
		Direction:     "LONG",
		TradeType:     "NEW_TRADE",
		Quantity:      "100",
		Price:         "50",
		EffectiveDate: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	publishWire(t, b, bus.TopicTradeEvents, w)

	eventually(t, time.Second, func() bool {
		found, err := snapshots.FindByAccount(context.Background(), "ACC1", 10, 0)
		return err == nil && len(found) == 1
	})
}

func TestDispatcher_BackdatedTradeReachesColdpath(t *testing.T) {
	b, events, snapshots, cancel := newTestFixture(t)
	defer cancel()

	open := wireTrade{
		TradeID:       "t-1",
		Account:       "ACC2",
		Instrument:    "MSFT",
		Currency:      "USD",
		Direction:     "LONG",
		TradeType:     "NEW_TRADE",
		Quantity:      "100",
		Price:         "50",
		EffectiveDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	publishWire(t, b, bus.TopicTradeEvents, open)

	var positionKey string
	eventually(t, time.Second, func() bool {
		found, err := snapshots.FindByAccount(context.Background(), "ACC2", 10, 0)
		if err != nil || len(found) != 1 {
			return false
		}
		positionKey = found[0].PositionKey
		return true
	})

	backdated := wireTrade{
		TradeID:       "t-2",
		PositionKey:   positionKey,
		Account:       "ACC2",
		Instrument:    "MSFT",
		Currency:      "USD",
		Direction:     "LONG",
		TradeType:     "INCREASE",
		Quantity:      "10",
		Price:         "51",
		EffectiveDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -3),
	}
	publishWire(t, b, bus.TopicTradeEvents, backdated)

	eventually(t, time.Second, func() bool {
		evs, err := events.List(context.Background(), positionKey)
		if err != nil {
			return false
		}
		for _, ev := range evs {
			if ev.EventType == position.EventHistoricalPositionCorrected {
				return true
			}
		}
		return false
	})
}

func TestDispatcher_InvalidTradeRoutesToDLQ(t *testing.T) {
	b := inmembus.New(16)
	events := store.NewMemoryEventStore()
	snapshots := store.NewMemorySnapshotStore()

	hp := &hotpath.Processor{
		Events:        events,
		Snapshots:     snapshots,
		Idempotency:   store.NewMemoryIdempotencyStore(),
		Lifecycle:     store.NewMemoryLifecycleStore(),
		Cache:         inmemcache.New[*position.State](),
		Producer:      b,
		DefaultMethod: position.MethodFIFO,
	}
	d := &Dispatcher{
		Consumer:   b,
		Producer:   b,
		Hotpath:    hp,
		Coldpath:   &coldpath.Recalculator{Events: events, Snapshots: snapshots, Idempotency: store.NewMemoryIdempotencyStore(), Producer: b},
		Workers:    2,
		QueueDepth: 8,
	}

	var dlqPayload []byte
	require.NoError(t, b.Subscribe(bus.TopicTradeEventsDLQ, func(ctx context.Context, key string, value []byte, ack func() error) error {
		dlqPayload = value
		return ack()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))

	// Missing account/instrument/currency fails Derive, so this never even
	// reaches worker-pool validation; it is DLQ'd straight out of enqueue.
	w := wireTrade{
		TradeID:       "bad-1",
		TradeType:     "NEW_TRADE",
		Quantity:      "10",
		Price:         "5",
		EffectiveDate: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	publishWire(t, b, bus.TopicTradeEvents, w)

	eventually(t, time.Second, func() bool {
		return dlqPayload != nil
	})
}
