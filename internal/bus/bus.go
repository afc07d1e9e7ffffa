// Package bus defines the abstract messaging ports the engine consumes.
// Concrete vendor bindings (Kafka, Solace) are out of scope;
// only the interfaces and an in-memory reference adapter
// (internal/bus/inmembus) live in this module.
package bus

import "context"

// Recognized topic names. Configurable in principle; these
// are the defaults.
const (
	TopicTradeEvents                    = "trade-events"
	TopicBackdatedTrades                = "backdated-trades"
	TopicTradeEventsDLQ                 = "trade-events-dlq"
	TopicTradeEventsErrors               = "trade-events-errors"
	TopicHistoricalPositionCorrected    = "historical-position-corrected-events"
)

// HandlerFunc processes one message. It must call ack() only after the
// message has been durably handled; returning a non-nil error without
// acking signals the bus to redeliver.
type HandlerFunc func(ctx context.Context, key string, value []byte, ack func() error) error

// Producer publishes messages to a topic, using key as the bus's
// partitioning key so consumers in the same group see per-key order.
type Producer interface {
	Send(ctx context.Context, topic, key string, payload []byte) error
}

// Consumer subscribes handlers to topics and controls the poll loop's
// lifecycle.
type Consumer interface {
	Subscribe(topic string, handler HandlerFunc) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
