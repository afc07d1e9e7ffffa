// Package store defines the persistence ports for the event/snapshot/
// idempotency triad plus three auxiliary tables (upi_history,
// reconciliation_breaks, regulatory_submissions). Concrete GORM/MySQL
// implementations live in store_gorm.go; in-memory fakes used
// by the rest of this module's test suite live in store_memory.go.
package store

import (
	"context"
	"time"

	"github.com/srviswan/positionengine/internal/position"
)

// EventStore is the append-only event log.
type EventStore interface {
	// NextVersion returns max(eventVer)+1 over non-archived events for
	// key, or 1 if none exist.
	NextVersion(ctx context.Context, positionKey string) (uint64, error)
	// Append persists ev atomically, failing with an engineerr
	// VersionConflict if (positionKey, eventVer) already exists.
	Append(ctx context.Context, ev position.Event) error
	// List returns all non-archived events for key ordered by
	// (effectiveDate, occurredAt, eventVer).
	List(ctx context.Context, positionKey string) ([]position.Event, error)
	// ListAsOf returns events with effectiveDate <= asOf, same ordering.
	ListAsOf(ctx context.Context, positionKey string, asOf time.Time) ([]position.Event, error)
	// Range returns events with eventVer in [fromVer, toVer].
	Range(ctx context.Context, positionKey string, fromVer, toVer uint64) ([]position.Event, error)
	// FindByCorrelation returns every event sharing a correlation ID.
	FindByCorrelation(ctx context.Context, correlationID string) ([]position.Event, error)
	// MarkPartitionArchived flags non-archived events whose occurredAt is
	// before cutoff as archived, for the archival sweep. The partition
	// argument is not used by either implementation: matching events of
	// every partition are flagged.
	MarkPartitionArchived(ctx context.Context, partition uint32, cutoff time.Time) (int64, error)
}

// SnapshotStore is the one-row-per-position denormalized view.
type SnapshotStore interface {
	Load(ctx context.Context, positionKey string) (*position.State, bool, error)
	// Save overwrites the row for state.PositionKey with an optimistic
	// check against expectedVersion; returns engineerr VersionConflict if
	// the stored version no longer matches.
	Save(ctx context.Context, state *position.State, expectedVersion uint64) error
	FindByAccount(ctx context.Context, account string, limit, offset int) ([]*position.State, error)
	FindByInstrument(ctx context.Context, instrument string, limit, offset int) ([]*position.State, error)
	FindByContract(ctx context.Context, contractID string, limit, offset int) ([]*position.State, error)
}

// IdempotencyStore is the tradeId -> outcome dedup table.
type IdempotencyStore interface {
	Check(ctx context.Context, tradeID string) (exists bool, rec position.IdempotencyRecord, err error)
	Record(ctx context.Context, tradeID, positionKey string, eventVer uint64, status position.IdempotencyOutcome) error
}

// LifecycleStore is the upi_history audit table.
type LifecycleStore interface {
	Append(ctx context.Context, ev position.LifecycleEvent) error
	ListByPosition(ctx context.Context, positionKey string) ([]position.LifecycleEvent, error)
}

// ReconciliationBreakStore is the reconciliation_breaks table.
type ReconciliationBreakStore interface {
	Record(ctx context.Context, b position.ReconciliationBreak) error
}

// SubmissionStore is the regulatory_submissions table.
// Only submission tracking is in scope; report generation is a non-goal.
type SubmissionStore interface {
	Record(ctx context.Context, s position.RegulatorySubmission) error
}
