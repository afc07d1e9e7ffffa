package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/position"
)

// MemoryEventStore is an in-memory EventStore, used by the engine's own
// test suite and available as a lightweight standalone deployment option
// (the GORM-backed store is the production path, store_gorm.go).
type MemoryEventStore struct {
	mu     sync.Mutex
	events map[string][]position.Event // positionKey -> events, insertion order
}

// NewMemoryEventStore creates an empty MemoryEventStore.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string][]position.Event)}
}

func (s *MemoryEventStore) NextVersion(_ context.Context, positionKey string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max uint64
	for _, ev := range s.events[positionKey] {
		if ev.ArchivalFlag {
			continue
		}
		if ev.EventVer > max {
			max = ev.EventVer
		}
	}
	return max + 1, nil
}

func (s *MemoryEventStore) Append(_ context.Context, ev position.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events[ev.PositionKey] {
		if existing.EventVer == ev.EventVer {
			return engineerr.VersionConflict("event version already exists")
		}
	}
	s.events[ev.PositionKey] = append(s.events[ev.PositionKey], ev)
	return nil
}

func canonicalOrder(evs []position.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].EffectiveDate.Equal(evs[j].EffectiveDate) {
			return evs[i].EffectiveDate.Before(evs[j].EffectiveDate)
		}
		if !evs[i].OccurredAt.Equal(evs[j].OccurredAt) {
			return evs[i].OccurredAt.Before(evs[j].OccurredAt)
		}
		return evs[i].EventVer < evs[j].EventVer
	})
}

func (s *MemoryEventStore) List(_ context.Context, positionKey string) ([]position.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []position.Event
	for _, ev := range s.events[positionKey] {
		if !ev.ArchivalFlag {
			out = append(out, ev)
		}
	}
	canonicalOrder(out)
	return out, nil
}

func (s *MemoryEventStore) ListAsOf(ctx context.Context, positionKey string, asOf time.Time) ([]position.Event, error) {
	all, err := s.List(ctx, positionKey)
	if err != nil {
		return nil, err
	}
	var out []position.Event
	for _, ev := range all {
		if !ev.EffectiveDate.After(asOf) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryEventStore) Range(_ context.Context, positionKey string, fromVer, toVer uint64) ([]position.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []position.Event
	for _, ev := range s.events[positionKey] {
		if ev.EventVer >= fromVer && ev.EventVer <= toVer {
			out = append(out, ev)
		}
	}
	canonicalOrder(out)
	return out, nil
}

func (s *MemoryEventStore) FindByCorrelation(_ context.Context, correlationID string) ([]position.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []position.Event
	for _, evs := range s.events {
		for _, ev := range evs {
			if ev.CorrelationID.String() == correlationID {
				out = append(out, ev)
			}
		}
	}
	canonicalOrder(out)
	return out, nil
}

func (s *MemoryEventStore) MarkPartitionArchived(_ context.Context, _ uint32, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, evs := range s.events {
		for i := range evs {
			if !evs[i].ArchivalFlag && evs[i].OccurredAt.Before(cutoff) {
				evs[i].ArchivalFlag = true
				n++
			}
		}
		s.events[key] = evs
	}
	return n, nil
}

// MemorySnapshotStore is an in-memory SnapshotStore.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]*position.State
	versions  map[string]uint64
}

// NewMemorySnapshotStore creates an empty MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string]*position.State),
		versions:  make(map[string]uint64),
	}
}

func (s *MemorySnapshotStore) Load(_ context.Context, positionKey string) (*position.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.snapshots[positionKey]
	if !ok {
		return nil, false, nil
	}
	return st.Clone(), true, nil
}

func (s *MemorySnapshotStore) Save(_ context.Context, state *position.State, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.versions[state.PositionKey]
	if exists && current != expectedVersion {
		return engineerr.VersionConflict("snapshot version has advanced since load")
	}
	if !exists && expectedVersion != 0 {
		return engineerr.VersionConflict("snapshot does not exist at expected version")
	}
	s.snapshots[state.PositionKey] = state.Clone()
	s.versions[state.PositionKey] = state.Version
	return nil
}

func (s *MemorySnapshotStore) FindByAccount(_ context.Context, account string, limit, offset int) ([]*position.State, error) {
	return s.findBy(func(st *position.State) bool { return st.Account == account }, limit, offset), nil
}

func (s *MemorySnapshotStore) FindByInstrument(_ context.Context, instrument string, limit, offset int) ([]*position.State, error) {
	return s.findBy(func(st *position.State) bool { return st.Instrument == instrument }, limit, offset), nil
}

func (s *MemorySnapshotStore) FindByContract(_ context.Context, contractID string, limit, offset int) ([]*position.State, error) {
	return s.findBy(func(st *position.State) bool { return st.ContractID == contractID }, limit, offset), nil
}

func (s *MemorySnapshotStore) findBy(pred func(*position.State) bool, limit, offset int) []*position.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.snapshots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var matched []*position.State
	for _, k := range keys {
		st := s.snapshots[k]
		if pred(st) {
			matched = append(matched, st.Clone())
		}
	}
	if offset >= len(matched) {
		return nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end]
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]position.IdempotencyRecord
}

// NewMemoryIdempotencyStore creates an empty MemoryIdempotencyStore.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{records: make(map[string]position.IdempotencyRecord)}
}

func (s *MemoryIdempotencyStore) Check(_ context.Context, tradeID string) (bool, position.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tradeID]
	return ok, rec, nil
}

func (s *MemoryIdempotencyStore) Record(_ context.Context, tradeID, positionKey string, eventVer uint64, status position.IdempotencyOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tradeID] = position.IdempotencyRecord{
		TradeID:     tradeID,
		PositionKey: positionKey,
		EventVer:    eventVer,
		Status:      status,
		RecordedAt:  time.Now(),
	}
	return nil
}

// MemoryLifecycleStore is an in-memory LifecycleStore.
type MemoryLifecycleStore struct {
	mu     sync.Mutex
	events map[string][]position.LifecycleEvent
}

// NewMemoryLifecycleStore creates an empty MemoryLifecycleStore.
func NewMemoryLifecycleStore() *MemoryLifecycleStore {
	return &MemoryLifecycleStore{events: make(map[string][]position.LifecycleEvent)}
}

func (s *MemoryLifecycleStore) Append(_ context.Context, ev position.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.PositionKey] = append(s.events[ev.PositionKey], ev)
	return nil
}

func (s *MemoryLifecycleStore) ListByPosition(_ context.Context, positionKey string) ([]position.LifecycleEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]position.LifecycleEvent(nil), s.events[positionKey]...), nil
}

// MemoryReconciliationBreakStore is an in-memory ReconciliationBreakStore.
type MemoryReconciliationBreakStore struct {
	mu     sync.Mutex
	breaks []position.ReconciliationBreak
}

// NewMemoryReconciliationBreakStore creates an empty store.
func NewMemoryReconciliationBreakStore() *MemoryReconciliationBreakStore {
	return &MemoryReconciliationBreakStore{}
}

func (s *MemoryReconciliationBreakStore) Record(_ context.Context, b position.ReconciliationBreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breaks = append(s.breaks, b)
	return nil
}

// All returns every recorded break, for test assertions.
func (s *MemoryReconciliationBreakStore) All() []position.ReconciliationBreak {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]position.ReconciliationBreak(nil), s.breaks...)
}

// MemorySubmissionStore is an in-memory SubmissionStore.
type MemorySubmissionStore struct {
	mu          sync.Mutex
	submissions []position.RegulatorySubmission
}

// NewMemorySubmissionStore creates an empty store.
func NewMemorySubmissionStore() *MemorySubmissionStore {
	return &MemorySubmissionStore{}
}

func (s *MemorySubmissionStore) Record(_ context.Context, sub position.RegulatorySubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
	return nil
}
