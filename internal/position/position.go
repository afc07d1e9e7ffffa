// Package position defines the in-memory position aggregate and the event
// and idempotency record shapes that flow through the engine. Types here
// are pure data; mutation logic lives in internal/lotengine and
// internal/statemachine.
package position

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is a position's lifecycle state.
type Status string

const (
	StatusNonExistent Status = "NON_EXISTENT"
	StatusActive      Status = "ACTIVE"
	StatusTerminated  Status = "TERMINATED"
)

// ReconStatus describes whether a snapshot reflects settled, provisional,
// or pending state.
type ReconStatus string

const (
	ReconReconciled  ReconStatus = "RECONCILED"
	ReconProvisional ReconStatus = "PROVISIONAL"
	ReconPending     ReconStatus = "PENDING"
)

// TaxLotMethod selects how ReduceLots orders open lots.
type TaxLotMethod string

const (
	MethodFIFO TaxLotMethod = "FIFO"
	MethodLIFO TaxLotMethod = "LIFO"
	MethodHIFO TaxLotMethod = "HIFO"
)

// Lot is a tax lot: a quantum of a position created by an acquiring trade.
// Reductions yield a new Lot value with a decreased RemainingQty; Lot is
// immutable in principle.
type Lot struct {
	ID               uuid.UUID
	TradeDate        time.Time
	SettlementDate   *time.Time
	OriginalQty      decimal.Decimal
	RemainingQty     decimal.Decimal
	CostBasis        decimal.Decimal
	CurrentRefPrice  decimal.Decimal
	SettledQuantity  *decimal.Decimal
}

// Closed reports whether this lot has been fully consumed.
func (l Lot) Closed() bool {
	return l.RemainingQty.IsZero()
}

// SchedulePoint is one entry of a position's price/quantity schedule,
// sorted by Date.
type SchedulePoint struct {
	Date  time.Time
	Qty   decimal.Decimal
	Price decimal.Decimal
}

// State is the in-memory position aggregate. No
// thread-safety is provided here; the dispatcher (C13) guarantees
// single-threaded access per PositionKey.
type State struct {
	PositionKey          string
	Account              string
	Instrument           string
	Currency             string
	Direction            string // "LONG" or "SHORT", informational; sign lives on quantities
	OpenLots             []Lot  // insertion order = arrival order
	Version              uint64
	Status               Status
	ReconciliationStatus ReconStatus
	ProvisionalTradeID   *string
	PriceQuantitySchedule []SchedulePoint
	ContractID           string
	LastUpdatedAt        time.Time
}

// TotalQty returns the sum of RemainingQty across all open lots.
func (s *State) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.OpenLots {
		total = total.Add(l.RemainingQty)
	}
	return total
}

// Clone returns a deep-enough copy of s suitable for speculative mutation
// (e.g. during optimistic-lock retry, or as a coldpath replay baseline).
func (s *State) Clone() *State {
	cp := *s
	cp.OpenLots = append([]Lot(nil), s.OpenLots...)
	cp.PriceQuantitySchedule = append([]SchedulePoint(nil), s.PriceQuantitySchedule...)
	return &cp
}

// EventType enumerates the kinds of events appended to the event store.
type EventType string

const (
	EventNewTrade                   EventType = "NEW_TRADE"
	EventIncrease                   EventType = "INCREASE"
	EventDecrease                   EventType = "DECREASE"
	EventReset                      EventType = "RESET"
	EventCorrection                 EventType = "CORRECTION"
	EventPositionClosed             EventType = "POSITION_CLOSED"
	EventProvisionalTradeApplied    EventType = "PROVISIONAL_TRADE_APPLIED"
	EventHistoricalPositionCorrected EventType = "HISTORICAL_POSITION_CORRECTED"
)

// LotAllocationEntry is one line of the audit trail recorded for an
// AddLot/ReduceLots call.
type LotAllocationEntry struct {
	LotID       uuid.UUID
	Qty         decimal.Decimal
	ClosePrice  decimal.Decimal
	RealizedPnL decimal.Decimal
}

// Event is an immutable record of an applied trade or lifecycle transition.
// (PositionKey, EventVer) is its primary key.
type Event struct {
	PositionKey   string
	EventVer      uint64
	EventType     EventType
	EffectiveDate time.Time
	OccurredAt    time.Time
	Payload       []byte // JSON, see internal/codec
	MetaLots      []LotAllocationEntry
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
	ContractID    string
	UserID        string
	ArchivalFlag  bool
}

// IdempotencyOutcome records how a trade was resolved, for dedup recall.
type IdempotencyOutcome string

const (
	OutcomeProcessed IdempotencyOutcome = "PROCESSED"
	OutcomeFailed    IdempotencyOutcome = "FAILED"
)

// IdempotencyRecord is the tradeId -> outcome mapping.
type IdempotencyRecord struct {
	TradeID      string
	PositionKey  string
	EventVer     uint64
	Status       IdempotencyOutcome
	RecordedAt   time.Time
}

// LifecycleKind enumerates upi_history entries.
type LifecycleKind string

const (
	LifecycleCreated   LifecycleKind = "CREATED"
	LifecycleTerminated LifecycleKind = "TERMINATED"
	LifecycleReopened  LifecycleKind = "REOPENED"
)

// LifecycleEvent is one upi_history row: an audit trail of position
// lifecycle transitions.
type LifecycleEvent struct {
	HistoryID   uuid.UUID
	PositionKey string
	Kind        LifecycleKind
	OccurredAt  time.Time
}

// ReconciliationBreak is an out-of-band discrepancy row. Populated by the coldpath when a backdated
// correction's magnitude exceeds the configured tolerance.
type ReconciliationBreak struct {
	BreakID     uuid.UUID
	PositionKey string
	Reason      string
	OldTotalQty decimal.Decimal
	NewTotalQty decimal.Decimal
	DetectedAt  time.Time
}

// RegulatorySubmission tracks submission of a position for regulatory
// reporting. Only tracking is in scope; report content generation is a
// non-goal.
type RegulatorySubmission struct {
	SubmissionID uuid.UUID
	PositionKey  string
	SubmittedAt  time.Time
	Status       string
}

// Contract holds the tax-lot method and ancillary policy for a contract.
type Contract struct {
	ContractID    string
	TaxLotMethod  TaxLotMethod
	BusinessRules map[string]string
}

// DefaultContract builds a Contract carrying only the given fallback
// tax-lot method.
func DefaultContract(contractID string, fallback TaxLotMethod) Contract {
	return Contract{ContractID: contractID, TaxLotMethod: fallback}
}
