// Package trade defines the wire-level trade event shape the engine
// ingests from the bus, before it is turned into position mutations.
package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/srviswan/positionengine/internal/classifier"
	"github.com/srviswan/positionengine/internal/posid"
)

// Type enumerates the trade types the engine accepts.
type Type string

const (
	TypeNewTrade Type = "NEW_TRADE"
	TypeIncrease Type = "INCREASE"
	TypeDecrease Type = "DECREASE"
)

// Trade is one upstream trade event, as received from the trade-events
// topic.
type Trade struct {
	TradeID        string
	PositionKey    string // derived if empty, see Derive
	Account        string
	Instrument     string
	Currency       string
	Direction      posid.Direction
	TradeType      Type
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	EffectiveDate  time.Time
	SettlementDate *time.Time
	ContractID     string
	UserID         string
	CorrelationID  uuid.UUID
	CausationID    uuid.UUID

	// Label is set by the classifier during ingestion and
	// read by the dispatcher to route hotpath vs. coldpath.
	Label classifier.Label
}

// Derive fills in PositionKey from Account/Instrument/Currency/Direction
// when it is empty.
func (t *Trade) Derive() error {
	if t.PositionKey != "" {
		return nil
	}
	key, err := posid.Derive(t.Account, t.Instrument, t.Currency, t.Direction)
	if err != nil {
		return err
	}
	t.PositionKey = key
	return nil
}

// SignedDelta returns Quantity with its sign adjusted for TradeType:
// NEW_TRADE/INCREASE are positive (acquiring), DECREASE is negative
// (reducing).
func (t *Trade) SignedDelta() decimal.Decimal {
	switch t.TradeType {
	case TypeDecrease:
		return t.Quantity.Abs().Neg()
	default:
		return t.Quantity.Abs()
	}
}
