// Package codec implements the snapshot compression scheme and trade
// payload marshalling this engine uses on the wire and at rest: lots
// compress into parallel arrays rather than a list of lot objects.
package codec

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/position"
)

// CompressedLots is the parallel-array encoding of a position's open lots.
// SettlementDates and SettledQuantities are optional; when
// absent they are nil slices, not empty slices, and Inflate treats nil
// specially (all-or-nothing backward-compat default, not a per-element
// default).
type CompressedLots struct {
	IDs               []uuid.UUID
	TradeDates        []time.Time
	SettlementDates   []*time.Time
	RemainingQtys     []decimal.Decimal
	OriginalQtys      []decimal.Decimal
	CostBases         []decimal.Decimal
	CurrentRefPrices  []decimal.Decimal
	SettledQuantities []*decimal.Decimal
}

// Compress encodes lots into the parallel-array snapshot representation.
func Compress(lots []position.Lot) CompressedLots {
	c := CompressedLots{
		IDs:              make([]uuid.UUID, len(lots)),
		TradeDates:       make([]time.Time, len(lots)),
		SettlementDates:  make([]*time.Time, len(lots)),
		RemainingQtys:    make([]decimal.Decimal, len(lots)),
		OriginalQtys:     make([]decimal.Decimal, len(lots)),
		CostBases:        make([]decimal.Decimal, len(lots)),
		CurrentRefPrices: make([]decimal.Decimal, len(lots)),
		SettledQuantities: make([]*decimal.Decimal, len(lots)),
	}
	for i, l := range lots {
		c.IDs[i] = l.ID
		c.TradeDates[i] = l.TradeDate
		c.SettlementDates[i] = l.SettlementDate
		c.RemainingQtys[i] = l.RemainingQty
		c.OriginalQtys[i] = l.OriginalQty
		c.CostBases[i] = l.CostBasis
		c.CurrentRefPrices[i] = l.CurrentRefPrice
		c.SettledQuantities[i] = l.SettledQuantity
	}
	return c
}

// Inflate reconstructs lots from their parallel-array encoding. Missing
// optional arrays (OriginalQtys, CostBases) trigger the backward-compat
// defaulting path of the older codec revision: CostBasis := CurrentRefPrice
// and OriginalQty := RemainingQty.
// All present arrays must have equal length, or ErrDataCorruption is
// returned.
func Inflate(c CompressedLots) ([]position.Lot, error) {
	n := len(c.IDs)
	for _, length := range []int{len(c.TradeDates), len(c.RemainingQtys)} {
		if length != n {
			return nil, engineerr.DataCorruption("compressed lot arrays have mismatched lengths", nil)
		}
	}
	if len(c.SettlementDates) != 0 && len(c.SettlementDates) != n {
		return nil, engineerr.DataCorruption("settlementDates array length mismatch", nil)
	}
	if len(c.OriginalQtys) != 0 && len(c.OriginalQtys) != n {
		return nil, engineerr.DataCorruption("originalQtys array length mismatch", nil)
	}
	if len(c.CostBases) != 0 && len(c.CostBases) != n {
		return nil, engineerr.DataCorruption("costBases array length mismatch", nil)
	}
	if len(c.CurrentRefPrices) != 0 && len(c.CurrentRefPrices) != n {
		return nil, engineerr.DataCorruption("currentRefPrices array length mismatch", nil)
	}
	if len(c.SettledQuantities) != 0 && len(c.SettledQuantities) != n {
		return nil, engineerr.DataCorruption("settledQuantities array length mismatch", nil)
	}

	lots := make([]position.Lot, n)
	for i := 0; i < n; i++ {
		lot := position.Lot{
			ID:           c.IDs[i],
			TradeDate:    c.TradeDates[i],
			RemainingQty: c.RemainingQtys[i],
		}
		if len(c.SettlementDates) == n {
			lot.SettlementDate = c.SettlementDates[i]
		}
		if len(c.CurrentRefPrices) == n {
			lot.CurrentRefPrice = c.CurrentRefPrices[i]
		}
		if len(c.CostBases) == n {
			lot.CostBasis = c.CostBases[i]
		} else {
			lot.CostBasis = lot.CurrentRefPrice
		}
		if len(c.OriginalQtys) == n {
			lot.OriginalQty = c.OriginalQtys[i]
		} else {
			lot.OriginalQty = lot.RemainingQty
		}
		if len(c.SettledQuantities) == n {
			lot.SettledQuantity = c.SettledQuantities[i]
		}
		lots[i] = lot
	}
	return lots, nil
}

// TradePayload is the JSON shape of an event's Payload column. Numeric
// fields are decimal.Decimal, which marshals as a JSON string to avoid
// float drift.
type TradePayload struct {
	TradeID       string          `json:"tradeId"`
	PositionKey   string          `json:"positionKey"`
	TradeType     string          `json:"tradeType"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	EffectiveDate time.Time       `json:"effectiveDate"`
}

// MarshalPayload encodes a TradePayload as JSON.
func MarshalPayload(p TradePayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindInvalidArgument, "failed to marshal trade payload", err)
	}
	return b, nil
}

// UnmarshalPayload decodes JSON into a TradePayload. Unknown fields are
// ignored (encoding/json's default behavior already ignores unrecognized
// keys; no DisallowUnknownFields is configured).
func UnmarshalPayload(b []byte) (TradePayload, error) {
	var p TradePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return TradePayload{}, engineerr.DataCorruption("failed to unmarshal trade payload", err)
	}
	return p, nil
}
