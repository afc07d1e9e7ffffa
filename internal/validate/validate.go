// Package validate implements the validation gate: field
// and range checks plus a state-machine pre-check. Findings never raise an
// error to the caller; the dispatcher routes a non-empty finding list to
// the DLQ topic.
package validate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/srviswan/positionengine/internal/position"
	"github.com/srviswan/positionengine/internal/statemachine"
	"github.com/srviswan/positionengine/internal/trade"
)

// maxPrice is the sanity-check upper bound on a trade's price.
var maxPrice = decimal.NewFromInt(1_000_000)

// Finding is one validation failure, with enough detail to build a DLQ
// message.
type Finding struct {
	Field     string
	ErrorType string
	Message   string
}

// Validate runs every field/bounds check and the state-machine pre-check
// against t, given the current snapshot (nil if the position does not yet
// exist). today is injected for determinism.
func Validate(t trade.Trade, snapshot *position.State, today time.Time) []Finding {
	var findings []Finding

	if t.TradeID == "" {
		findings = append(findings, Finding{"tradeId", "MISSING_FIELD", "tradeId is required"})
	}
	if t.PositionKey == "" {
		findings = append(findings, Finding{"positionKey", "MISSING_FIELD", "positionKey is required"})
	}
	switch t.TradeType {
	case trade.TypeNewTrade, trade.TypeIncrease, trade.TypeDecrease:
	default:
		findings = append(findings, Finding{"tradeType", "INVALID_VALUE", fmt.Sprintf("unrecognized tradeType %q", t.TradeType)})
	}
	if t.Quantity.IsZero() {
		findings = append(findings, Finding{"quantity", "OUT_OF_RANGE", "quantity must be non-zero"})
	}
	if t.Price.Sign() <= 0 {
		findings = append(findings, Finding{"price", "OUT_OF_RANGE", "price must be > 0"})
	} else if t.Price.GreaterThan(maxPrice) {
		findings = append(findings, Finding{"price", "OUT_OF_RANGE", "price exceeds maximum of 1,000,000"})
	}
	if t.EffectiveDate.IsZero() {
		findings = append(findings, Finding{"effectiveDate", "MISSING_FIELD", "effectiveDate is required"})
	} else if t.EffectiveDate.After(today.AddDate(1, 0, 0)) {
		findings = append(findings, Finding{"effectiveDate", "OUT_OF_RANGE", "effectiveDate is more than one year in the future"})
	}

	// State-machine pre-check: only run once the field checks above pass,
	// since it needs a well-formed tradeType.
	if len(findings) == 0 {
		current := position.StatusNonExistent
		if snapshot != nil {
			current = snapshot.Status
		}
		qtyAfter := placeholderQtyAfter(t, snapshot)
		if _, _, err := statemachine.Apply(current, statemachine.TradeEventKind(t.TradeType), qtyAfter); err != nil {
			findings = append(findings, Finding{"tradeType", "STATE_VIOLATION", err.Error()})
		}
	}

	return findings
}

// placeholderQtyAfter computes the quantityAfter the state-machine
// pre-check needs. For DECREASE it uses a placeholder of 1, since the
// real zero-crossing check happens inside ReduceLots in the hotpath;
// for NEW_TRADE/INCREASE it is the actual resulting total.
func placeholderQtyAfter(t trade.Trade, snapshot *position.State) decimal.Decimal {
	if t.TradeType == trade.TypeDecrease {
		return decimal.NewFromInt(1)
	}
	current := decimal.Zero
	if snapshot != nil {
		current = snapshot.TotalQty()
	}
	return current.Add(t.SignedDelta())
}
