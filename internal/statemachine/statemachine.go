// Package statemachine validates and labels every transition a position
// may undergo: a small, explicit transition set over the three-state,
// three-event machine this engine needs.
package statemachine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/position"
)

// TradeEventKind is the subset of trade types that drive the state
// machine. RESET, CORRECTION, and the lifecycle events are internal and
// never passed to Apply.
type TradeEventKind string

const (
	EventNewTrade TradeEventKind = "NEW_TRADE"
	EventIncrease TradeEventKind = "INCREASE"
	EventDecrease TradeEventKind = "DECREASE"
)

// Apply validates the transition (current, event) given the quantity the
// position would have after applying the trade, and returns the resulting
// status and whether it differs from current. Every (state, event) pair
// not explicitly handled below is rejected with ErrStateViolation carrying
// a human-readable reason.
func Apply(current position.Status, event TradeEventKind, qtyAfter decimal.Decimal) (next position.Status, changed bool, err error) {
	switch current {
	case position.StatusNonExistent:
		switch event {
		case EventNewTrade:
			return position.StatusActive, true, nil
		case EventIncrease:
			return current, false, rejection(current, event, "cannot INCREASE a position that does not exist")
		case EventDecrease:
			return current, false, rejection(current, event, "cannot DECREASE a position that does not exist")
		}
	case position.StatusActive:
		switch event {
		case EventNewTrade:
			return current, false, rejection(current, event, "position already ACTIVE; use INCREASE/DECREASE")
		case EventIncrease:
			return position.StatusActive, false, nil
		case EventDecrease:
			if qtyAfter.IsZero() {
				return position.StatusTerminated, true, nil
			}
			return position.StatusActive, false, nil
		}
	case position.StatusTerminated:
		switch event {
		case EventNewTrade:
			return position.StatusActive, true, nil
		case EventIncrease:
			return current, false, rejection(current, event, "cannot INCREASE a TERMINATED position; submit NEW_TRADE to reopen")
		case EventDecrease:
			return current, false, rejection(current, event, "cannot DECREASE a TERMINATED position")
		}
	}
	return current, false, rejection(current, event, "unrecognized state")
}

func rejection(current position.Status, event TradeEventKind, reason string) error {
	return engineerr.StateViolation(fmt.Sprintf("%s -> %s: %s", current, event, reason))
}
