// Package lotengine implements the pure tax-lot allocation algorithms that
// mutate an internal/position.State: adding a lot on an acquiring trade,
// reducing lots by a configured method on a closing trade, and updating a
// lot's mark on a RESET event. All functions are side-effect free and
// operate on decimal.Decimal for arbitrary-precision arithmetic; no
// rounding is applied here.
package lotengine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/position"
)

// Allocation is the audit record returned by AddLot/ReduceLots, threaded
// into the resulting Event's MetaLots.
type Allocation struct {
	Entries        []position.LotAllocationEntry
	FullyAllocated bool
	RealizedPnL    decimal.Decimal
	CorrelationID  uuid.UUID
	Method         position.TaxLotMethod
}

// AddLot appends a new open lot to state for an acquiring trade and keeps
// state.PriceQuantitySchedule sorted by date, replacing any existing entry
// for the same tradeDate. qty carries the sign convention: positive for
// LONG, negative for SHORT.
func AddLot(state *position.State, qty, price decimal.Decimal, tradeDate time.Time, settlementDate *time.Time) (Allocation, error) {
	if qty.IsZero() {
		return Allocation{}, engineerr.InvalidArgument("quantity must be non-zero")
	}
	lot := position.Lot{
		ID:              uuid.New(),
		TradeDate:       tradeDate,
		SettlementDate:  settlementDate,
		OriginalQty:     qty,
		RemainingQty:    qty,
		CostBasis:       price,
		CurrentRefPrice: price,
	}
	state.OpenLots = append(state.OpenLots, lot)
	upsertSchedule(state, tradeDate, qty, price)

	return Allocation{
		Entries: []position.LotAllocationEntry{{
			LotID:       lot.ID,
			Qty:         qty,
			ClosePrice:  price,
			RealizedPnL: decimal.Zero,
		}},
		FullyAllocated: true,
		RealizedPnL:    decimal.Zero,
		CorrelationID:  uuid.New(),
	}, nil
}

func upsertSchedule(state *position.State, date time.Time, qty, price decimal.Decimal) {
	for i := range state.PriceQuantitySchedule {
		if state.PriceQuantitySchedule[i].Date.Equal(date) {
			state.PriceQuantitySchedule[i] = position.SchedulePoint{Date: date, Qty: qty, Price: price}
			sortSchedule(state)
			return
		}
	}
	state.PriceQuantitySchedule = append(state.PriceQuantitySchedule, position.SchedulePoint{Date: date, Qty: qty, Price: price})
	sortSchedule(state)
}

func sortSchedule(state *position.State) {
	sort.SliceStable(state.PriceQuantitySchedule, func(i, j int) bool {
		return state.PriceQuantitySchedule[i].Date.Before(state.PriceQuantitySchedule[j].Date)
	})
}

// ReduceLots consumes qtyToReduce (always expressed as a positive
// magnitude) from state's open lots, ordered per method, recording
// realized P&L against closePrice. Lots whose RemainingQty reaches zero
// are removed from state.OpenLots. If qtyToReduce exceeds total open
// quantity, Allocation.FullyAllocated is false and only what is available
// is allocated — the position is never over-closed.
func ReduceLots(state *position.State, qtyToReduce decimal.Decimal, method position.TaxLotMethod, closePrice decimal.Decimal) (Allocation, error) {
	if qtyToReduce.IsZero() {
		return Allocation{}, engineerr.InvalidArgument("quantity must be non-zero")
	}
	magnitude := qtyToReduce.Abs()
	isLong := isLongPosition(state)

	order := orderForReduction(state.OpenLots, method)

	remaining := magnitude
	var entries []position.LotAllocationEntry
	realizedTotal := decimal.Zero
	closed := map[uuid.UUID]bool{}
	updated := map[uuid.UUID]decimal.Decimal{}

	for _, idx := range order {
		if remaining.IsZero() {
			break
		}
		lot := state.OpenLots[idx]
		available := lot.RemainingQty.Abs()
		if available.IsZero() {
			continue
		}
		take := decimal.Min(remaining, available)
		remaining = remaining.Sub(take)

		var pnl decimal.Decimal
		if isLong {
			pnl = closePrice.Sub(lot.CostBasis).Mul(take)
		} else {
			pnl = lot.CostBasis.Sub(closePrice).Mul(take)
		}
		realizedTotal = realizedTotal.Add(pnl)

		entries = append(entries, position.LotAllocationEntry{
			LotID:       lot.ID,
			Qty:         take,
			ClosePrice:  closePrice,
			RealizedPnL: pnl,
		})

		newRemaining := available.Sub(take)
		if !isLong {
			newRemaining = newRemaining.Neg()
		}
		updated[lot.ID] = newRemaining
		if newRemaining.IsZero() {
			closed[lot.ID] = true
		}
	}

	var kept []position.Lot
	for _, l := range state.OpenLots {
		if newQty, ok := updated[l.ID]; ok {
			if closed[l.ID] {
				continue
			}
			l.RemainingQty = newQty
		}
		kept = append(kept, l)
	}
	state.OpenLots = kept

	return Allocation{
		Entries:        entries,
		FullyAllocated: remaining.IsZero(),
		RealizedPnL:    realizedTotal,
		CorrelationID:  uuid.New(),
		Method:         method,
	}, nil
}

// isLongPosition infers sign convention from any open lot; a position with
// no open lots defaults to LONG (sign is irrelevant until a lot exists).
func isLongPosition(state *position.State) bool {
	for _, l := range state.OpenLots {
		return l.RemainingQty.Sign() >= 0
	}
	return true
}

// orderForReduction returns the indices of state.OpenLots in the order
// ReduceLots should consume them, per method:
//   - FIFO: ascending TradeDate, ties broken by insertion order
//   - LIFO: descending TradeDate, ties broken by reverse insertion order
//   - HIFO: descending CostBasis, ties broken by FIFO order
func orderForReduction(lots []position.Lot, method position.TaxLotMethod) []int {
	idx := make([]int, len(lots))
	for i := range idx {
		idx[i] = i
	}
	switch method {
	case position.MethodLIFO:
		sort.SliceStable(idx, func(a, b int) bool {
			ta, tb := lots[idx[a]].TradeDate, lots[idx[b]].TradeDate
			if ta.Equal(tb) {
				return idx[a] > idx[b]
			}
			return ta.After(tb)
		})
	case position.MethodHIFO:
		sort.SliceStable(idx, func(a, b int) bool {
			ca, cb := lots[idx[a]].CostBasis, lots[idx[b]].CostBasis
			if ca.Equal(cb) {
				// tie-break FIFO: ascending trade date, then insertion order
				ta, tb := lots[idx[a]].TradeDate, lots[idx[b]].TradeDate
				if ta.Equal(tb) {
					return idx[a] < idx[b]
				}
				return ta.Before(tb)
			}
			return ca.GreaterThan(cb)
		})
	default: // FIFO
		sort.SliceStable(idx, func(a, b int) bool {
			ta, tb := lots[idx[a]].TradeDate, lots[idx[b]].TradeDate
			if ta.Equal(tb) {
				return idx[a] < idx[b]
			}
			return ta.Before(tb)
		})
	}
	return idx
}

// UpdatePrice alters a lot's CurrentRefPrice only, used by RESET events.
// Returns the updated lot; callers splice it back into state.OpenLots.
func UpdatePrice(lot position.Lot, newPrice decimal.Decimal) position.Lot {
	lot.CurrentRefPrice = newPrice
	return lot
}
