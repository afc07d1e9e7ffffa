package lotengine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srviswan/positionengine/internal/position"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func day(offset int) time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func TestAddLot_RejectsZeroQty(t *testing.T) {
	state := &position.State{}
	_, err := AddLot(state, decimal.Zero, d("50"), day(0), nil)
	assert.Error(t, err)
}

func TestAddLot_AppendsAndSchedules(t *testing.T) {
	state := &position.State{}
	alloc, err := AddLot(state, d("100"), d("50"), day(0), nil)
	require.NoError(t, err)
	assert.True(t, alloc.FullyAllocated)
	require.Len(t, state.OpenLots, 1)
	assert.True(t, state.OpenLots[0].RemainingQty.Equal(d("100")))
	assert.True(t, state.OpenLots[0].CostBasis.Equal(d("50")))
	require.Len(t, state.PriceQuantitySchedule, 1)
}

// S2: FIFO partial close.
func TestReduceLots_FIFOPartialClose(t *testing.T) {
	state := &position.State{}
	_, err := AddLot(state, d("100"), d("50"), day(0), nil)
	require.NoError(t, err)
	_, err = AddLot(state, d("50"), d("55"), day(1), nil)
	require.NoError(t, err)

	alloc, err := ReduceLots(state, d("80"), position.MethodFIFO, d("60"))
	require.NoError(t, err)
	assert.True(t, alloc.FullyAllocated)
	assert.True(t, alloc.RealizedPnL.Equal(d("800")), "expected 800, got %s", alloc.RealizedPnL)

	require.Len(t, state.OpenLots, 2)
	assert.True(t, state.OpenLots[0].RemainingQty.Equal(d("20")))
	assert.True(t, state.OpenLots[1].RemainingQty.Equal(d("50")))
}

// S3, close half: a full close realizes P&L and empties the lots.
func TestReduceLots_FullCloseRealizesPnL(t *testing.T) {
	state := &position.State{}
	_, err := AddLot(state, d("100"), d("50"), day(0), nil)
	require.NoError(t, err)

	alloc, err := ReduceLots(state, d("100"), position.MethodFIFO, d("55"))
	require.NoError(t, err)
	assert.True(t, alloc.FullyAllocated)
	assert.True(t, alloc.RealizedPnL.Equal(d("500")))
	assert.Empty(t, state.OpenLots)
	assert.True(t, state.TotalQty().IsZero())
}

func TestReduceLots_UnderAllocationDoesNotOverClose(t *testing.T) {
	state := &position.State{}
	_, err := AddLot(state, d("100"), d("50"), day(0), nil)
	require.NoError(t, err)

	alloc, err := ReduceLots(state, d("150"), position.MethodFIFO, d("60"))
	require.NoError(t, err)
	assert.False(t, alloc.FullyAllocated)
	assert.Empty(t, state.OpenLots)
	assert.True(t, alloc.RealizedPnL.Equal(d("1000")))
}

func TestReduceLots_LIFOOrdersDescendingTradeDate(t *testing.T) {
	state := &position.State{}
	_, _ = AddLot(state, d("10"), d("10"), day(0), nil)
	_, _ = AddLot(state, d("10"), d("20"), day(1), nil)

	alloc, err := ReduceLots(state, d("10"), position.MethodLIFO, d("25"))
	require.NoError(t, err)
	require.Len(t, alloc.Entries, 1)
	// Most recent lot (cost basis 20) should be consumed first under LIFO.
	assert.True(t, alloc.Entries[0].ClosePrice.Equal(d("25")))
	require.Len(t, state.OpenLots, 1)
	assert.True(t, state.OpenLots[0].CostBasis.Equal(d("10")))
}

func TestReduceLots_HIFOOrdersDescendingCostBasis(t *testing.T) {
	state := &position.State{}
	_, _ = AddLot(state, d("10"), d("30"), day(0), nil) // earliest by date
	_, _ = AddLot(state, d("10"), d("10"), day(1), nil)
	_, _ = AddLot(state, d("10"), d("50"), day(2), nil) // highest cost basis

	alloc, err := ReduceLots(state, d("10"), position.MethodHIFO, d("60"))
	require.NoError(t, err)
	require.Len(t, state.OpenLots, 2)
	for _, l := range state.OpenLots {
		assert.False(t, l.CostBasis.Equal(d("50")), "highest-cost-basis lot should have been consumed first")
	}
	assert.True(t, alloc.RealizedPnL.Equal(d("100")))
}

func TestReduceLots_FIFOConsumesPrefixOfOrdering(t *testing.T) {
	state := &position.State{}
	_, _ = AddLot(state, d("10"), d("1"), day(0), nil)
	_, _ = AddLot(state, d("10"), d("2"), day(1), nil)
	_, _ = AddLot(state, d("10"), d("3"), day(2), nil)

	_, err := ReduceLots(state, d("15"), position.MethodFIFO, d("5"))
	require.NoError(t, err)
	require.Len(t, state.OpenLots, 2)
	assert.True(t, state.OpenLots[0].RemainingQty.Equal(d("5")))
	assert.True(t, state.OpenLots[0].CostBasis.Equal(d("2")))
	assert.True(t, state.OpenLots[1].CostBasis.Equal(d("3")))
}

func TestReduceLots_ShortPositionSignConvention(t *testing.T) {
	state := &position.State{}
	lot := position.Lot{
		ID:              uuid.New(),
		TradeDate:       day(0),
		OriginalQty:     d("-100"),
		RemainingQty:    d("-100"),
		CostBasis:       d("50"),
		CurrentRefPrice: d("50"),
	}
	state.OpenLots = []position.Lot{lot}

	alloc, err := ReduceLots(state, d("40"), position.MethodFIFO, d("45"))
	require.NoError(t, err)
	assert.True(t, alloc.FullyAllocated)
	// SHORT: realizedPnL = (costBasis - closePrice) * qty = (50-45)*40 = 200
	assert.True(t, alloc.RealizedPnL.Equal(d("200")))
	require.Len(t, state.OpenLots, 1)
	assert.True(t, state.OpenLots[0].RemainingQty.Equal(d("-60")))
}

func TestReduceLots_RejectsZeroQty(t *testing.T) {
	state := &position.State{}
	_, _ = AddLot(state, d("10"), d("1"), day(0), nil)
	_, err := ReduceLots(state, decimal.Zero, position.MethodFIFO, d("1"))
	assert.Error(t, err)
}
