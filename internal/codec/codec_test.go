package codec

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srviswan/positionengine/internal/position"
)

func sampleLots() []position.Lot {
	settle := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return []position.Lot{
		{
			ID:              uuid.New(),
			TradeDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			SettlementDate:  &settle,
			OriginalQty:     decimal.NewFromInt(100),
			RemainingQty:    decimal.NewFromInt(20),
			CostBasis:       decimal.NewFromInt(50),
			CurrentRefPrice: decimal.NewFromInt(55),
		},
		{
			ID:              uuid.New(),
			TradeDate:       time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			OriginalQty:     decimal.NewFromInt(50),
			RemainingQty:    decimal.NewFromInt(50),
			CostBasis:       decimal.NewFromInt(55),
			CurrentRefPrice: decimal.NewFromInt(55),
		},
	}
}

func TestInflateCompress_RoundTrips(t *testing.T) {
	lots := sampleLots()
	c := Compress(lots)
	back, err := Inflate(c)
	require.NoError(t, err)
	require.Len(t, back, len(lots))
	for i := range lots {
		assert.Equal(t, lots[i].ID, back[i].ID)
		assert.True(t, lots[i].RemainingQty.Equal(back[i].RemainingQty))
		assert.True(t, lots[i].OriginalQty.Equal(back[i].OriginalQty))
		assert.True(t, lots[i].CostBasis.Equal(back[i].CostBasis))
	}
}

func TestInflate_BackwardCompatDefaults(t *testing.T) {
	lots := sampleLots()
	c := Compress(lots)
	// Simulate the legacy codec shape: no OriginalQtys/CostBases arrays.
	c.OriginalQtys = nil
	c.CostBases = nil

	back, err := Inflate(c)
	require.NoError(t, err)
	for i := range back {
		assert.True(t, back[i].CostBasis.Equal(back[i].CurrentRefPrice))
		assert.True(t, back[i].OriginalQty.Equal(back[i].RemainingQty))
	}
}

func TestInflate_RejectsMismatchedLengths(t *testing.T) {
	lots := sampleLots()
	c := Compress(lots)
	c.CostBases = c.CostBases[:1]
	_, err := Inflate(c)
	assert.Error(t, err)
}

func TestPayload_RoundTripsAndIgnoresUnknownFields(t *testing.T) {
	p := TradePayload{
		TradeID:       "T1",
		PositionKey:   "abc",
		TradeType:     "NEW_TRADE",
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.NewFromFloat(50.5),
		EffectiveDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b, err := MarshalPayload(p)
	require.NoError(t, err)

	withExtra := append([]byte(nil), b[:len(b)-1]...)
	withExtra = append(withExtra, []byte(`,"unknownField":123}`)...)

	back, err := UnmarshalPayload(withExtra)
	require.NoError(t, err)
	assert.Equal(t, p.TradeID, back.TradeID)
	assert.True(t, p.Quantity.Equal(back.Quantity))
}
