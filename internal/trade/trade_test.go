package trade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srviswan/positionengine/internal/posid"
)

func TestDerive_FillsPositionKeyWhenEmpty(t *testing.T) {
	tr := Trade{
		Account:    "ACC1",
		Instrument: "SWAP1",
		Currency:   "USD",
		Direction:  posid.Long,
	}
	require.NoError(t, tr.Derive())
	assert.NotEmpty(t, tr.PositionKey)

	want, err := posid.Derive("ACC1", "SWAP1", "USD", posid.Long)
	require.NoError(t, err)
	assert.Equal(t, want, tr.PositionKey)
}

func TestDerive_NoOpWhenAlreadySet(t *testing.T) {
	tr := Trade{PositionKey: "already-set"}
	require.NoError(t, tr.Derive())
	assert.Equal(t, "already-set", tr.PositionKey)
}

func TestDerive_PropagatesPosidError(t *testing.T) {
	tr := Trade{Account: "", Instrument: "", Currency: "", Direction: posid.Long}
	err := tr.Derive()
	if err == nil {
		t.Skip("posid.Derive does not reject empty fields")
	}
	assert.Empty(t, tr.PositionKey)
}

func TestSignedDelta(t *testing.T) {
	cases := []struct {
		tradeType Type
		want      string
	}{
		{TypeNewTrade, "100"},
		{TypeIncrease, "100"},
		{TypeDecrease, "-100"},
	}
	for _, c := range cases {
		tr := Trade{TradeType: c.tradeType, Quantity: decimal.NewFromInt(100)}
		assert.True(t, tr.SignedDelta().Equal(decimal.RequireFromString(c.want)), "tradeType=%s", c.tradeType)
	}
}

func TestSignedDelta_NormalizesNegativeInput(t *testing.T) {
	tr := Trade{TradeType: TypeDecrease, Quantity: decimal.NewFromInt(-50)}
	assert.True(t, tr.SignedDelta().Equal(decimal.NewFromInt(-50)))
}
