package statemachine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srviswan/positionengine/internal/engineerr"
	"github.com/srviswan/positionengine/internal/position"
)

func TestApply_NonExistentNewTrade(t *testing.T) {
	next, changed, err := Apply(position.StatusNonExistent, EventNewTrade, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, position.StatusActive, next)
	assert.True(t, changed)
}

func TestApply_ActiveNewTradeRejected(t *testing.T) {
	_, _, err := Apply(position.StatusActive, EventNewTrade, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Equal(t, engineerr.KindStateViolation, engineerr.Classify(err))
	assert.NotEmpty(t, engineerr.Reason(err))
}

func TestApply_ActiveDecreaseToZeroTerminates(t *testing.T) {
	next, changed, err := Apply(position.StatusActive, EventDecrease, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, position.StatusTerminated, next)
	assert.True(t, changed)
}

func TestApply_ActiveDecreasePartialStaysActive(t *testing.T) {
	next, changed, err := Apply(position.StatusActive, EventDecrease, decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.Equal(t, position.StatusActive, next)
	assert.False(t, changed)
}

func TestApply_TerminatedReopensOnNewTrade(t *testing.T) {
	next, changed, err := Apply(position.StatusTerminated, EventNewTrade, decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.Equal(t, position.StatusActive, next)
	assert.True(t, changed)
}

func TestApply_AllUndefinedTransitionsRejected(t *testing.T) {
	cases := []struct {
		state position.Status
		event TradeEventKind
	}{
		{position.StatusNonExistent, EventIncrease},
		{position.StatusNonExistent, EventDecrease},
		{position.StatusTerminated, EventIncrease},
		{position.StatusTerminated, EventDecrease},
	}
	for _, c := range cases {
		_, _, err := Apply(c.state, c.event, decimal.NewFromInt(1))
		assert.Error(t, err, "%s+%s should be rejected", c.state, c.event)
		assert.NotEmpty(t, engineerr.Reason(err))
	}
}
