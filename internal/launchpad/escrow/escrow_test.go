package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

func TestCheck(t *testing.T) {
	acc := &state.FeeAccount{}
	require.NoError(t, CreditReceived(acc, 500))
	require.NoError(t, CreditSent(acc, 200))

	assert.True(t, Check(acc, 300))
	assert.True(t, Check(acc, 1_000))
	assert.False(t, Check(acc, 299))

	assert.NoError(t, Verify(acc, 300))
	err := Verify(acc, 10)
	assert.ErrorIs(t, err, state.ErrFeeAccountStatusAbnormal)
	assert.Equal(t, state.KindInvariant, state.KindOf(err))
}

func TestSentAboveReceivedIsAbnormal(t *testing.T) {
	acc := &state.FeeAccount{Received: 10, Sent: 11}

	_, ok := Expected(acc)
	assert.False(t, ok)
	assert.False(t, Check(acc, ^uint64(0)))
}

func TestCounterOverflow(t *testing.T) {
	acc := &state.FeeAccount{Received: ^uint64(0), Sent: ^uint64(0)}

	assert.ErrorIs(t, CreditReceived(acc, 1), state.ErrArithmeticOverflow)
	assert.ErrorIs(t, CreditSent(acc, 1), state.ErrArithmeticOverflow)
	assert.Equal(t, ^uint64(0), acc.Received)
}
