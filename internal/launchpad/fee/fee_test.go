package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		bps    uint64
		want   uint64
	}{
		{"one percent", 27960, 100, 279},
		{"floor", 199, 50, 0},
		{"zero bps", 1_000_000, 0, 0},
		{"full amount", 12345, Denominator, 12345},
		{"max amount", ^uint64(0), 100, ^uint64(0) / 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateFee(tt.amount, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateFeeOverflow(t *testing.T) {
	_, err := CalculateFee(^uint64(0), Denominator*2)
	assert.ErrorIs(t, err, state.ErrArithmeticOverflow)
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, Schedule{Protocol: 50, Creator: 35, Invite: 15}.Validate())
	assert.ErrorIs(t, Schedule{Protocol: 9_000, Creator: 1_000, Invite: 1}.Validate(), state.ErrInvalidParams)
	assert.ErrorIs(t, Schedule{Protocol: ^uint64(0)}.Validate(), state.ErrInvalidParams)
}

func TestSplitKeepsComponentsSeparate(t *testing.T) {
	s := Schedule{Protocol: 50, Creator: 35, Invite: 15}

	split, err := s.Split(27960)
	require.NoError(t, err)

	// 27960 * 100 / 10000 = 279.6 -> 279, components 139 + 97 + 41 = 277
	assert.Equal(t, uint64(279), split.Total)
	assert.Equal(t, uint64(139), split.Protocol)
	assert.Equal(t, uint64(97), split.Creator)
	assert.Equal(t, uint64(41), split.Invite)
	assert.Equal(t, uint64(2), split.Dust())
}

func TestSplitConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.Uint64Range(0, 3_000).Draw(t, "protocol")
		c := rapid.Uint64Range(0, 3_000).Draw(t, "creator")
		i := rapid.Uint64Range(0, 3_000).Draw(t, "invite")
		amount := rapid.Uint64().Draw(t, "amount")

		split, err := Schedule{Protocol: p, Creator: c, Invite: i}.Split(amount)
		if err != nil {
			t.Fatalf("split failed: %v", err)
		}

		sum := split.Protocol + split.Creator + split.Invite
		if sum > split.Total {
			t.Fatalf("components %d exceed total %d", sum, split.Total)
		}
		if split.Total-sum > 2 {
			t.Fatalf("rounding dust %d exceeds bound", split.Total-sum)
		}
	})
}
