package amm

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

const (
	testVirtualSol   = uint64(30_000_000_000)
	testVirtualToken = uint64(1_073_000_000_000_000)
	testRealToken    = uint64(793_100_000_000_000)
)

func newTestAMM() *AMM {
	return New(testVirtualSol, testVirtualToken, 0, testRealToken, testVirtualToken)
}

func TestGetBuyPrice(t *testing.T) {
	a := newTestAMM()

	// ceil(30e9 * 1e9 / (1.073e15 - 1e9)) = 27960
	price, err := a.GetBuyPrice(1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(27960), price)
}

func TestApplyBuy(t *testing.T) {
	a := newTestAMM()

	res, err := a.ApplyBuy(1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), res.TokenAmount)
	assert.Equal(t, uint64(27960), res.SolAmount)

	r, err := a.Reserves()
	require.NoError(t, err)
	assert.Equal(t, testVirtualSol+27960, r.VirtualSolReserves)
	assert.Equal(t, testVirtualToken-1_000_000_000, r.VirtualTokenReserves)
	assert.Equal(t, uint64(27960), r.RealSolReserves)
	assert.Equal(t, testRealToken-1_000_000_000, r.RealTokenReserves)
}

func TestApplyBuyClampsToRealReserves(t *testing.T) {
	a := newTestAMM()

	res, err := a.ApplyBuy(testRealToken + 5)
	require.NoError(t, err)
	assert.Equal(t, testRealToken, res.TokenAmount)
	assert.Equal(t, uint64(85_005_359_057), res.SolAmount)
	assert.True(t, a.RealTokenReserves.IsZero())

	_, err = a.ApplyBuy(1)
	assert.ErrorIs(t, err, state.ErrInsufficientTokens)
}

func TestBuyErrors(t *testing.T) {
	tests := []struct {
		name   string
		amm    *AMM
		tokens uint64
		want   error
	}{
		{"zero tokens", newTestAMM(), 0, state.ErrMinBuy},
		{"whole virtual supply", New(testVirtualSol, 1000, 0, 1000, 1000), 1000, state.ErrUndefinedFill},
		{"price over u64", New(^uint64(0), ^uint64(0), 0, ^uint64(0), ^uint64(0)), ^uint64(0) - 1, state.ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.amm.GetBuyPrice(tt.tokens)
			assert.ErrorIs(t, err, tt.want)
			assert.NotEqual(t, state.KindUnknown, state.KindOf(err))
		})
	}
}

func TestApplySell(t *testing.T) {
	a := newTestAMM()
	_, err := a.ApplyBuy(1_000_000_000)
	require.NoError(t, err)

	res, err := a.ApplySell(1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(27959), res.SolAmount)

	r, err := a.Reserves()
	require.NoError(t, err)
	assert.Equal(t, testVirtualToken, r.VirtualTokenReserves)
	assert.Equal(t, testRealToken, r.RealTokenReserves)
	assert.Equal(t, testVirtualSol+1, r.VirtualSolReserves)
	assert.Equal(t, uint64(1), r.RealSolReserves)
}

func TestApplySellNeverExceedsRealSol(t *testing.T) {
	// A curve without real SOL: proceeds are clamped to zero
	a := newTestAMM()

	res, err := a.ApplySell(1_000_000_000)
	require.NoError(t, err)
	assert.Zero(t, res.SolAmount)
	assert.True(t, a.RealSolReserves.IsZero())

	_, err = a.ApplySell(0)
	assert.ErrorIs(t, err, state.ErrMinSell)
}

func TestReservesOverflow(t *testing.T) {
	a := New(1, ^uint64(0), 0, ^uint64(0), ^uint64(0))
	_, err := a.ApplySell(10)
	require.NoError(t, err)

	_, err = a.Reserves()
	assert.ErrorIs(t, err, state.ErrArithmeticOverflow)
}

func TestProgress(t *testing.T) {
	a := newTestAMM()
	assert.Zero(t, a.Progress())

	_, err := a.ApplyBuy(testRealToken / 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), a.Progress())

	_, err = a.ApplyBuy(testRealToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(BasisPoints), a.Progress())
}

func TestBuyNeverDecreasesProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vSol := rapid.Uint64Range(1, 1<<50).Draw(t, "virtualSol")
		vToken := rapid.Uint64Range(2, 1<<55).Draw(t, "virtualToken")
		rToken := rapid.Uint64Range(1, vToken/2).Draw(t, "realToken")
		tokens := rapid.Uint64Range(1, rToken).Draw(t, "tokens")

		a := New(vSol, vToken, 0, rToken, vToken)
		before := a.Product()

		if _, err := a.ApplyBuy(tokens); err != nil {
			t.Fatalf("buy failed: %v", err)
		}
		if a.Product().LT(before) {
			t.Fatalf("product decreased: %s < %s", a.Product(), before)
		}
	})
}

func TestSellNeverDecreasesProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vSol := rapid.Uint64Range(1, 1<<50).Draw(t, "virtualSol")
		rSol := rapid.Uint64Range(0, vSol).Draw(t, "realSol")
		vToken := rapid.Uint64Range(1, 1<<55).Draw(t, "virtualToken")
		tokens := rapid.Uint64Range(1, 1<<50).Draw(t, "tokens")

		a := New(vSol, vToken, rSol, 0, vToken)
		before := a.Product()

		res, err := a.ApplySell(tokens)
		if err != nil {
			t.Fatalf("sell failed: %v", err)
		}
		if res.SolAmount > rSol {
			t.Fatalf("proceeds %d exceed real reserves %d", res.SolAmount, rSol)
		}
		if a.Product().LT(before) {
			t.Fatalf("product decreased: %s < %s", a.Product(), before)
		}
	})
}

func TestZeroFeeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vSol := rapid.Uint64Range(1_000, 1<<50).Draw(t, "virtualSol")
		vToken := rapid.Uint64Range(1_000, 1<<55).Draw(t, "virtualToken")
		rToken := rapid.Uint64Range(1, vToken/2).Draw(t, "realToken")
		tokens := rapid.Uint64Range(1, rToken).Draw(t, "tokens")

		a := New(vSol, vToken, 0, rToken, vToken)
		buy, err := a.ApplyBuy(tokens)
		if err != nil {
			t.Fatalf("buy failed: %v", err)
		}
		sell, err := a.ApplySell(buy.TokenAmount)
		if err != nil {
			t.Fatalf("sell failed: %v", err)
		}

		if sell.SolAmount > buy.SolAmount || buy.SolAmount-sell.SolAmount > 1 {
			t.Fatalf("round trip drift: paid %d, received %d", buy.SolAmount, sell.SolAmount)
		}
		if !a.VirtualTokenReserves.Equal(math.NewIntFromUint64(vToken)) {
			t.Fatalf("virtual token reserves not restored: %s", a.VirtualTokenReserves)
		}
		if !a.RealTokenReserves.Equal(math.NewIntFromUint64(rToken)) {
			t.Fatalf("real token reserves not restored: %s", a.RealTokenReserves)
		}
	})
}
