// =============================
// File: internal/launchpad/amm/amm.go
// =============================
package amm

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// BasisPoints is the denominator used for bonding progress.
const BasisPoints = 10_000

// AMM is a constant-product curve over a snapshot of reserves.
// All math runs on math.Int. Only Reserves() narrows back to uint64.
type AMM struct {
	VirtualSolReserves          math.Int
	VirtualTokenReserves        math.Int
	RealSolReserves             math.Int
	RealTokenReserves           math.Int
	InitialVirtualTokenReserves math.Int
}

// BuyResult is the fill of a buy: tokens removed from the curve and the SOL they cost.
type BuyResult struct {
	TokenAmount uint64
	SolAmount   uint64
}

// SellResult is the fill of a sell: tokens returned to the curve and the SOL paid out.
type SellResult struct {
	TokenAmount uint64
	SolAmount   uint64
}

// Reserves is the narrowed reserve state written back to a bonding curve.
type Reserves struct {
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
}

// New creates a pricing engine seeded from the current virtual and real reserves.
func New(virtualSol, virtualToken, realSol, realToken, initialVirtualToken uint64) *AMM {
	return &AMM{
		VirtualSolReserves:          math.NewIntFromUint64(virtualSol),
		VirtualTokenReserves:        math.NewIntFromUint64(virtualToken),
		RealSolReserves:             math.NewIntFromUint64(realSol),
		RealTokenReserves:           math.NewIntFromUint64(realToken),
		InitialVirtualTokenReserves: math.NewIntFromUint64(initialVirtualToken),
	}
}

// GetBuyPrice returns the cost of buying tokens, in lamports.
// sol = ceil(virtual_sol * tokens / (virtual_token - tokens)). Rounding up
// keeps the reserve product from shrinking.
func (a *AMM) GetBuyPrice(tokens uint64) (uint64, error) {
	t := math.NewIntFromUint64(tokens)
	if t.IsZero() {
		return 0, state.ErrMinBuy
	}
	if t.GTE(a.VirtualTokenReserves) {
		return 0, fmt.Errorf("%w: buy of %d tokens exhausts virtual reserves %s",
			state.ErrUndefinedFill, tokens, a.VirtualTokenReserves)
	}

	denominator := a.VirtualTokenReserves.Sub(t)
	numerator := a.VirtualSolReserves.Mul(t)
	sol := ceilQuo(numerator, denominator)

	if !sol.IsUint64() {
		return 0, fmt.Errorf("%w: buy price %s", state.ErrArithmeticOverflow, sol)
	}
	return sol.Uint64(), nil
}

// GetSellPrice returns the proceeds of selling tokens in lamports, capped at real_sol_reserves.
// sol = floor(virtual_sol * tokens / (virtual_token + tokens)).
func (a *AMM) GetSellPrice(tokens uint64) (uint64, error) {
	t := math.NewIntFromUint64(tokens)
	if t.IsZero() {
		return 0, state.ErrMinSell
	}

	denominator := a.VirtualTokenReserves.Add(t)
	sol := a.VirtualSolReserves.Mul(t).Quo(denominator)
	sol = math.MinInt(sol, a.RealSolReserves)

	if !sol.IsUint64() {
		return 0, fmt.Errorf("%w: sell price %s", state.ErrArithmeticOverflow, sol)
	}
	return sol.Uint64(), nil
}

// ApplyBuy removes up to tokenAmount tokens from the curve, clamped to the real token reserves.
func (a *AMM) ApplyBuy(tokenAmount uint64) (*BuyResult, error) {
	final := math.NewIntFromUint64(tokenAmount)
	if final.GT(a.RealTokenReserves) {
		final = a.RealTokenReserves
	}
	if final.IsZero() {
		return nil, state.ErrInsufficientTokens
	}

	sol, err := a.GetBuyPrice(final.Uint64())
	if err != nil {
		return nil, err
	}
	solInt := math.NewIntFromUint64(sol)

	a.VirtualTokenReserves = a.VirtualTokenReserves.Sub(final)
	a.RealTokenReserves = a.RealTokenReserves.Sub(final)
	a.VirtualSolReserves = a.VirtualSolReserves.Add(solInt)
	a.RealSolReserves = a.RealSolReserves.Add(solInt)

	return &BuyResult{TokenAmount: final.Uint64(), SolAmount: sol}, nil
}

// ApplySell returns tokenAmount tokens to the curve and pays out SOL priced on the pre-trade reserves.
func (a *AMM) ApplySell(tokenAmount uint64) (*SellResult, error) {
	sol, err := a.GetSellPrice(tokenAmount)
	if err != nil {
		return nil, err
	}
	t := math.NewIntFromUint64(tokenAmount)
	solInt := math.NewIntFromUint64(sol)

	a.VirtualTokenReserves = a.VirtualTokenReserves.Add(t)
	a.RealTokenReserves = a.RealTokenReserves.Add(t)
	a.VirtualSolReserves = a.VirtualSolReserves.Sub(solInt)
	a.RealSolReserves = a.RealSolReserves.Sub(solInt)

	if a.RealSolReserves.IsNegative() || a.VirtualSolReserves.IsNegative() {
		return nil, fmt.Errorf("%w: sell drives SOL reserves negative", state.ErrUndefinedFill)
	}

	return &SellResult{TokenAmount: tokenAmount, SolAmount: sol}, nil
}

// Reserves narrows the engine state back to the on-record 64-bit fields.
func (a *AMM) Reserves() (Reserves, error) {
	fields := []struct {
		name string
		v    math.Int
	}{
		{"virtual_sol_reserves", a.VirtualSolReserves},
		{"virtual_token_reserves", a.VirtualTokenReserves},
		{"real_sol_reserves", a.RealSolReserves},
		{"real_token_reserves", a.RealTokenReserves},
	}
	for _, f := range fields {
		if !f.v.IsUint64() {
			return Reserves{}, fmt.Errorf("%w: %s = %s", state.ErrArithmeticOverflow, f.name, f.v)
		}
	}

	return Reserves{
		VirtualSolReserves:   a.VirtualSolReserves.Uint64(),
		VirtualTokenReserves: a.VirtualTokenReserves.Uint64(),
		RealSolReserves:      a.RealSolReserves.Uint64(),
		RealTokenReserves:    a.RealTokenReserves.Uint64(),
	}, nil
}

// Product returns virtual_sol * virtual_token.
func (a *AMM) Product() math.Int {
	return a.VirtualSolReserves.Mul(a.VirtualTokenReserves)
}

// Progress returns the share of the sellable supply already bought, in basis points.
// sold = initial_virtual_token - virtual_token, sellable = sold + real_token.
func (a *AMM) Progress() uint64 {
	sold := a.InitialVirtualTokenReserves.Sub(a.VirtualTokenReserves)
	if sold.IsNegative() {
		sold = math.ZeroInt()
	}
	sellable := sold.Add(a.RealTokenReserves)
	if sellable.IsZero() {
		return BasisPoints
	}
	return sold.MulRaw(BasisPoints).Quo(sellable).Uint64()
}

func ceilQuo(numerator, denominator math.Int) math.Int {
	q := numerator.Quo(denominator)
	if !numerator.Mod(denominator).IsZero() {
		q = q.AddRaw(1)
	}
	return q
}
