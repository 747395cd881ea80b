package exchange

import (
	"fmt"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/amm"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/curve"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/fee"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// priceBuy checks and prices a buy of tokenAmount against bc. holding is the
// balance of the curve's token account. Quotes and executed buys both go through it.
func priceBuy(g *state.Global, bc *state.BondingCurve, holding, tokenAmount uint64) (*amm.AMM, Quote, error) {
	if err := curve.CheckBuy(bc); err != nil {
		return nil, Quote{}, err
	}
	if tokenAmount == 0 {
		return nil, Quote{}, state.ErrMinBuy
	}
	if bc.RealTokenReserves < tokenAmount {
		return nil, Quote{}, fmt.Errorf("%w: requested %d, curve holds %d real",
			state.ErrInsufficientTokens, tokenAmount, bc.RealTokenReserves)
	}

	// Trading keeps holding - real_token_reserves at the unsold supply share,
	// so the clamp binds only once the holding was drawn down by other means.
	target := min(tokenAmount, holding)

	engine := curve.Pricer(bc, g)
	fill, err := engine.ApplyBuy(target)
	if err != nil {
		return nil, Quote{}, err
	}
	total, err := fee.ScheduleOf(g).Withheld(fill.SolAmount)
	if err != nil {
		return nil, Quote{}, err
	}
	cost := fill.SolAmount + total
	if cost < fill.SolAmount {
		return nil, Quote{}, fmt.Errorf("%w: buy cost", state.ErrArithmeticOverflow)
	}
	return engine, Quote{TokenAmount: fill.TokenAmount, SolAmount: fill.SolAmount, Fee: total, Net: cost}, nil
}

// priceSell checks and prices a sell of tokenAmount against bc. The payout is
// clamped to real_sol_reserves by the pricing engine.
func (e *Exchange) priceSell(g *state.Global, bc *state.BondingCurve, holding, tokenAmount uint64) (*amm.AMM, Quote, error) {
	if err := e.policy.CheckSell(bc); err != nil {
		return nil, Quote{}, err
	}
	if tokenAmount == 0 {
		return nil, Quote{}, state.ErrMinSell
	}
	if holding < tokenAmount {
		return nil, Quote{}, fmt.Errorf("%w: curve token account holds %d, sell of %d",
			state.ErrInsufficientTokens, holding, tokenAmount)
	}

	engine := curve.Pricer(bc, g)
	fill, err := engine.ApplySell(tokenAmount)
	if err != nil {
		return nil, Quote{}, err
	}
	total, err := fee.ScheduleOf(g).Withheld(fill.SolAmount)
	if err != nil {
		return nil, Quote{}, err
	}
	if total > fill.SolAmount {
		return nil, Quote{}, fmt.Errorf("%w: fee %d above proceeds %d",
			state.ErrArithmeticOverflow, total, fill.SolAmount)
	}
	return engine, Quote{TokenAmount: fill.TokenAmount, SolAmount: fill.SolAmount, Fee: total, Net: fill.SolAmount - total}, nil
}
