// =============================
// File: internal/launchpad/curve/curve.go
// =============================
package curve

import (
	"fmt"
	"time"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/amm"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// Phase is the lifecycle state of a bonding curve.
type Phase int

const (
	// Active accepts buys and sells
	Active Phase = iota
	// Exhausted has zero real_token_reserves, so buys fail
	Exhausted
	// Complete has the complete flag set and is ready for migration
	Complete
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case Exhausted:
		return "exhausted"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Policy controls which trades a finished curve still accepts.
type Policy struct {
	// SellAfterComplete keeps sells open on a complete curve.
	SellAfterComplete bool
}

// PhaseOf returns the phase of bc.
func PhaseOf(bc *state.BondingCurve) Phase {
	switch {
	case bc.Complete:
		return Complete
	case bc.RealTokenReserves == 0:
		return Exhausted
	default:
		return Active
	}
}

// CheckBuy rejects buys on exhausted or complete curves.
func CheckBuy(bc *state.BondingCurve) error {
	if phase := PhaseOf(bc); phase != Active {
		return fmt.Errorf("%w: curve %s is %s", state.ErrBondingCurveComplete, bc.Mint, phase)
	}
	return nil
}

// CheckSell rejects sells on complete curves unless the policy keeps them open.
func (p Policy) CheckSell(bc *state.BondingCurve) error {
	if bc.Complete && !p.SellAfterComplete {
		return fmt.Errorf("%w: curve %s is complete", state.ErrBondingCurveComplete, bc.Mint)
	}
	return nil
}

// Pricer seeds a pricing engine from the current virtual and real reserves of bc.
func Pricer(bc *state.BondingCurve, g *state.Global) *amm.AMM {
	return amm.New(
		bc.VirtualSolReserves,
		bc.VirtualTokenReserves,
		bc.RealSolReserves,
		bc.RealTokenReserves,
		g.InitialVirtualTokenReserves,
	)
}

// Commit writes the engine's reserves back to bc. It reports true exactly once,
// on the trade that first drives real_token_reserves to zero; that trade also
// marks the curve complete.
func Commit(bc *state.BondingCurve, engine *amm.AMM, now time.Time) (bool, error) {
	r, err := engine.Reserves()
	if err != nil {
		return false, err
	}
	if r.VirtualSolReserves < r.RealSolReserves || r.VirtualTokenReserves < r.RealTokenReserves {
		return false, fmt.Errorf("%w: virtual %d/%d, real %d/%d", state.ErrReserveInvariant,
			r.VirtualSolReserves, r.VirtualTokenReserves, r.RealSolReserves, r.RealTokenReserves)
	}

	bc.VirtualSolReserves = r.VirtualSolReserves
	bc.VirtualTokenReserves = r.VirtualTokenReserves
	bc.RealSolReserves = r.RealSolReserves
	bc.RealTokenReserves = r.RealTokenReserves
	bc.UpdateTime = uint64(now.Unix())

	if bc.RealTokenReserves == 0 && !bc.Complete {
		bc.Complete = true
		return true, nil
	}
	return false, nil
}

// Seed initializes a new curve from the global reserve seeds.
func Seed(bc *state.BondingCurve, g *state.Global, now time.Time) {
	ts := uint64(now.Unix())
	bc.VirtualTokenReserves = g.InitialVirtualTokenReserves
	bc.VirtualSolReserves = g.InitialVirtualSolReserves
	bc.RealTokenReserves = g.InitialRealTokenReserves
	bc.RealSolReserves = 0
	bc.TokenTotalSupply = g.InitialTokenSupply
	bc.Complete = false
	bc.PoolSolAmount = 0
	bc.PoolTokenAmount = 0
	bc.CreateTime = ts
	bc.UpdateTime = ts
}
