// internal/launchpad/fee/fee.go
package fee

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// Denominator of a basis point.
const Denominator = 10_000

// CalculateFee returns floor(amount * basisPoints / 10_000).
func CalculateFee(amount, basisPoints uint64) (uint64, error) {
	fee := math.NewIntFromUint64(amount).
		Mul(math.NewIntFromUint64(basisPoints)).
		QuoRaw(Denominator)
	if !fee.IsUint64() {
		return 0, fmt.Errorf("%w: fee on %d at %d bps", state.ErrArithmeticOverflow, amount, basisPoints)
	}
	return fee.Uint64(), nil
}

// Schedule is the fee split in basis points.
type Schedule struct {
	Protocol uint64
	Creator  uint64
	Invite   uint64
}

// ScheduleOf reads the fee schedule from the global configuration.
func ScheduleOf(g *state.Global) Schedule {
	return Schedule{
		Protocol: g.FeeBasisPoints,
		Creator:  g.CreatorFeeBasisPoints,
		Invite:   g.InviteFeeBasisPoints,
	}
}

// Total returns the summed basis points.
func (s Schedule) Total() uint64 {
	return s.Protocol + s.Creator + s.Invite
}

// Validate rejects schedules that would withhold more than the whole amount.
func (s Schedule) Validate() error {
	for _, bp := range []uint64{s.Protocol, s.Creator, s.Invite} {
		if bp > Denominator {
			return fmt.Errorf("%w: basis points %d exceed %d", state.ErrInvalidParams, bp, Denominator)
		}
	}
	if s.Total() > Denominator {
		return fmt.Errorf("%w: total fee %d bps exceeds %d", state.ErrInvalidParams, s.Total(), Denominator)
	}
	return nil
}

// Split is the fee withheld from one trade and its ledger components.
// Components are computed independently, so Protocol+Creator+Invite may fall
// short of Total by up to one unit per component. The difference stays in escrow.
type Split struct {
	Total    uint64
	Protocol uint64
	Creator  uint64
	Invite   uint64
}

// Dust is the part of Total not credited to any referral node.
func (s Split) Dust() uint64 {
	return s.Total - s.Protocol - s.Creator - s.Invite
}

// Withheld computes the joint fee on amount at the summed basis points.
func (s Schedule) Withheld(amount uint64) (uint64, error) {
	return CalculateFee(amount, s.Total())
}

// Split computes the joint fee and each component on amount.
func (s Schedule) Split(amount uint64) (Split, error) {
	var (
		out Split
		err error
	)
	if out.Total, err = s.Withheld(amount); err != nil {
		return Split{}, err
	}
	if out.Protocol, err = CalculateFee(amount, s.Protocol); err != nil {
		return Split{}, err
	}
	if out.Creator, err = CalculateFee(amount, s.Creator); err != nil {
		return Split{}, err
	}
	if out.Invite, err = CalculateFee(amount, s.Invite); err != nil {
		return Split{}, err
	}
	return out, nil
}
