// Package escrow tracks the cumulative inflow and outflow of withheld trade fees
// and checks that the escrow's real balance covers the recorded net inflow.
package escrow

import (
	"fmt"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// CreditReceived records amount withheld into the escrow.
func CreditReceived(acc *state.FeeAccount, amount uint64) error {
	if acc.Received+amount < acc.Received {
		return fmt.Errorf("%w: escrow received counter", state.ErrArithmeticOverflow)
	}
	acc.Received += amount
	return nil
}

// CreditSent records amount paid out of the escrow.
func CreditSent(acc *state.FeeAccount, amount uint64) error {
	if acc.Sent+amount < acc.Sent {
		return fmt.Errorf("%w: escrow sent counter", state.ErrArithmeticOverflow)
	}
	acc.Sent += amount
	return nil
}

// Expected returns received - sent. ok is false when more was sent than received.
func Expected(acc *state.FeeAccount) (expected uint64, ok bool) {
	if acc.Sent > acc.Received {
		return 0, false
	}
	return acc.Received - acc.Sent, true
}

// Check reports whether balance covers the recorded net inflow.
func Check(acc *state.FeeAccount, balance uint64) bool {
	expected, ok := Expected(acc)
	return ok && balance >= expected
}

// Verify is Check returning ErrFeeAccountStatusAbnormal on failure.
func Verify(acc *state.FeeAccount, balance uint64) error {
	if Check(acc, balance) {
		return nil
	}
	return fmt.Errorf("%w: balance %d, received %d, sent %d",
		state.ErrFeeAccountStatusAbnormal, balance, acc.Received, acc.Sent)
}
