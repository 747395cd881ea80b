// =============================
// File: internal/launchpad/state/errors.go
// =============================
package state

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the stage that rejected the request.
type Kind int

const (
	KindUnknown Kind = iota
	// KindPrecondition rejects a request before any state mutation
	KindPrecondition
	// KindGuard is a slippage bound crossed after pricing
	KindGuard
	// KindInvariant is a broken escrow solvency invariant
	KindInvariant
	// KindArithmetic is an overflow or undefined result
	KindArithmetic
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindGuard:
		return "guard"
	case KindInvariant:
		return "invariant"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

// Error is a launchpad error code with its taxonomy kind.
type Error struct {
	Code string
	Msg  string
	Kind Kind
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Code: code, Msg: msg, Kind: kind}
}

var (
	ErrAlreadyInitialized       = newError(KindPrecondition, "AlreadyInitialized", "global already initialized")
	ErrNotInitialized           = newError(KindPrecondition, "NotInitialized", "global not initialized")
	ErrInvalidAuthority         = newError(KindPrecondition, "InvalidAuthority", "invalid authority")
	ErrBondingCurveComplete     = newError(KindPrecondition, "BondingCurveComplete", "bonding curve complete")
	ErrBondingCurveNotComplete  = newError(KindPrecondition, "BondingCurveNotComplete", "bonding curve not complete")
	ErrBondingCurveExists       = newError(KindPrecondition, "BondingCurveExists", "bonding curve already exists")
	ErrInsufficientTokens       = newError(KindPrecondition, "InsufficientTokens", "insufficient tokens")
	ErrInsufficientSOL          = newError(KindPrecondition, "InsufficientSOL", "insufficient SOL")
	ErrMaxSOLCostExceeded       = newError(KindGuard, "MaxSOLCostExceeded", "max SOL cost exceeded")
	ErrMinSOLOutputExceeded     = newError(KindGuard, "MinSOLOutputExceeded", "min SOL output exceeded")
	ErrMinBuy                   = newError(KindPrecondition, "MinBuy", "min buy is 1 token")
	ErrMinSell                  = newError(KindPrecondition, "MinSell", "min sell is 1 token")
	ErrInvalidFeeRecipient      = newError(KindPrecondition, "InvalidFeeRecipient", "invalid fee recipient")
	ErrInvalidWithdrawAuthority = newError(KindPrecondition, "InvalidWithdrawAuthority", "invalid withdraw authority")
	ErrInvalidParams            = newError(KindPrecondition, "InvalidParams", "invalid parameters")
	ErrFeeAccountStatusAbnormal = newError(KindInvariant, "FeeAccountStatusAbnormal", "the fee account status is abnormal")
	ErrReserveInvariant         = newError(KindInvariant, "ReserveInvariant", "virtual reserves below real reserves")
	ErrNotClaimableFee          = newError(KindPrecondition, "NotClaimableFee", "there is no claim fee")
	ErrInviteAccountNotInit     = newError(KindPrecondition, "InviteAccountNotInit", "invite account not init")
	ErrInviteAccountError       = newError(KindPrecondition, "InviteAccountError", "invite account error")
	ErrReferralCycle            = newError(KindInvariant, "ReferralCycle", "referral chain does not terminate")
	ErrArithmeticOverflow       = newError(KindArithmetic, "ArithmeticOverflow", "arithmetic overflow")
	ErrUndefinedFill            = newError(KindArithmetic, "UndefinedFill", "trade fill is undefined for the curve state")
	ErrRecordNotFound           = newError(KindPrecondition, "RecordNotFound", "record not found")
	ErrStaleAccounts            = newError(KindPrecondition, "StaleAccounts", "named accounts changed while the request was being prepared")
)

// KindOf returns the taxonomy kind of err, looking through wrapping.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// CodeOf returns the error code of err or "" for foreign errors.
func CodeOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// SlippageError reports a trade whose settlement amount crossed the caller's bound.
type SlippageError struct {
	Limit    uint64
	Required uint64
	IsBuy    bool
	Cause    *Error
}

func (e *SlippageError) Error() string {
	if e.IsBuy {
		return fmt.Sprintf("%s: total cost %d exceeds max %d", e.Cause.Msg, e.Required, e.Limit)
	}
	return fmt.Sprintf("%s: net proceeds %d below min %d", e.Cause.Msg, e.Required, e.Limit)
}

func (e *SlippageError) Unwrap() error {
	return e.Cause
}
