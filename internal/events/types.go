// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Trade events
	TradeSettled   EventType = "trade.settled"
	CurveCompleted EventType = "curve.completed"
	CurveCreated   EventType = "curve.created"

	// Invite events
	InviteInitialized   EventType = "invite.initialized"
	InviteProfitClaimed EventType = "invite.profit_claimed"

	// Admin events
	ParamsUpdated EventType = "params.updated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"-"`
	EventTime time.Time `json:"-"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps an event of type t at now.
func NewBase(t EventType, now time.Time) BaseEvent {
	return BaseEvent{EventType: t, EventTime: now}
}

// TradeEvent is the settlement record of a buy or a sell.
type TradeEvent struct {
	BaseEvent
	Mint                 string `json:"mint"`
	SolAmount            uint64 `json:"sol_amount"`
	TokenAmount          uint64 `json:"token_amount"`
	IsBuy                bool   `json:"is_buy"`
	User                 string `json:"user"`
	Time                 int64  `json:"timestamp"`
	VirtualSolReserves   uint64 `json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64 `json:"virtual_token_reserves"`
	RealSolReserves      uint64 `json:"real_sol_reserves"`
	RealTokenReserves    uint64 `json:"real_token_reserves"`
	Hash                 string `json:"hash"`

	// Fee is the total fee withheld on the trade. Not part of the wire record.
	Fee uint64 `json:"-"`
}

// CompleteEvent is emitted once, by the trade that exhausts a curve.
type CompleteEvent struct {
	BaseEvent
	User         string `json:"user"`
	Mint         string `json:"mint"`
	BondingCurve string `json:"bonding_curve"`
	Time         int64  `json:"timestamp"`
}

// CreateEvent is emitted when a curve is launched.
type CreateEvent struct {
	BaseEvent
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	URI          string `json:"uri"`
	Mint         string `json:"mint"`
	BondingCurve string `json:"bonding_curve"`
	Creator      string `json:"creator"`
	CreatedTime  uint64 `json:"created_time"`
	TokenSupply  uint64 `json:"token_supply"`
}

// InviteInitializedEvent is emitted when a user joins the referral tree.
type InviteInitializedEvent struct {
	BaseEvent
	User   string `json:"user"`
	Parent string `json:"parent"`
	Time   int64  `json:"timestamp"`
}

// ClaimInviteProfitEvent is the referral-claim record.
type ClaimInviteProfitEvent struct {
	BaseEvent
	User   string `json:"user"`
	Amount uint64 `json:"amount"`
	Time   int64  `json:"timestamp"`
}

// SetParamsEvent is emitted by every administrative change of the global configuration.
type SetParamsEvent struct {
	BaseEvent
	FeeRecipient                string `json:"fee_recipient"`
	WithdrawAuthority           string `json:"withdraw_authority"`
	InitialVirtualTokenReserves uint64 `json:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64 `json:"initial_virtual_sol_reserves"`
	InitialRealTokenReserves    uint64 `json:"initial_real_token_reserves"`
	InitialTokenSupply          uint64 `json:"initial_token_supply"`
	FeeBasisPoints              uint64 `json:"fee_basis_points"`
	CreatorFeeBasisPoints       uint64 `json:"creator_fee_basis_points"`
	InviteFeeBasisPoints        uint64 `json:"invite_fee_basis_points"`
}
