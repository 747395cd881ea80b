// =============================
// File: internal/launchpad/state/types.go
// =============================
package state

import (
	"github.com/gagliardetto/solana-go"
)

// Data is the typed payload of an account record.
type Data interface {
	Clone() Data
}

// Global holds the launchpad-wide configuration. It is created once at bootstrap
// and mutated only by the authority.
type Global struct {
	Authority    solana.PublicKey
	Initialized  bool
	FeeRecipient solana.PublicKey

	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	InitialTokenSupply          uint64

	FeeBasisPoints    uint64
	WithdrawAuthority solana.PublicKey

	CreatorFeeBasisPoints       uint64
	ProtocolTokenAllocPoints    uint64
	ProtocolTokenAllocRecipient solana.PublicKey

	InviteFeeBasisPoints uint64
}

func (g *Global) Clone() Data {
	c := *g
	return &c
}

// BondingCurve is the per-mint reserve state.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool

	// Counters for moving liquidity into a pool once the curve completes
	PoolSolAmount   uint64
	PoolTokenAmount uint64

	Creator    solana.PublicKey
	Mint       solana.PublicKey
	CreateTime uint64
	UpdateTime uint64
}

func (b *BondingCurve) Clone() Data {
	c := *b
	return &c
}

// FeeAccount is the escrow ledger for withheld trade fees.
type FeeAccount struct {
	Received uint64
	Sent     uint64
}

func (f *FeeAccount) Clone() Data {
	c := *f
	return &c
}

// UserInviteStats is one node of the referral forest.
type UserInviteStats struct {
	Key                    solana.PublicKey
	Parent                 solana.PublicKey
	ChildCount             uint64
	ProfitFromChild        uint64
	ProfitToParent         uint64
	ProfitClaimable        uint64
	ProfitClaimAccumulated uint64
	IsInit                 bool
}

func (u *UserInviteStats) Clone() Data {
	c := *u
	return &c
}

// TokenAccount holds a balance of one mint for one owner.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

func (t *TokenAccount) Clone() Data {
	c := *t
	return &c
}
