// =============================
// File: internal/launchpad/state/pda.go
// =============================
package state

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the default launchpad program address used to derive record addresses.
var ProgramID = solana.MustPublicKeyFromBase58("8VmiQfMyGSeksAkHLuXYhpXccsqhkPavH26g1BTFjpmg")

// PDA seeds
const (
	SeedGlobal          = "CONFIG"
	SeedFeeAccount      = "FEE"
	SeedBondingCurve    = "bonding-curve"
	SeedUserInviteStats = "user-invite-stats"
)

// Addresses derives the program-owned record addresses.
type Addresses struct {
	ProgramID solana.PublicKey
}

// NewAddresses returns a deriver for programID, falling back to ProgramID when zero.
func NewAddresses(programID solana.PublicKey) Addresses {
	if programID.IsZero() {
		programID = ProgramID
	}
	return Addresses{ProgramID: programID}
}

func (a Addresses) find(what string, seeds ...[]byte) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(seeds, a.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive %s: %w", what, err)
	}
	return addr, nil
}

func (a Addresses) Global() (solana.PublicKey, error) {
	return a.find("global", []byte(SeedGlobal))
}

func (a Addresses) FeeAccount() (solana.PublicKey, error) {
	return a.find("fee account", []byte(SeedFeeAccount))
}

func (a Addresses) BondingCurve(mint solana.PublicKey) (solana.PublicKey, error) {
	return a.find("bonding curve", []byte(SeedBondingCurve), mint.Bytes())
}

// CurveHolding is the token account owned by the bonding curve.
func (a Addresses) CurveHolding(mint, bondingCurve solana.PublicKey) (solana.PublicKey, error) {
	return a.find("bonding curve token account", []byte(SeedBondingCurve), mint.Bytes(), bondingCurve.Bytes())
}

func (a Addresses) InviteStats(user solana.PublicKey) (solana.PublicKey, error) {
	return a.find("user invite stats", []byte(SeedUserInviteStats), user.Bytes())
}

// UserTokenAccount is the associated token account of owner for mint.
func (a Addresses) UserTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token account: %w", err)
	}
	return ata, nil
}
