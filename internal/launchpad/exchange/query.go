package exchange

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/curve"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/escrow"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/referral"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// MaxInviteDepth bounds InviteChain walks.
const MaxInviteDepth = 64

// Quote is the priced outcome of a trade that has not been executed.
type Quote struct {
	TokenAmount uint64
	SolAmount   uint64
	Fee         uint64
	// Net is sol_amount + fee for buys and sol_amount - fee for sells.
	Net uint64
}

// EscrowStatus is the fee escrow's ledger and balance.
type EscrowStatus struct {
	Received    uint64
	Sent        uint64
	Balance     uint64
	Outstanding uint64
	Solvent     bool
}

// Global returns the committed global configuration.
func (e *Exchange) Global() (*state.Global, error) {
	return e.snapshotGlobal()
}

// Curve returns the committed bonding curve of mint.
func (e *Exchange) Curve(mint solana.PublicKey) (*state.BondingCurve, error) {
	key, err := e.addrs.BondingCurve(mint)
	if err != nil {
		return nil, err
	}
	bc, err := accounts.SnapshotData[*state.BondingCurve](e.db, key)
	if err != nil {
		return nil, fmt.Errorf("bonding curve of %s: %w", mint, err)
	}
	return bc, nil
}

// InviteStats returns the referral node of user.
func (e *Exchange) InviteStats(user solana.PublicKey) (*state.UserInviteStats, error) {
	key, err := e.addrs.InviteStats(user)
	if err != nil {
		return nil, err
	}
	return accounts.SnapshotData[*state.UserInviteStats](e.db, key)
}

// InviteChain returns the ancestors of user, nearest first.
func (e *Exchange) InviteChain(user solana.PublicKey) ([]solana.PublicKey, error) {
	return referral.Ancestors(func(owner solana.PublicKey) (*state.UserInviteStats, bool) {
		n, err := e.InviteStats(owner)
		return n, err == nil
	}, user, MaxInviteDepth)
}

// Escrow returns the escrow ledger and whether its balance covers it.
func (e *Exchange) Escrow() (EscrowStatus, error) {
	acc, ok := e.db.Snapshot(e.escrowKey)
	if !ok {
		return EscrowStatus{}, state.ErrNotInitialized
	}
	ledger, ok := acc.Data.(*state.FeeAccount)
	if !ok {
		return EscrowStatus{}, fmt.Errorf("%w: escrow holds %T", accounts.ErrWrongType, acc.Data)
	}
	outstanding, _ := escrow.Expected(ledger)
	return EscrowStatus{
		Received:    ledger.Received,
		Sent:        ledger.Sent,
		Balance:     acc.Lamports,
		Outstanding: outstanding,
		Solvent:     escrow.Check(ledger, acc.Lamports),
	}, nil
}

// Balance returns the lamports held by key.
func (e *Exchange) Balance(key solana.PublicKey) uint64 {
	acc, ok := e.db.Snapshot(key)
	if !ok {
		return 0
	}
	return acc.Lamports
}

// TokenBalance returns the amount of mint held by owner's token account.
func (e *Exchange) TokenBalance(owner, mint solana.PublicKey) (uint64, error) {
	key, err := e.addrs.UserTokenAccount(owner, mint)
	if err != nil {
		return 0, err
	}
	ta, err := accounts.SnapshotData[*state.TokenAccount](e.db, key)
	if errors.Is(err, state.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ta.Amount, nil
}

// Progress returns how much of the curve's sellable supply has been bought, in basis points.
func (e *Exchange) Progress(mint solana.PublicKey) (uint64, error) {
	g, bc, err := e.snapshotCurve(mint)
	if err != nil {
		return 0, err
	}
	return curve.Pricer(bc, g).Progress(), nil
}

// QuoteBuy prices a buy of tokenAmount without executing it. It applies the
// same checks as Buy, except those on the buyer.
func (e *Exchange) QuoteBuy(mint solana.PublicKey, tokenAmount uint64) (Quote, error) {
	g, bc, holding, err := e.snapshotTrade(mint)
	if err != nil {
		return Quote{}, err
	}
	_, q, err := priceBuy(g, bc, holding, tokenAmount)
	return q, err
}

// QuoteSell prices a sell of tokenAmount without executing it.
func (e *Exchange) QuoteSell(mint solana.PublicKey, tokenAmount uint64) (Quote, error) {
	g, bc, holding, err := e.snapshotTrade(mint)
	if err != nil {
		return Quote{}, err
	}
	_, q, err := e.priceSell(g, bc, holding, tokenAmount)
	return q, err
}

// snapshotTrade reads what pricing a trade on mint needs: global, curve and
// the balance of the curve's token account.
func (e *Exchange) snapshotTrade(mint solana.PublicKey) (*state.Global, *state.BondingCurve, uint64, error) {
	g, bc, err := e.snapshotCurve(mint)
	if err != nil {
		return nil, nil, 0, err
	}
	curveKey, err := e.addrs.BondingCurve(mint)
	if err != nil {
		return nil, nil, 0, err
	}
	holdingKey, err := e.addrs.CurveHolding(mint, curveKey)
	if err != nil {
		return nil, nil, 0, err
	}
	holding, err := accounts.SnapshotData[*state.TokenAccount](e.db, holdingKey)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("curve token account of %s: %w", mint, err)
	}
	return g, bc, holding.Amount, nil
}

func (e *Exchange) snapshotCurve(mint solana.PublicKey) (*state.Global, *state.BondingCurve, error) {
	g, err := e.snapshotGlobal()
	if err != nil {
		return nil, nil, err
	}
	bc, err := e.Curve(mint)
	if err != nil {
		return nil, nil, err
	}
	return g, bc, nil
}
