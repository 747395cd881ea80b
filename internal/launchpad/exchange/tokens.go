package exchange

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// tokenBalance returns the amount held by a token account, 0 if it does not exist.
func tokenBalance(tx *accounts.Txn, key solana.PublicKey) (uint64, error) {
	ta, err := accounts.Load[*state.TokenAccount](tx, key)
	if errors.Is(err, state.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ta.Amount, nil
}

// moveTokens transfers amount of mint between token accounts, opening the
// destination for owner if needed.
func moveTokens(tx *accounts.Txn, from, to, mint, owner solana.PublicKey, amount uint64) error {
	src, err := accounts.Load[*state.TokenAccount](tx, from)
	if err != nil {
		return fmt.Errorf("source token account: %w", err)
	}
	if !src.Mint.Equals(mint) {
		return fmt.Errorf("%w: token account %s holds mint %s", state.ErrInvalidParams, from, src.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: token account %s holds %d, needs %d", state.ErrInsufficientTokens, from, src.Amount, amount)
	}

	dst, err := accounts.LoadOrInit(tx, to, func() *state.TokenAccount {
		return &state.TokenAccount{Mint: mint, Owner: owner}
	})
	if err != nil {
		return fmt.Errorf("destination token account: %w", err)
	}
	if !dst.Mint.Equals(mint) {
		return fmt.Errorf("%w: token account %s holds mint %s", state.ErrInvalidParams, to, dst.Mint)
	}
	if dst.Amount+amount < dst.Amount {
		return fmt.Errorf("%w: token account %s", state.ErrArithmeticOverflow, to)
	}

	if from.Equals(to) {
		return nil
	}
	src.Amount -= amount
	dst.Amount += amount
	return nil
}
