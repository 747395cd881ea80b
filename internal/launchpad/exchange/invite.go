// =============================
// File: internal/launchpad/exchange/invite.go
// =============================
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/events"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/escrow"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/referral"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
	"github.com/rovshanmuradov/curve-launchpad/internal/logger"
)

// InitInvite links user under parent in the referral tree. It is a no-op for
// users already in the tree and reports whether the link was created.
func (e *Exchange) InitInvite(ctx context.Context, user, parent solana.PublicKey) (bool, error) {
	const op = "init_invite"
	userKey, err := e.addrs.InviteStats(user)
	if err != nil {
		return false, e.reject(op, err)
	}
	parentKey, err := e.addrs.InviteStats(parent)
	if err != nil {
		return false, e.reject(op, err)
	}

	var created bool
	err = e.db.Update([]solana.PublicKey{userKey, parentKey}, func(tx *accounts.Txn) error {
		created, err = referral.Initialize(e.nodes(tx), user, parent)
		return err
	})
	if err != nil {
		return false, e.reject(op, err, logger.User(user), zap.String("parent", parent.String()))
	}
	if !created {
		return false, nil
	}

	now, ts := e.stamp()
	e.logger.Info("Invite account initialized",
		logger.User(user),
		zap.String("parent", parent.String()))
	e.emit(ctx, &events.InviteInitializedEvent{
		BaseEvent: events.NewBase(events.InviteInitialized, now),
		User:      user.String(),
		Parent:    parent.String(),
		Time:      ts,
	})
	return true, nil
}

// ClaimInviteProfit pays the claimable referral profit of user out of the escrow.
func (e *Exchange) ClaimInviteProfit(ctx context.Context, user solana.PublicKey) (uint64, error) {
	const op = "claim_invite_profit"
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	userKey, err := e.addrs.InviteStats(user)
	if err != nil {
		return 0, e.reject(op, err)
	}

	var (
		amount      uint64
		outstanding uint64
	)
	err = e.db.Update([]solana.PublicKey{userKey, e.escrowKey, user}, func(tx *accounts.Txn) error {
		ledger, err := accounts.Load[*state.FeeAccount](tx, e.escrowKey)
		if errors.Is(err, state.ErrRecordNotFound) {
			return state.ErrNotInitialized
		}
		if err != nil {
			return err
		}

		if amount, err = referral.Claim(e.nodes(tx), user); err != nil {
			return err
		}

		acc, err := tx.Get(e.escrowKey)
		if err != nil {
			return err
		}
		if acc.Lamports < amount {
			return fmt.Errorf("%w: escrow holds %d, claim of %d", state.ErrFeeAccountStatusAbnormal, acc.Lamports, amount)
		}
		if err := tx.Transfer(e.escrowKey, user, amount); err != nil {
			return err
		}
		if err := escrow.CreditSent(ledger, amount); err != nil {
			return err
		}
		if err := escrow.Verify(ledger, acc.Lamports); err != nil {
			return err
		}
		outstanding, _ = escrow.Expected(ledger)
		return nil
	})
	if err != nil {
		return 0, e.reject(op, err, logger.User(user))
	}

	e.metrics.RecordClaim(amount)
	e.metrics.SetEscrowOutstanding(outstanding)

	now, ts := e.stamp()
	e.logger.Info("claimInviteProfit",
		logger.User(user),
		zap.Uint64("amount", amount),
		zap.Int64("timestamp", ts))
	e.emit(ctx, &events.ClaimInviteProfitEvent{
		BaseEvent: events.NewBase(events.InviteProfitClaimed, now),
		User:      user.String(),
		Amount:    amount,
		Time:      ts,
	})
	return amount, nil
}
