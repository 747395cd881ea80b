// =============================
// File: internal/launchpad/exchange/trade.go
// =============================
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/events"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/amm"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/curve"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/escrow"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/fee"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/referral"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
	"github.com/rovshanmuradov/curve-launchpad/internal/logger"
)

// BuyParams is a validated buy request.
type BuyParams struct {
	User        solana.PublicKey
	Mint        solana.PublicKey
	TokenAmount uint64
	// MaxSolCost bounds sol_amount + fee.
	MaxSolCost uint64
	// Hash is an opaque caller correlation token copied into the settlement record.
	Hash string
}

// SellParams is a validated sell request.
type SellParams struct {
	User        solana.PublicKey
	Mint        solana.PublicKey
	TokenAmount uint64
	// MinSolOutput bounds sol_amount - fee.
	MinSolOutput uint64
	Hash         string
}

// TradeResult describes a settled trade.
type TradeResult struct {
	Mint        solana.PublicKey
	User        solana.PublicKey
	IsBuy       bool
	TokenAmount uint64
	SolAmount   uint64
	Fee         fee.Split
	// Net is the total cost of a buy or the proceeds of a sell after fee.
	Net       uint64
	Reserves  amm.Reserves
	Completed bool
	Timestamp int64
}

const (
	sideBuy  = "buy"
	sideSell = "sell"
)

// tradeKeys are the records a trade on one curve names.
type tradeKeys struct {
	curve     solana.PublicKey
	holding   solana.PublicKey
	userToken solana.PublicKey

	userInvite      solana.PublicKey
	parentInvite    solana.PublicKey
	recipientInvite solana.PublicKey
	creatorInvite   solana.PublicKey

	// Owners the keys above were derived from. Re-checked inside the transaction.
	feeRecipient solana.PublicKey
	creator      solana.PublicKey
	parent       solana.PublicKey
}

// prepareTrade derives every record the trade will touch from committed state.
func (e *Exchange) prepareTrade(user, mint solana.PublicKey) (*tradeKeys, error) {
	g, err := e.snapshotGlobal()
	if err != nil {
		return nil, err
	}

	k := &tradeKeys{feeRecipient: g.FeeRecipient}
	if k.curve, err = e.addrs.BondingCurve(mint); err != nil {
		return nil, err
	}
	bc, err := accounts.SnapshotData[*state.BondingCurve](e.db, k.curve)
	if err != nil {
		return nil, fmt.Errorf("bonding curve of %s: %w", mint, err)
	}
	k.creator = bc.Creator

	if k.holding, err = e.addrs.CurveHolding(mint, k.curve); err != nil {
		return nil, err
	}
	if k.userToken, err = e.addrs.UserTokenAccount(user, mint); err != nil {
		return nil, err
	}
	if k.userInvite, err = e.addrs.InviteStats(user); err != nil {
		return nil, err
	}
	node, err := accounts.SnapshotData[*state.UserInviteStats](e.db, k.userInvite)
	if err != nil || !node.IsInit {
		return nil, fmt.Errorf("%w: %s", state.ErrInviteAccountNotInit, user)
	}
	k.parent = node.Parent

	if k.parentInvite, err = e.addrs.InviteStats(k.parent); err != nil {
		return nil, err
	}
	if k.recipientInvite, err = e.addrs.InviteStats(k.feeRecipient); err != nil {
		return nil, err
	}
	if k.creatorInvite, err = e.addrs.InviteStats(k.creator); err != nil {
		return nil, err
	}
	return k, nil
}

func (e *Exchange) tradeNames(k *tradeKeys, user solana.PublicKey) []solana.PublicKey {
	return []solana.PublicKey{
		e.globalKey, e.escrowKey,
		k.curve, k.holding,
		user, k.userToken,
		k.userInvite, k.parentInvite, k.recipientInvite, k.creatorInvite,
	}
}

// loadTradeState loads and re-validates the records prepareTrade resolved.
func (e *Exchange) loadTradeState(tx *accounts.Txn, k *tradeKeys, user solana.PublicKey) (*state.Global, *state.BondingCurve, error) {
	g, err := e.loadGlobal(tx)
	if err != nil {
		return nil, nil, err
	}
	if !g.FeeRecipient.Equals(k.feeRecipient) {
		return nil, nil, stale("fee recipient", k.feeRecipient, g.FeeRecipient)
	}
	bc, err := accounts.Load[*state.BondingCurve](tx, k.curve)
	if err != nil {
		return nil, nil, err
	}
	if !bc.Creator.Equals(k.creator) {
		return nil, nil, stale("creator", k.creator, bc.Creator)
	}
	node, err := e.nodes(tx).Node(user)
	if err != nil {
		return nil, nil, err
	}
	if !node.IsInit {
		return nil, nil, fmt.Errorf("%w: %s", state.ErrInviteAccountNotInit, user)
	}
	if !node.Parent.Equals(k.parent) {
		return nil, nil, stale("parent", k.parent, node.Parent)
	}
	return g, bc, nil
}

// Buy removes p.TokenAmount tokens from the curve of p.Mint for p.User.
func (e *Exchange) Buy(ctx context.Context, p BuyParams) (*TradeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		res      *TradeResult
		outcome  settlement
		curveKey solana.PublicKey
	)
	err := e.retryStale(ctx, sideBuy, func() error {
		k, err := e.prepareTrade(p.User, p.Mint)
		if err != nil {
			return err
		}
		curveKey = k.curve
		return e.db.Update(e.tradeNames(k, p.User), func(tx *accounts.Txn) error {
			res, outcome, err = e.buy(tx, k, p)
			return err
		})
	})
	if err != nil {
		return nil, e.reject(sideBuy, err,
			logger.Mint(p.Mint), logger.User(p.User),
			zap.Uint64("token_amount", p.TokenAmount), zap.Uint64("max_sol_cost", p.MaxSolCost))
	}

	e.settled(ctx, res, outcome, curveKey, p.Hash, time.Since(start))
	return res, nil
}

// settlement is what a committed trade reports beyond its result.
type settlement struct {
	escrowOutstanding uint64
}

func (e *Exchange) buy(tx *accounts.Txn, k *tradeKeys, p BuyParams) (*TradeResult, settlement, error) {
	g, bc, err := e.loadTradeState(tx, k, p.User)
	if err != nil {
		return nil, settlement{}, err
	}
	holding, err := accounts.Load[*state.TokenAccount](tx, k.holding)
	if err != nil {
		return nil, settlement{}, err
	}
	engine, q, err := priceBuy(g, bc, holding.Amount, p.TokenAmount)
	if err != nil {
		return nil, settlement{}, err
	}
	cost := q.Net
	if cost > p.MaxSolCost {
		return nil, settlement{}, &state.SlippageError{
			Limit: p.MaxSolCost, Required: cost, IsBuy: true, Cause: state.ErrMaxSOLCostExceeded,
		}
	}
	wallet, err := tx.GetOrCreate(p.User)
	if err != nil {
		return nil, settlement{}, err
	}
	if wallet.Lamports < cost {
		return nil, settlement{}, fmt.Errorf("%w: %s holds %d, buy costs %d",
			state.ErrInsufficientSOL, p.User, wallet.Lamports, cost)
	}

	if err := tx.Transfer(p.User, k.curve, q.SolAmount); err != nil {
		return nil, settlement{}, err
	}
	if err := tx.Transfer(p.User, e.escrowKey, q.Fee); err != nil {
		return nil, settlement{}, err
	}
	outstanding, err := e.creditEscrow(tx, q.Fee)
	if err != nil {
		return nil, settlement{}, err
	}

	ledger := referral.NewLedger(fee.ScheduleOf(g))
	split, err := ledger.CreditTradeFees(e.nodes(tx), q.SolAmount, g.FeeRecipient, bc.Creator, p.User)
	if err != nil {
		return nil, settlement{}, err
	}

	if err := moveTokens(tx, k.holding, k.userToken, p.Mint, p.User, q.TokenAmount); err != nil {
		return nil, settlement{}, err
	}

	now, ts := e.stamp()
	exhausted, err := curve.Commit(bc, engine, now)
	if err != nil {
		return nil, settlement{}, err
	}

	return &TradeResult{
		Mint:        p.Mint,
		User:        p.User,
		IsBuy:       true,
		TokenAmount: q.TokenAmount,
		SolAmount:   q.SolAmount,
		Fee:         split,
		Net:         cost,
		Reserves:    reservesOf(bc),
		Completed:   exhausted,
		Timestamp:   ts,
	}, settlement{escrowOutstanding: outstanding}, nil
}

// Sell returns p.TokenAmount tokens of p.User to the curve of p.Mint.
func (e *Exchange) Sell(ctx context.Context, p SellParams) (*TradeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		res      *TradeResult
		outcome  settlement
		curveKey solana.PublicKey
	)
	err := e.retryStale(ctx, sideSell, func() error {
		k, err := e.prepareTrade(p.User, p.Mint)
		if err != nil {
			return err
		}
		curveKey = k.curve
		return e.db.Update(e.tradeNames(k, p.User), func(tx *accounts.Txn) error {
			res, outcome, err = e.sell(tx, k, p)
			return err
		})
	})
	if err != nil {
		return nil, e.reject(sideSell, err,
			logger.Mint(p.Mint), logger.User(p.User),
			zap.Uint64("token_amount", p.TokenAmount), zap.Uint64("min_sol_output", p.MinSolOutput))
	}

	e.settled(ctx, res, outcome, curveKey, p.Hash, time.Since(start))
	return res, nil
}

func (e *Exchange) sell(tx *accounts.Txn, k *tradeKeys, p SellParams) (*TradeResult, settlement, error) {
	g, bc, err := e.loadTradeState(tx, k, p.User)
	if err != nil {
		return nil, settlement{}, err
	}
	holding, err := accounts.Load[*state.TokenAccount](tx, k.holding)
	if err != nil {
		return nil, settlement{}, err
	}
	engine, q, err := e.priceSell(g, bc, holding.Amount, p.TokenAmount)
	if err != nil {
		return nil, settlement{}, err
	}
	owned, err := tokenBalance(tx, k.userToken)
	if err != nil {
		return nil, settlement{}, err
	}
	if owned < p.TokenAmount {
		return nil, settlement{}, fmt.Errorf("%w: %s holds %d, sells %d",
			state.ErrInsufficientTokens, p.User, owned, p.TokenAmount)
	}
	net := q.Net
	if net < p.MinSolOutput {
		return nil, settlement{}, &state.SlippageError{
			Limit: p.MinSolOutput, Required: net, IsBuy: false, Cause: state.ErrMinSOLOutputExceeded,
		}
	}

	if err := moveTokens(tx, k.userToken, k.holding, p.Mint, k.curve, q.TokenAmount); err != nil {
		return nil, settlement{}, err
	}
	if err := tx.Transfer(k.curve, p.User, net); err != nil {
		return nil, settlement{}, err
	}
	if err := tx.Transfer(k.curve, e.escrowKey, q.Fee); err != nil {
		return nil, settlement{}, err
	}
	outstanding, err := e.creditEscrow(tx, q.Fee)
	if err != nil {
		return nil, settlement{}, err
	}

	ledger := referral.NewLedger(fee.ScheduleOf(g))
	split, err := ledger.CreditTradeFees(e.nodes(tx), q.SolAmount, g.FeeRecipient, bc.Creator, p.User)
	if err != nil {
		return nil, settlement{}, err
	}

	now, ts := e.stamp()
	exhausted, err := curve.Commit(bc, engine, now)
	if err != nil {
		return nil, settlement{}, err
	}

	return &TradeResult{
		Mint:        p.Mint,
		User:        p.User,
		IsBuy:       false,
		TokenAmount: q.TokenAmount,
		SolAmount:   q.SolAmount,
		Fee:         split,
		Net:         net,
		Reserves:    reservesOf(bc),
		Completed:   exhausted,
		Timestamp:   ts,
	}, settlement{escrowOutstanding: outstanding}, nil
}

// creditEscrow records amount as received and checks the escrow's balance covers it.
func (e *Exchange) creditEscrow(tx *accounts.Txn, amount uint64) (uint64, error) {
	acc, err := tx.Get(e.escrowKey)
	if err != nil {
		return 0, err
	}
	ledger, err := accounts.Load[*state.FeeAccount](tx, e.escrowKey)
	if err != nil {
		return 0, err
	}
	if err := escrow.CreditReceived(ledger, amount); err != nil {
		return 0, err
	}
	if err := escrow.Verify(ledger, acc.Lamports); err != nil {
		return 0, err
	}
	outstanding, _ := escrow.Expected(ledger)
	return outstanding, nil
}

// settled emits the records of a committed trade.
func (e *Exchange) settled(ctx context.Context, res *TradeResult, out settlement, curveKey solana.PublicKey, hash string, took time.Duration) {
	side := sideSell
	if res.IsBuy {
		side = sideBuy
	}
	e.metrics.RecordTrade(side, took)
	e.metrics.RecordFees(res.Fee.Total, res.Fee.Protocol, res.Fee.Creator, res.Fee.Invite)
	e.metrics.SetEscrowOutstanding(out.escrowOutstanding)

	now := time.Unix(res.Timestamp, 0)
	trade := &events.TradeEvent{
		BaseEvent:            events.NewBase(events.TradeSettled, now),
		Mint:                 res.Mint.String(),
		SolAmount:            res.SolAmount,
		TokenAmount:          res.TokenAmount,
		IsBuy:                res.IsBuy,
		User:                 res.User.String(),
		Time:                 res.Timestamp,
		VirtualSolReserves:   res.Reserves.VirtualSolReserves,
		VirtualTokenReserves: res.Reserves.VirtualTokenReserves,
		RealSolReserves:      res.Reserves.RealSolReserves,
		RealTokenReserves:    res.Reserves.RealTokenReserves,
		Hash:                 hash,
		Fee:                  res.Fee.Total,
	}
	e.logger.Info("tradelog",
		zap.String("mint", trade.Mint),
		zap.String("user", trade.User),
		zap.Bool("is_buy", trade.IsBuy),
		zap.Uint64("sol_amount", trade.SolAmount),
		zap.Uint64("token_amount", trade.TokenAmount),
		zap.Uint64("fee", res.Fee.Total),
		zap.Uint64("virtual_sol_reserves", trade.VirtualSolReserves),
		zap.Uint64("virtual_token_reserves", trade.VirtualTokenReserves),
		zap.Uint64("real_sol_reserves", trade.RealSolReserves),
		zap.Uint64("real_token_reserves", trade.RealTokenReserves),
		zap.String("hash", hash))

	records := []events.Event{trade}
	if res.Completed {
		e.metrics.RecordCompletion()
		complete := &events.CompleteEvent{
			BaseEvent:    events.NewBase(events.CurveCompleted, now),
			User:         res.User.String(),
			Mint:         res.Mint.String(),
			BondingCurve: curveKey.String(),
			Time:         res.Timestamp,
		}
		e.logger.Info("completelog",
			zap.String("user", complete.User),
			zap.String("mint", complete.Mint),
			zap.String("bonding_curve", complete.BondingCurve))
		records = append(records, complete)
	}
	e.emit(ctx, records...)
}

func reservesOf(bc *state.BondingCurve) amm.Reserves {
	return amm.Reserves{
		VirtualSolReserves:   bc.VirtualSolReserves,
		VirtualTokenReserves: bc.VirtualTokenReserves,
		RealSolReserves:      bc.RealSolReserves,
		RealTokenReserves:    bc.RealTokenReserves,
	}
}
