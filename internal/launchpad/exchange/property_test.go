package exchange

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// TestLedgersStayConsistent drives random trades and claims and checks after
// every request that the escrow covers its ledger, that curve lamports equal
// real SOL reserves and that no tokens are created or destroyed.
func TestLedgersStayConsistent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f, err := setup(zap.NewNop())
		if err != nil {
			rt.Fatalf("setup: %v", err)
		}
		defer f.bus.Shutdown(context.Background()) //nolint:errcheck

		ctx := context.Background()
		second := solana.NewWallet().PublicKey()
		if _, err := f.ex.InitInvite(ctx, second, f.trader); err != nil {
			rt.Fatalf("init invite: %v", err)
		}
		if err := f.db.Airdrop(second, 50*lamportsPerSol); err != nil {
			rt.Fatalf("airdrop: %v", err)
		}

		traders := []solana.PublicKey{f.trader, second}
		claimers := []solana.PublicKey{f.authority, f.creator, f.parent, f.trader, second}
		curveKey, _ := f.ex.Addresses().BondingCurve(f.mint)
		holdingKey, _ := f.ex.Addresses().CurveHolding(f.mint, curveKey)

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(traders).Draw(rt, "user")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				amount := rapid.Uint64Range(1, 50_000_000_000_000).Draw(rt, "buy")
				q, qErr := f.ex.QuoteBuy(f.mint, amount)
				var res *TradeResult
				res, err = f.ex.Buy(ctx, BuyParams{User: user, Mint: f.mint, TokenAmount: amount, MaxSolCost: 1 << 62})
				checkQuote(rt, i, q, qErr, res, err)
			case 1:
				owned, _ := f.ex.TokenBalance(user, f.mint)
				amount := rapid.Uint64Range(1, owned+1).Draw(rt, "sell")
				q, qErr := f.ex.QuoteSell(f.mint, amount)
				var res *TradeResult
				res, err = f.ex.Sell(ctx, SellParams{User: user, Mint: f.mint, TokenAmount: amount})
				checkQuote(rt, i, q, qErr, res, err)
			default:
				owner := rapid.SampledFrom(claimers).Draw(rt, "claimer")
				_, err = f.ex.ClaimInviteProfit(ctx, owner)
			}
			if state.KindOf(err) == state.KindInvariant || state.KindOf(err) == state.KindArithmetic {
				rt.Fatalf("step %d: %v", i, err)
			}

			st, err := f.ex.Escrow()
			if err != nil {
				rt.Fatalf("escrow: %v", err)
			}
			if !st.Solvent || st.Balance != st.Outstanding {
				rt.Fatalf("step %d: escrow %+v", i, st)
			}

			bc, err := f.ex.Curve(f.mint)
			if err != nil {
				rt.Fatalf("curve: %v", err)
			}
			if got := f.ex.Balance(curveKey); got != bc.RealSolReserves {
				rt.Fatalf("step %d: curve holds %d lamports, real sol reserves %d", i, got, bc.RealSolReserves)
			}
			if bc.VirtualSolReserves < bc.RealSolReserves || bc.VirtualTokenReserves < bc.RealTokenReserves {
				rt.Fatalf("step %d: virtual below real: %+v", i, bc)
			}

			holding, err := accounts.SnapshotData[*state.TokenAccount](f.db, holdingKey)
			if err != nil {
				rt.Fatalf("holding: %v", err)
			}
			total := holding.Amount
			for _, u := range traders {
				owned, _ := f.ex.TokenBalance(u, f.mint)
				total += owned
			}
			if total != bc.TokenTotalSupply {
				rt.Fatalf("step %d: %d tokens accounted, supply %d", i, total, bc.TokenTotalSupply)
			}
		}
	})
}

// checkQuote fails when a trade settled differently from its quote, or
// settled although the quote was rejected.
func checkQuote(rt *rapid.T, step int, q Quote, qErr error, res *TradeResult, err error) {
	if err != nil {
		return
	}
	if qErr != nil {
		rt.Fatalf("step %d: quote rejected with %v, trade settled", step, qErr)
	}
	got := Quote{TokenAmount: res.TokenAmount, SolAmount: res.SolAmount, Fee: res.Fee.Total, Net: res.Net}
	if got != q {
		rt.Fatalf("step %d: quoted %+v, settled %+v", step, q, got)
	}
}
