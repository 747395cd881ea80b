package exchange

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Request is one entry of a batch. Exactly one field is set.
type Request struct {
	Buy   *BuyParams
	Sell  *SellParams
	Claim *solana.PublicKey
}

// Outcome is the result of one batch entry.
type Outcome struct {
	Trade   *TradeResult
	Claimed uint64
	Err     error
}

// ExecuteBatch runs reqs with at most workers in flight. Requests over disjoint
// records execute in parallel; overlapping ones serialise on their records.
// A failed request does not stop the batch; its error is in its Outcome.
func (e *Exchange) ExecuteBatch(ctx context.Context, reqs []Request, workers int) ([]Outcome, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]Outcome, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.execute(gctx, reqs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	e.logger.Debug("Batch executed",
		zap.Int("requests", len(reqs)),
		zap.Int("failed", failed),
		zap.Int("workers", workers))
	return out, nil
}

func (e *Exchange) execute(ctx context.Context, r Request) Outcome {
	switch {
	case r.Buy != nil:
		res, err := e.Buy(ctx, *r.Buy)
		return Outcome{Trade: res, Err: err}
	case r.Sell != nil:
		res, err := e.Sell(ctx, *r.Sell)
		return Outcome{Trade: res, Err: err}
	case r.Claim != nil:
		amount, err := e.ClaimInviteProfit(ctx, *r.Claim)
		return Outcome{Claimed: amount, Err: err}
	default:
		return Outcome{Err: fmt.Errorf("empty batch request")}
	}
}
