package cli

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/exchange"
)

func newQuoteCmd(root *rootOptions) *cobra.Command {
	var (
		side   string
		tokens uint64
		sold   uint64
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a trade on a freshly seeded curve",
		Long: `Price a buy or sell of --tokens on a curve seeded from the configured
reserves, optionally after --sold tokens have already been bought.

Example:
  $ launchpad quote --side buy --tokens 1000000000
  $ launchpad quote --side sell --tokens 1000000000 --sold 500000000000000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if side != "buy" && side != "sell" {
				return fmt.Errorf("unsupported side %q", side)
			}
			if side == "sell" && tokens > sold {
				return fmt.Errorf("cannot sell %d tokens, only %d sold", tokens, sold)
			}

			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer log.Close() //nolint:errcheck

			ctx := cmd.Context()
			zl := log.WithComponent("quote")
			db := accounts.NewDB(zl)
			ex, err := exchange.New(db, zl,
				exchange.WithParams(cfg.Params()),
				exchange.WithPolicy(cfg.CurvePolicy()))
			if err != nil {
				return err
			}

			authority := solana.NewWallet().PublicKey()
			mint := solana.NewWallet().PublicKey()
			if _, err := ex.Initialize(ctx, authority); err != nil {
				return err
			}
			if _, err := ex.CreateCurve(ctx, exchange.CreateParams{Creator: authority, Mint: mint}); err != nil {
				return err
			}

			if sold > 0 {
				if _, err := ex.InitInvite(ctx, authority, solana.PublicKey{}); err != nil {
					return err
				}
				if err := db.Airdrop(authority, math.MaxUint64/2); err != nil {
					return err
				}
				if _, err := ex.Buy(ctx, exchange.BuyParams{User: authority, Mint: mint, TokenAmount: sold, MaxSolCost: math.MaxUint64}); err != nil {
					return fmt.Errorf("failed to pre-sell %d tokens: %w", sold, err)
				}
			}

			var q exchange.Quote
			if side == "buy" {
				q, err = ex.QuoteBuy(mint, tokens)
			} else {
				q, err = ex.QuoteSell(mint, tokens)
			}
			if err != nil {
				return err
			}
			progress, err := ex.Progress(mint)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "side:       %s\n", side)
			fmt.Fprintf(out, "tokens:     %d\n", q.TokenAmount)
			fmt.Fprintf(out, "sol_amount: %d\n", q.SolAmount)
			fmt.Fprintf(out, "fee:        %d\n", q.Fee)
			if side == "buy" {
				fmt.Fprintf(out, "total_cost: %d\n", q.Net)
			} else {
				fmt.Fprintf(out, "net_output: %d\n", q.Net)
			}
			fmt.Fprintf(out, "progress:   %.2f%%\n", float64(progress)/100)
			return nil
		},
	}

	cmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	cmd.Flags().Uint64Var(&tokens, "tokens", 0, "token amount in base units")
	cmd.Flags().Uint64Var(&sold, "sold", 0, "tokens already bought from the curve before the quote")
	_ = cmd.MarkFlagRequired("tokens")
	return cmd
}
