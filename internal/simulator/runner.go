// internal/simulator/runner.go
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/config"
	"github.com/rovshanmuradov/curve-launchpad/internal/events"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/exchange"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
	"github.com/rovshanmuradov/curve-launchpad/internal/metrics"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/postgres"
)

// Runner wires an in-process launchpad and replays scenarios against it.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *accounts.DB
	bus      *events.Bus
	store    storage.Storage
	metrics  *metrics.Collector
	ex       *exchange.Exchange
	shutdown *ShutdownHandler

	registerer prometheus.Registerer
}

type Option func(*Runner)

// WithStorage replaces the storage chosen from the configuration.
func WithStorage(s storage.Storage) Option {
	return func(r *Runner) { r.store = s }
}

// WithRegisterer registers the launchpad collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runner) { r.registerer = reg }
}

// NewRunner opens the storage named by cfg and wires an exchange to it.
func NewRunner(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		shutdown: NewShutdownHandler(logger, 10*time.Second),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.store == nil {
		store, err := openStorage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		r.store = store
	}
	r.shutdown.Add("storage", r.store)

	r.bus = events.NewBus(logger, cfg.EventBuffer)
	storage.NewRecorder(r.store, logger).Attach(r.bus)
	r.shutdown.AddFunc("event bus", func() error {
		return r.bus.Shutdown(context.Background())
	})

	r.metrics = metrics.NewCollector(r.registerer)
	r.db = accounts.NewDB(logger)

	ex, err := exchange.New(r.db, logger,
		exchange.WithPublisher(r.bus),
		exchange.WithMetrics(r.metrics),
		exchange.WithPolicy(cfg.CurvePolicy()),
		exchange.WithParams(cfg.Params()),
		exchange.WithStaleRetries(uint(cfg.Retries)),
	)
	if err != nil {
		_ = r.shutdown.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create exchange: %w", err)
	}
	r.ex = ex
	return r, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.PostgresURL == "" {
		logger.Info("Using in-memory storage")
		return memory.New(), nil
	}

	opts := postgres.DefaultConnectOptions()
	opts.MaxTries = uint(cfg.Retries) + 1
	store, err := postgres.NewStorage(ctx, cfg.PostgresURL, logger, opts)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("Using postgres storage")
	return store, nil
}

func (r *Runner) Exchange() *exchange.Exchange { return r.ex }

func (r *Runner) Storage() storage.Storage { return r.store }

// Close shuts the bus down, then closes the storage.
func (r *Runner) Close(ctx context.Context) error {
	r.logger.Debug("Event bus stats", zap.Any("stats", r.bus.Stats()))
	return r.shutdown.Shutdown(ctx)
}

// Run bootstraps the scenario's wallets and curves and executes its rounds.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	authority := solana.NewWallet().PublicKey()
	if _, err := r.ex.Initialize(ctx, authority); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	wallets := make(map[string]solana.PublicKey, len(sc.Wallets))
	for _, w := range sc.Wallets {
		key, err := w.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", w.Name, err)
		}
		wallets[w.Name] = key

		lamports, err := solToLamports(w.SOL)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", w.Name, err)
		}
		if err := r.db.Airdrop(key, lamports); err != nil {
			return nil, fmt.Errorf("wallet %q: %w", w.Name, err)
		}

		var parent solana.PublicKey
		if w.Parent != "" {
			parent = wallets[w.Parent]
		}
		if _, err := r.ex.InitInvite(ctx, key, parent); err != nil {
			return nil, fmt.Errorf("wallet %q: %w", w.Name, err)
		}
	}

	mints := make(map[string]solana.PublicKey, len(sc.Curves))
	for _, c := range sc.Curves {
		mint := solana.NewWallet().PublicKey()
		_, err := r.ex.CreateCurve(ctx, exchange.CreateParams{
			Creator: wallets[c.Creator],
			Mint:    mint,
			Name:    c.Name,
			Symbol:  c.Symbol,
			URI:     c.URI,
		})
		if err != nil {
			return nil, fmt.Errorf("curve %q: %w", c.Symbol, err)
		}
		mints[c.Symbol] = mint
	}

	report := &Report{Authority: authority}
	for i, round := range sc.Rounds {
		reqs, err := r.requests(round, wallets, mints)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i, err)
		}

		outcomes, err := r.ex.ExecuteBatch(ctx, reqs, r.cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i, err)
		}
		rr := tally(i, outcomes)
		report.Rounds = append(report.Rounds, rr)

		r.logger.Info("Round executed",
			zap.Int("round", i),
			zap.Int("succeeded", rr.Succeeded),
			zap.Int("failed", rr.Failed))
	}

	// The recorder persists off the settlement path; exports read the store.
	if err := r.bus.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush records: %w", err)
	}

	if err := r.summarize(report, sc, wallets, mints); err != nil {
		return nil, err
	}
	r.metrics.SetEscrowOutstanding(report.Escrow.Outstanding)
	report.Duration = time.Since(start)

	r.logger.Info("Scenario finished",
		zap.Int("rounds", len(report.Rounds)),
		zap.Int("trades", report.Trades),
		zap.Uint64("claimed", report.Claimed),
		zap.Bool("escrow_solvent", report.Escrow.Solvent),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) requests(round Round, wallets, mints map[string]solana.PublicKey) ([]exchange.Request, error) {
	reqs := make([]exchange.Request, 0, len(round.Steps))
	for _, s := range round.Steps {
		user := wallets[s.Wallet]
		switch s.Operation {
		case OperationBuy:
			maxCost := s.MaxSolCost
			if maxCost == 0 {
				maxCost = math.MaxUint64
			}
			reqs = append(reqs, exchange.Request{Buy: &exchange.BuyParams{
				User:        user,
				Mint:        mints[s.Curve],
				TokenAmount: s.Tokens,
				MaxSolCost:  maxCost,
			}})
		case OperationSell:
			reqs = append(reqs, exchange.Request{Sell: &exchange.SellParams{
				User:         user,
				Mint:         mints[s.Curve],
				TokenAmount:  s.Tokens,
				MinSolOutput: s.MinSolOutput,
			}})
		case OperationClaim:
			claimer := user
			reqs = append(reqs, exchange.Request{Claim: &claimer})
		default:
			return nil, fmt.Errorf("unsupported operation %q", s.Operation)
		}
	}
	return reqs, nil
}

func (r *Runner) summarize(report *Report, sc *Scenario, wallets, mints map[string]solana.PublicKey) error {
	for _, rr := range report.Rounds {
		report.Trades += rr.Trades
		report.Claimed += rr.Claimed
	}

	escrow, err := r.ex.Escrow()
	if err != nil {
		return fmt.Errorf("escrow: %w", err)
	}
	report.Escrow = escrow

	for _, c := range sc.Curves {
		mint := mints[c.Symbol]
		bc, err := r.ex.Curve(mint)
		if err != nil {
			return err
		}
		progress, err := r.ex.Progress(mint)
		if err != nil {
			return err
		}
		report.Curves = append(report.Curves, CurveReport{
			Symbol:            c.Symbol,
			Mint:              mint,
			ProgressBps:       progress,
			Complete:          bc.Complete,
			RealSolReserves:   bc.RealSolReserves,
			RealTokenReserves: bc.RealTokenReserves,
		})
	}

	for _, w := range sc.Wallets {
		key := wallets[w.Name]
		wr := WalletReport{Name: w.Name, Key: key, Lamports: r.ex.Balance(key)}
		if node, err := r.ex.InviteStats(key); err == nil {
			wr.Claimable = node.ProfitClaimable
		}
		for _, c := range sc.Curves {
			tokens, err := r.ex.TokenBalance(key, mints[c.Symbol])
			if err != nil {
				return err
			}
			if tokens > 0 {
				if wr.Tokens == nil {
					wr.Tokens = make(map[string]uint64)
				}
				wr.Tokens[c.Symbol] = tokens
			}
		}
		report.Wallets = append(report.Wallets, wr)
	}
	return nil
}

func solToLamports(sol float64) (uint64, error) {
	lamports := sol * LamportsPerSOL
	if math.IsNaN(lamports) || lamports < 0 || lamports >= math.MaxUint64 {
		return 0, fmt.Errorf("funding %.9f SOL out of range", sol)
	}
	return uint64(lamports), nil
}

func tally(index int, outcomes []exchange.Outcome) RoundReport {
	rr := RoundReport{Index: index, Errors: make(map[string]int)}
	for _, o := range outcomes {
		if o.Err != nil {
			rr.Failed++
			rr.Errors[errorCode(o.Err)]++
			continue
		}
		rr.Succeeded++
		if o.Trade != nil {
			rr.Trades++
			rr.Fees += o.Trade.Fee.Total
		}
		rr.Claimed += o.Claimed
	}
	return rr
}

func errorCode(err error) string {
	var se *state.Error
	if errors.As(err, &se) {
		return se.Code
	}
	return state.KindOf(err).String()
}
