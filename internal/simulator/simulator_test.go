package simulator

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/curve-launchpad/internal/config"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/memory"
)

const scenarioYAML = `
wallets:
  - name: alice
    sol: 100
    key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
  - name: bob
    sol: 50
    parent: alice
  - name: carol
    sol: 0.00001
    parent: bob
curves:
  - symbol: TST
    name: Test
    creator: alice
rounds:
  - steps:
      - {op: buy, wallet: bob, curve: TST, tokens: 1000000000}
      - {op: buy, wallet: alice, curve: TST, tokens: 2000000000}
      - {op: buy, wallet: carol, curve: TST, tokens: 1000000000000}
  - steps:
      - {op: sell, wallet: bob, curve: TST, tokens: 1000000000}
      - {op: buy, wallet: alice, curve: TST, tokens: 1000000000, max_sol_cost: 1}
  - steps:
      - {op: claim, wallet: alice}
`

func TestParseScenarioValidates(t *testing.T) {
	_, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)

	tests := []struct {
		name string
		yaml string
	}{
		{"no wallets", "curves: [{symbol: A, creator: x}]"},
		{"unknown creator", "wallets: [{name: a}]\ncurves: [{symbol: A, creator: b}]"},
		{"parent declared later", "wallets: [{name: a, parent: b}, {name: b}]\ncurves: [{symbol: A, creator: a}]"},
		{"duplicate wallet", "wallets: [{name: a}, {name: a}]\ncurves: [{symbol: A, creator: a}]"},
		{"unknown curve", "wallets: [{name: a}]\ncurves: [{symbol: A, creator: a}]\nrounds: [{steps: [{op: buy, wallet: a, curve: B}]}]"},
		{"bad op", "wallets: [{name: a}]\ncurves: [{symbol: A, creator: a}]\nrounds: [{steps: [{op: mint, wallet: a}]}]"},
		{"bad yaml", "wallets: [{"},
		{"bad key", "wallets: [{name: a, key: not-base58!}]\ncurves: [{symbol: A, creator: a}]"},
		{"negative funding", "wallets: [{name: a, sol: -1}]\ncurves: [{symbol: A, creator: a}]"},
		{"nan funding", "wallets: [{name: a, sol: .nan}]\ncurves: [{symbol: A, creator: a}]"},
		{"infinite funding", "wallets: [{name: a, sol: .inf}]\ncurves: [{symbol: A, creator: a}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSolToLamports(t *testing.T) {
	tests := []struct {
		name    string
		sol     float64
		want    uint64
		wantErr bool
	}{
		{"whole", 2, 2_000_000_000, false},
		{"fraction", 0.00001, 10_000, false},
		{"zero", 0, 0, false},
		{"negative zero", math.Copysign(0, -1), 0, false},
		{"negative", -0.5, 0, true},
		{"nan", math.NaN(), 0, true},
		{"positive infinity", math.Inf(1), 0, true},
		{"negative infinity", math.Inf(-1), 0, true},
		{"above uint64", 2e10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := solToLamports(tt.sol)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newRunner(t *testing.T, store storage.Storage) *Runner {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Workers = 4
	r, err := NewRunner(context.Background(), cfg, zaptest.NewLogger(t),
		WithStorage(store),
		WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	return r
}

func TestRunnerReplaysScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := newRunner(t, store)

	sc, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)

	report, err := r.Run(ctx, sc)
	require.NoError(t, err)
	require.NoError(t, r.Close(ctx))

	require.Len(t, report.Rounds, 3)
	first := report.Rounds[0]
	assert.Equal(t, 2, first.Succeeded)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, 1, first.Errors["InsufficientSOL"])

	second := report.Rounds[1]
	assert.Equal(t, 1, second.Succeeded)
	assert.Equal(t, 1, second.Errors["MaxSOLCostExceeded"])
	assert.Equal(t, 3, report.Trades)

	third := report.Rounds[2]
	assert.Equal(t, 1, third.Succeeded)
	assert.Greater(t, third.Claimed, uint64(0))
	assert.Equal(t, third.Claimed, report.Claimed)

	assert.True(t, report.Escrow.Solvent)
	assert.Equal(t, report.Escrow.Balance, report.Escrow.Outstanding)
	require.Len(t, report.Curves, 1)
	assert.False(t, report.Curves[0].Complete)
	assert.Greater(t, report.Curves[0].RealSolReserves, uint64(0))

	// записи дошли до хранилища через шину
	trades, err := store.ListTrades(ctx, storage.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	var alice WalletReport
	for _, w := range report.Wallets {
		if w.Name == "alice" {
			alice = w
		}
	}
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", alice.Key.String())
	assert.Equal(t, uint64(2_000_000_000), alice.Tokens["TST"])
	claims, err := store.ListClaims(ctx, alice.Key.String(), 0, 0)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, third.Claimed, claims[0].Amount)
	assert.Equal(t, uint64(0), alice.Claimable)

	var out bytes.Buffer
	require.NoError(t, report.Print(&out))
	assert.Contains(t, out.String(), "InsufficientSOL=1")
	assert.Contains(t, out.String(), "TST")
}

func TestShutdownHandlerClosesInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)
	var order []string
	boom := errors.New("boom")
	sh.AddFunc("first", func() error { order = append(order, "first"); return nil })
	sh.AddFunc("second", func() error { order = append(order, "second"); return boom })

	err := sh.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, order)

	// повторный вызов не закрывает сервисы снова
	assert.ErrorIs(t, sh.Shutdown(context.Background()), boom)
	assert.Len(t, order, 2)
}
