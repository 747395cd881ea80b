package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-file", filepath.Join(t.TempDir(), "launchpad.log")))
	err := cmd.Execute()
	return out.String(), err
}

func TestQuoteBuyOnFreshCurve(t *testing.T) {
	out, err := run(t, "quote", "--side", "buy", "--tokens", "1000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "sol_amount: 27960")
	assert.Contains(t, out, "fee:        279")
	assert.Contains(t, out, "total_cost: 28239")
	assert.Contains(t, out, "progress:   0.00%")
}

func TestQuoteSellAfterBuy(t *testing.T) {
	out, err := run(t, "quote", "--side", "sell", "--tokens", "1000000000", "--sold", "1000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "sol_amount: 27959")
	assert.Contains(t, out, "net_output: 27680")
}

func TestQuoteRejectsBadInput(t *testing.T) {
	_, err := run(t, "quote", "--side", "hold", "--tokens", "1")
	assert.Error(t, err)

	_, err = run(t, "quote", "--side", "sell", "--tokens", "10")
	assert.Error(t, err)

	_, err = run(t, "quote")
	assert.Error(t, err)
}

func TestEnvironmentAppliesWithoutConfigFile(t *testing.T) {
	t.Setenv("LAUNCHPAD_WORKERS", "0")
	_, err := run(t, "quote", "--side", "buy", "--tokens", "1000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestSimulateExportsTrades(t *testing.T) {
	dir := t.TempDir()
	scenario := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte(`
wallets:
  - {name: alice, sol: 10}
  - {name: bob, sol: 10, parent: alice}
curves:
  - {symbol: TST, creator: alice}
rounds:
  - steps:
      - {op: buy, wallet: bob, curve: TST, tokens: 1000000000}
      - {op: buy, wallet: alice, curve: TST, tokens: 1000000000}
  - steps:
      - {op: claim, wallet: alice}
`), 0600))

	exportDir := filepath.Join(dir, "out")
	out, err := run(t, "simulate", scenario, "--export-dir", exportDir, "--export-format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "trades exported to")
	assert.Contains(t, out, "solvent=true")

	files, err := filepath.Glob(filepath.Join(exportDir, "trades_all_*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSimulateMissingScenario(t *testing.T) {
	_, err := run(t, "simulate", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
