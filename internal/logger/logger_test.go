package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newTestLogger(t *testing.T, dev bool) (*Logger, *bytes.Buffer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launchpad.log")
	cfg := DefaultConfig()
	cfg.LogFile = path
	cfg.Compress = false
	cfg.Development = dev

	var console bytes.Buffer
	l, err := newLogger(cfg, zapcore.AddSync(&console))
	require.NoError(t, err)
	return l, &console, path
}

func readJSONLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		out = append(out, line)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestLoggerWritesConsoleAndFile(t *testing.T) {
	l, console, path := newTestLogger(t, false)
	mint := solana.NewWallet().PublicKey()

	l.Info("tradelog", Mint(mint), zap.Uint64("sol_amount", 27_960))
	l.Debug("hidden below info")
	require.NoError(t, l.Close())

	assert.Contains(t, console.String(), "tradelog")
	assert.NotContains(t, console.String(), "hidden below info")

	lines := readJSONLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, mint.String(), lines[0]["mint"])
	assert.EqualValues(t, 27_960, lines[0]["sol_amount"])
	assert.Contains(t, lines[0], "timestamp")
}

func TestLoggerContextHelpers(t *testing.T) {
	l, _, path := newTestLogger(t, true)
	user := solana.NewWallet().PublicKey()

	l.WithOperation("buy").Debug("start")
	l.Info("claimInviteProfit", User(user))
	l.WithComponent("exchange").Warn("stale accounts")
	l.LogError("settlement failed", errors.New("boom"))
	l.TrackPerformance("simulate")()
	require.NoError(t, l.Close())

	lines := readJSONLines(t, path)
	require.Len(t, lines, 6)
	assert.Equal(t, "buy", lines[0]["operation"])
	assert.NotEmpty(t, lines[0]["correlation_id"])
	assert.Equal(t, user.String(), lines[1]["user"])
	assert.Equal(t, "exchange", lines[2]["component"])
	assert.Equal(t, "boom", lines[3]["error"])
	assert.Equal(t, "simulate", lines[5]["operation"])
	assert.Contains(t, lines[5], "duration")
}

func TestNewRejectsEmptyFile(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}
