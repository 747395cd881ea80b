package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/events"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/exchange"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/models"
)

func TestRecorderPersistsExchangeRecords(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	now := time.Unix(1_700_000_000, 0)

	bus := events.NewBus(logger, 16)
	defer bus.Shutdown(ctx) //nolint:errcheck
	store := memory.New()
	storage.NewRecorder(store, logger).Attach(bus)

	db := accounts.NewDB(logger)
	ex, err := exchange.New(db, logger,
		exchange.WithPublisher(bus),
		exchange.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	authority := solana.NewWallet().PublicKey()
	creator := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	parent := solana.NewWallet().PublicKey()
	trader := solana.NewWallet().PublicKey()

	_, err = ex.Initialize(ctx, authority)
	require.NoError(t, err)
	_, err = ex.CreateCurve(ctx, exchange.CreateParams{Creator: creator, Mint: mint, Name: "Test", Symbol: "TST"})
	require.NoError(t, err)
	_, err = ex.InitInvite(ctx, trader, parent)
	require.NoError(t, err)
	require.NoError(t, db.Airdrop(trader, 10_000_000_000))

	_, err = ex.Buy(ctx, exchange.BuyParams{User: trader, Mint: mint, TokenAmount: 1_000_000_000, MaxSolCost: 1 << 40, Hash: "h1"})
	require.NoError(t, err)
	claimed, err := ex.ClaimInviteProfit(ctx, parent)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), claimed)

	require.NoError(t, bus.Flush(ctx))
	trades, err := store.ListTrades(ctx, storage.TradeFilter{Mint: mint.String()})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(27_960), trades[0].SolAmount)
	assert.Equal(t, uint64(279), trades[0].Fee)
	assert.Equal(t, models.ActionBuy, trades[0].Action())
	assert.Equal(t, now.UTC(), trades[0].BlockTime)
	assert.NotZero(t, trades[0].ID)

	c, err := store.GetCurve(ctx, mint.String())
	require.NoError(t, err)
	assert.Equal(t, creator.String(), c.Creator)
	assert.False(t, c.Complete)

	claims, err := store.ListClaims(ctx, parent.String(), 0, 0)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, uint64(41), claims[0].Amount)

	changes := store.ParamsChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, authority.String(), changes[0].FeeRecipient)
	assert.Equal(t, uint64(50), changes[0].FeeBasisPoints)
}

func TestRecorderMarksCompletion(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := storage.NewRecorder(store, zaptest.NewLogger(t))
	at := time.Unix(20, 0)

	err := rec.Handle(ctx, &events.CompleteEvent{BaseEvent: events.NewBase(events.CurveCompleted, at), Mint: "m", User: "u", Time: 20})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, rec.Handle(ctx, &events.CreateEvent{BaseEvent: events.NewBase(events.CurveCreated, at), Mint: "m", CreatedTime: 10}))
	require.NoError(t, rec.Handle(ctx, &events.CompleteEvent{BaseEvent: events.NewBase(events.CurveCompleted, at), Mint: "m", User: "u", Time: 20}))

	c, err := store.GetCurve(ctx, "m")
	require.NoError(t, err)
	assert.True(t, c.Complete)
	assert.Equal(t, "u", c.CompletedBy)
	require.NotNil(t, c.CompletedAt)
	assert.Equal(t, at.UTC(), *c.CompletedAt)
	assert.Equal(t, time.Unix(10, 0).UTC(), c.LaunchedAt)
}
