// internal/storage/recorder.go
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/events"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/models"
)

// RecordedTypes are the event types a Recorder persists.
var RecordedTypes = []events.EventType{
	events.TradeSettled,
	events.CurveCompleted,
	events.CurveCreated,
	events.InviteInitialized,
	events.InviteProfitClaimed,
	events.ParamsUpdated,
}

// Recorder persists the records published on the event bus.
type Recorder struct {
	store  Storage
	logger *zap.Logger
}

func NewRecorder(store Storage, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger.Named("recorder")}
}

// Attach subscribes r to every persisted type on bus. Records are written on
// the bus worker, so storage latency stays off the settlement path; call
// bus.Flush before reading what was stored.
func (r *Recorder) Attach(bus *events.Bus) events.Subscription {
	return bus.Subscribe(r, events.Queued, RecordedTypes...)
}

func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	var err error
	switch ev := event.(type) {
	case *events.TradeEvent:
		err = r.store.SaveTrade(ctx, TradeFromEvent(ev))
	case *events.CompleteEvent:
		err = r.store.MarkCurveComplete(ctx, ev.Mint, ev.User, unix(ev.Time))
	case *events.CreateEvent:
		err = r.store.SaveCurve(ctx, &models.Curve{
			Mint:         ev.Mint,
			BondingCurve: ev.BondingCurve,
			Creator:      ev.Creator,
			Name:         ev.Name,
			Symbol:       ev.Symbol,
			URI:          ev.URI,
			TokenSupply:  ev.TokenSupply,
			LaunchedAt:   unix(int64(ev.CreatedTime)),
		})
	case *events.InviteInitializedEvent:
		err = r.store.SaveInvite(ctx, &models.Invite{
			User:     ev.User,
			Parent:   ev.Parent,
			JoinedAt: unix(ev.Time),
		})
	case *events.ClaimInviteProfitEvent:
		err = r.store.SaveClaim(ctx, &models.Claim{
			User:      ev.User,
			Amount:    ev.Amount,
			ClaimedAt: unix(ev.Time),
		})
	case *events.SetParamsEvent:
		err = r.store.SaveParamsChange(ctx, &models.ParamsChange{
			FeeRecipient:                ev.FeeRecipient,
			WithdrawAuthority:           ev.WithdrawAuthority,
			InitialVirtualTokenReserves: ev.InitialVirtualTokenReserves,
			InitialVirtualSolReserves:   ev.InitialVirtualSolReserves,
			InitialRealTokenReserves:    ev.InitialRealTokenReserves,
			InitialTokenSupply:          ev.InitialTokenSupply,
			FeeBasisPoints:              ev.FeeBasisPoints,
			CreatorFeeBasisPoints:       ev.CreatorFeeBasisPoints,
			InviteFeeBasisPoints:        ev.InviteFeeBasisPoints,
			ChangedAt:                   ev.Timestamp().UTC(),
		})
	default:
		r.logger.Debug("Skipping unrecorded event", zap.String("type", string(event.Type())))
		return nil
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", event.Type(), err)
	}
	return nil
}

// TradeFromEvent converts a settlement record into its stored row.
func TradeFromEvent(ev *events.TradeEvent) *models.Trade {
	return &models.Trade{
		Mint:                 ev.Mint,
		User:                 ev.User,
		IsBuy:                ev.IsBuy,
		SolAmount:            ev.SolAmount,
		TokenAmount:          ev.TokenAmount,
		Fee:                  ev.Fee,
		VirtualSolReserves:   ev.VirtualSolReserves,
		VirtualTokenReserves: ev.VirtualTokenReserves,
		RealSolReserves:      ev.RealSolReserves,
		RealTokenReserves:    ev.RealTokenReserves,
		Hash:                 ev.Hash,
		BlockTime:            unix(ev.Time),
	}
}

func unix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
