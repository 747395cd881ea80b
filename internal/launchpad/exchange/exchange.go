// =============================
// File: internal/launchpad/exchange/exchange.go
// =============================
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/events"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/curve"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// Recorder receives settlement metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordTrade(side string, duration time.Duration)
	RecordFees(total, protocol, creator, invite uint64)
	RecordClaim(amount uint64)
	SetEscrowOutstanding(lamports uint64)
	RecordCompletion()
	RecordRejection(op, kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTrade(string, time.Duration)          {}
func (nopRecorder) RecordFees(uint64, uint64, uint64, uint64) {}
func (nopRecorder) RecordClaim(uint64)                        {}
func (nopRecorder) SetEscrowOutstanding(uint64)               {}
func (nopRecorder) RecordCompletion()                         {}
func (nopRecorder) RecordRejection(string, string)            {}

// Exchange executes launchpad requests against an account database.
// Each request names every record it touches and commits all-or-nothing.
type Exchange struct {
	db      *accounts.DB
	addrs   state.Addresses
	bus     events.Publisher
	logger  *zap.Logger
	metrics Recorder
	policy  curve.Policy
	params  Params
	now     func() time.Time

	staleRetries uint

	globalKey solana.PublicKey
	escrowKey solana.PublicKey
}

// Option configures an Exchange.
type Option func(*Exchange)

// WithPublisher sets the bus that receives produced records.
func WithPublisher(p events.Publisher) Option {
	return func(e *Exchange) { e.bus = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(e *Exchange) { e.metrics = r }
}

// WithPolicy sets the trade policy for finished curves.
func WithPolicy(p curve.Policy) Option {
	return func(e *Exchange) { e.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Exchange) { e.now = now }
}

// WithProgramID derives record addresses under programID.
func WithProgramID(programID solana.PublicKey) Option {
	return func(e *Exchange) { e.addrs = state.NewAddresses(programID) }
}

// WithParams sets the values Initialize writes into the global configuration.
func WithParams(p Params) Option {
	return func(e *Exchange) { e.params = p }
}

// WithStaleRetries sets how many times a request is re-prepared when its
// dependent accounts change between preparation and execution.
func WithStaleRetries(n uint) Option {
	return func(e *Exchange) { e.staleRetries = n }
}

// New creates an exchange over db.
func New(db *accounts.DB, logger *zap.Logger, opts ...Option) (*Exchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Exchange{
		db:           db,
		addrs:        state.NewAddresses(state.ProgramID),
		logger:       logger.Named("exchange"),
		metrics:      nopRecorder{},
		params:       DefaultParams(),
		now:          time.Now,
		staleRetries: 3,
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.globalKey, err = e.addrs.Global(); err != nil {
		return nil, err
	}
	if e.escrowKey, err = e.addrs.FeeAccount(); err != nil {
		return nil, err
	}
	return e, nil
}

// Addresses returns the record address deriver.
func (e *Exchange) Addresses() state.Addresses {
	return e.addrs
}

// GlobalKey is the address of the global configuration record.
func (e *Exchange) GlobalKey() solana.PublicKey {
	return e.globalKey
}

// EscrowKey is the address of the fee escrow.
func (e *Exchange) EscrowKey() solana.PublicKey {
	return e.escrowKey
}

// txnNodes provisions referral nodes inside a transaction.
type txnNodes struct {
	tx    *accounts.Txn
	addrs state.Addresses
}

func (n txnNodes) Node(owner solana.PublicKey) (*state.UserInviteStats, error) {
	key, err := n.addrs.InviteStats(owner)
	if err != nil {
		return nil, err
	}
	return accounts.LoadOrInit(n.tx, key, func() *state.UserInviteStats {
		return &state.UserInviteStats{}
	})
}

func (e *Exchange) nodes(tx *accounts.Txn) txnNodes {
	return txnNodes{tx: tx, addrs: e.addrs}
}

// loadGlobal returns the initialized global configuration.
func (e *Exchange) loadGlobal(tx *accounts.Txn) (*state.Global, error) {
	g, err := accounts.Load[*state.Global](tx, e.globalKey)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, state.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	if !g.Initialized {
		return nil, state.ErrNotInitialized
	}
	return g, nil
}

func (e *Exchange) snapshotGlobal() (*state.Global, error) {
	g, err := accounts.SnapshotData[*state.Global](e.db, e.globalKey)
	if errors.Is(err, state.ErrRecordNotFound) {
		return nil, state.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	if !g.Initialized {
		return nil, state.ErrNotInitialized
	}
	return g, nil
}

// retryStale re-runs op while it fails with ErrStaleAccounts.
func (e *Exchange) retryStale(ctx context.Context, name string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Millisecond
	policy.MaxInterval = 20 * time.Millisecond

	notify := func(err error, d time.Duration) {
		e.logger.Debug("Accounts changed, preparing request again",
			zap.String("op", name), zap.Error(err), zap.Duration("backoff", d))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && !errors.Is(err, state.ErrStaleAccounts) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(e.staleRetries+1),
		backoff.WithNotify(notify))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
	}
	return err
}

func stale(what string, want, got solana.PublicKey) error {
	return fmt.Errorf("%w: %s is %s, prepared for %s", state.ErrStaleAccounts, what, got, want)
}

// reject logs and counts a failed request, passing err through.
func (e *Exchange) reject(op string, err error, fields ...zap.Field) error {
	kind := state.KindOf(err)
	e.metrics.RecordRejection(op, kind.String())

	fields = append(fields, zap.String("op", op), zap.String("kind", kind.String()), zap.Error(err))
	switch kind {
	case state.KindInvariant, state.KindArithmetic, state.KindUnknown:
		e.logger.Error("Request aborted", fields...)
	default:
		e.logger.Debug("Request rejected", fields...)
	}
	return err
}

// emit publishes committed records. Delivery failures are logged: the
// request has already committed, so cancelling ctx must not drop its records.
func (e *Exchange) emit(ctx context.Context, evs ...events.Event) {
	if e.bus == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, ev := range evs {
		if err := e.bus.Publish(ctx, ev); err != nil {
			e.logger.Warn("Failed to deliver record",
				zap.String("event_type", string(ev.Type())), zap.Error(err))
		}
	}
}

func (e *Exchange) stamp() (time.Time, int64) {
	now := e.now()
	return now, now.Unix()
}
