// =============================
// File: internal/launchpad/exchange/admin.go
// =============================
package exchange

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/accounts"
	"github.com/rovshanmuradov/curve-launchpad/internal/events"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/curve"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/fee"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
	"github.com/rovshanmuradov/curve-launchpad/internal/logger"
)

// AmmParams are the reserve seeds of newly created curves.
type AmmParams struct {
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	InitialTokenSupply          uint64
}

// Validate checks the seeds describe a tradable curve.
func (p AmmParams) Validate() error {
	switch {
	case p.InitialVirtualSolReserves == 0:
		return fmt.Errorf("%w: initial virtual sol reserves must be positive", state.ErrInvalidParams)
	case p.InitialRealTokenReserves == 0:
		return fmt.Errorf("%w: initial real token reserves must be positive", state.ErrInvalidParams)
	case p.InitialVirtualTokenReserves <= p.InitialRealTokenReserves:
		return fmt.Errorf("%w: virtual token reserves %d must exceed real %d",
			state.ErrInvalidParams, p.InitialVirtualTokenReserves, p.InitialRealTokenReserves)
	case p.InitialTokenSupply < p.InitialRealTokenReserves:
		return fmt.Errorf("%w: token supply %d below real token reserves %d",
			state.ErrInvalidParams, p.InitialTokenSupply, p.InitialRealTokenReserves)
	}
	return nil
}

// Params are the values Initialize writes into the global configuration.
type Params struct {
	AmmParams
	Fees                     fee.Schedule
	ProtocolTokenAllocPoints uint64
}

// DefaultParams returns the bootstrap configuration of the launchpad.
func DefaultParams() Params {
	return Params{
		AmmParams: AmmParams{
			InitialVirtualTokenReserves: 1_073_000_000_000_000,
			InitialVirtualSolReserves:   30_000_000_000,
			InitialRealTokenReserves:    793_100_000_000_000,
			InitialTokenSupply:          1_000_000_000_000_000,
		},
		Fees:                     fee.Schedule{Protocol: 50, Creator: 35, Invite: 15},
		ProtocolTokenAllocPoints: 50,
	}
}

// Validate checks p.
func (p Params) Validate() error {
	if err := p.AmmParams.Validate(); err != nil {
		return err
	}
	return p.Fees.Validate()
}

// FeeParams are the fee settings an authority may change.
type FeeParams struct {
	FeeRecipient      solana.PublicKey
	WithdrawAuthority solana.PublicKey
	Fees              fee.Schedule
}

// Initialize creates the global configuration and the fee escrow, owned by authority.
func (e *Exchange) Initialize(ctx context.Context, authority solana.PublicKey) (*state.Global, error) {
	const op = "initialize"
	if err := e.params.Validate(); err != nil {
		return nil, e.reject(op, err)
	}

	var global *state.Global
	err := e.db.Update([]solana.PublicKey{e.globalKey, e.escrowKey}, func(tx *accounts.Txn) error {
		g, err := accounts.LoadOrInit(tx, e.globalKey, func() *state.Global { return &state.Global{} })
		if err != nil {
			return err
		}
		if g.Initialized {
			return state.ErrAlreadyInitialized
		}
		*g = state.Global{
			Authority:                   authority,
			Initialized:                 true,
			FeeRecipient:                authority,
			InitialVirtualTokenReserves: e.params.InitialVirtualTokenReserves,
			InitialVirtualSolReserves:   e.params.InitialVirtualSolReserves,
			InitialRealTokenReserves:    e.params.InitialRealTokenReserves,
			InitialTokenSupply:          e.params.InitialTokenSupply,
			FeeBasisPoints:              e.params.Fees.Protocol,
			WithdrawAuthority:           authority,
			CreatorFeeBasisPoints:       e.params.Fees.Creator,
			ProtocolTokenAllocPoints:    e.params.ProtocolTokenAllocPoints,
			ProtocolTokenAllocRecipient: authority,
			InviteFeeBasisPoints:        e.params.Fees.Invite,
		}
		if _, err := accounts.LoadOrInit(tx, e.escrowKey, func() *state.FeeAccount { return &state.FeeAccount{} }); err != nil {
			return err
		}
		global = g.Clone().(*state.Global)
		return nil
	})
	if err != nil {
		return nil, e.reject(op, err, zap.String("authority", authority.String()))
	}

	e.logger.Info("Initialized global state",
		zap.String("authority", authority.String()),
		zap.String("global", e.globalKey.String()),
		zap.String("fee_account", e.escrowKey.String()))
	e.emit(ctx, e.paramsEvent(global))
	return global, nil
}

// updateGlobal runs fn on the global configuration on behalf of caller.
func (e *Exchange) updateGlobal(ctx context.Context, op string, caller solana.PublicKey, fn func(g *state.Global) error) (*state.Global, error) {
	var global *state.Global
	err := e.db.Update([]solana.PublicKey{e.globalKey}, func(tx *accounts.Txn) error {
		g, err := e.loadGlobal(tx)
		if err != nil {
			return err
		}
		if !g.Authority.Equals(caller) {
			return fmt.Errorf("%w: %s is not %s", state.ErrInvalidAuthority, caller, g.Authority)
		}
		if err := fn(g); err != nil {
			return err
		}
		global = g.Clone().(*state.Global)
		return nil
	})
	if err != nil {
		return nil, e.reject(op, err, zap.String("caller", caller.String()))
	}

	e.logger.Info("Global parameters updated", zap.String("op", op), zap.String("caller", caller.String()))
	e.emit(ctx, e.paramsEvent(global))
	return global, nil
}

// SetAmmParams replaces the reserve seeds used by curves created afterwards.
func (e *Exchange) SetAmmParams(ctx context.Context, caller solana.PublicKey, p AmmParams) (*state.Global, error) {
	return e.updateGlobal(ctx, "set_amm_params", caller, func(g *state.Global) error {
		if err := p.Validate(); err != nil {
			return err
		}
		g.InitialVirtualTokenReserves = p.InitialVirtualTokenReserves
		g.InitialVirtualSolReserves = p.InitialVirtualSolReserves
		g.InitialRealTokenReserves = p.InitialRealTokenReserves
		g.InitialTokenSupply = p.InitialTokenSupply
		return nil
	})
}

// SetFeeParams replaces the fee schedule, fee recipient and withdraw authority.
func (e *Exchange) SetFeeParams(ctx context.Context, caller solana.PublicKey, p FeeParams) (*state.Global, error) {
	return e.updateGlobal(ctx, "set_fee_params", caller, func(g *state.Global) error {
		if p.FeeRecipient.IsZero() {
			return state.ErrInvalidFeeRecipient
		}
		if p.WithdrawAuthority.IsZero() {
			return state.ErrInvalidWithdrawAuthority
		}
		if err := p.Fees.Validate(); err != nil {
			return err
		}
		g.FeeRecipient = p.FeeRecipient
		g.WithdrawAuthority = p.WithdrawAuthority
		g.FeeBasisPoints = p.Fees.Protocol
		g.CreatorFeeBasisPoints = p.Fees.Creator
		g.InviteFeeBasisPoints = p.Fees.Invite
		return nil
	})
}

// SetProtocolFeeAddress replaces the token allocation recipient and the fee recipient.
func (e *Exchange) SetProtocolFeeAddress(ctx context.Context, caller, allocRecipient, feeRecipient solana.PublicKey) (*state.Global, error) {
	return e.updateGlobal(ctx, "set_protocol_fee_address", caller, func(g *state.Global) error {
		if feeRecipient.IsZero() {
			return state.ErrInvalidFeeRecipient
		}
		if allocRecipient.IsZero() {
			return fmt.Errorf("%w: token allocation recipient", state.ErrInvalidParams)
		}
		g.ProtocolTokenAllocRecipient = allocRecipient
		g.FeeRecipient = feeRecipient
		return nil
	})
}

func (e *Exchange) paramsEvent(g *state.Global) *events.SetParamsEvent {
	return &events.SetParamsEvent{
		BaseEvent:                   events.NewBase(events.ParamsUpdated, e.now()),
		FeeRecipient:                g.FeeRecipient.String(),
		WithdrawAuthority:           g.WithdrawAuthority.String(),
		InitialVirtualTokenReserves: g.InitialVirtualTokenReserves,
		InitialVirtualSolReserves:   g.InitialVirtualSolReserves,
		InitialRealTokenReserves:    g.InitialRealTokenReserves,
		InitialTokenSupply:          g.InitialTokenSupply,
		FeeBasisPoints:              g.FeeBasisPoints,
		CreatorFeeBasisPoints:       g.CreatorFeeBasisPoints,
		InviteFeeBasisPoints:        g.InviteFeeBasisPoints,
	}
}

// CreateParams describe a token launch.
type CreateParams struct {
	Creator solana.PublicKey
	Mint    solana.PublicKey
	Name    string
	Symbol  string
	URI     string
}

// CreateCurve launches a bonding curve for p.Mint and deposits the initial
// supply into the curve's holding.
func (e *Exchange) CreateCurve(ctx context.Context, p CreateParams) (*state.BondingCurve, error) {
	const op = "create"
	if p.Mint.IsZero() || p.Creator.IsZero() {
		return nil, e.reject(op, fmt.Errorf("%w: creator and mint are required", state.ErrInvalidParams))
	}
	curveKey, err := e.addrs.BondingCurve(p.Mint)
	if err != nil {
		return nil, e.reject(op, err)
	}
	holdingKey, err := e.addrs.CurveHolding(p.Mint, curveKey)
	if err != nil {
		return nil, e.reject(op, err)
	}

	var created *state.BondingCurve
	err = e.db.Update([]solana.PublicKey{e.globalKey, curveKey, holdingKey}, func(tx *accounts.Txn) error {
		g, err := e.loadGlobal(tx)
		if err != nil {
			return err
		}
		exists, err := tx.Exists(curveKey)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", state.ErrBondingCurveExists, p.Mint)
		}

		bc := &state.BondingCurve{Creator: p.Creator, Mint: p.Mint}
		curve.Seed(bc, g, e.now())
		if err := tx.Create(curveKey, &accounts.Account{Data: bc}); err != nil {
			return err
		}
		holding := &state.TokenAccount{Mint: p.Mint, Owner: curveKey, Amount: g.InitialTokenSupply}
		if err := tx.Create(holdingKey, &accounts.Account{Data: holding}); err != nil {
			return fmt.Errorf("%w: holding %s", state.ErrBondingCurveExists, holdingKey)
		}
		created = bc.Clone().(*state.BondingCurve)
		return nil
	})
	if err != nil {
		return nil, e.reject(op, err, logger.Mint(p.Mint), zap.String("creator", p.Creator.String()))
	}

	e.logger.Info("createlog",
		logger.Mint(p.Mint),
		zap.String("bonding_curve", curveKey.String()),
		zap.String("creator", p.Creator.String()),
		zap.Uint64("token_supply", created.TokenTotalSupply))
	e.emit(ctx, &events.CreateEvent{
		BaseEvent:    events.NewBase(events.CurveCreated, e.now()),
		Name:         p.Name,
		Symbol:       p.Symbol,
		URI:          p.URI,
		Mint:         p.Mint.String(),
		BondingCurve: curveKey.String(),
		Creator:      p.Creator.String(),
		CreatedTime:  created.CreateTime,
		TokenSupply:  created.TokenTotalSupply,
	})
	return created, nil
}
