// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/curve-launchpad/internal/storage/models"
)

// ErrNotFound возвращается, когда запись отсутствует
var ErrNotFound = errors.New("record not found")

// TradeFilter выбирает записи сделок. Нулевые поля не фильтруют.
type TradeFilter struct {
	Mint   string
	User   string
	Action string // models.ActionBuy или models.ActionSell
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// Match сообщает, проходит ли t фильтр, без учета Limit и Offset.
func (f TradeFilter) Match(t *models.Trade) bool {
	switch {
	case f.Mint != "" && t.Mint != f.Mint:
		return false
	case f.User != "" && t.User != f.User:
		return false
	case f.Action != "" && t.Action() != f.Action:
		return false
	case !f.Since.IsZero() && t.BlockTime.Before(f.Since):
		return false
	case !f.Until.IsZero() && t.BlockTime.After(f.Until):
		return false
	}
	return true
}

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Сделки
	SaveTrade(ctx context.Context, trade *models.Trade) error
	ListTrades(ctx context.Context, filter TradeFilter) ([]*models.Trade, error)

	// Кривые
	SaveCurve(ctx context.Context, curve *models.Curve) error
	GetCurve(ctx context.Context, mint string) (*models.Curve, error)
	MarkCurveComplete(ctx context.Context, mint, user string, at time.Time) error

	// Реферальная система
	SaveInvite(ctx context.Context, invite *models.Invite) error
	SaveClaim(ctx context.Context, claim *models.Claim) error
	ListClaims(ctx context.Context, user string, limit, offset int) ([]*models.Claim, error)

	// Администрирование
	SaveParamsChange(ctx context.Context, change *models.ParamsChange) error

	RunMigrations() error
	Close() error
}
