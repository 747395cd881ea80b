// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rovshanmuradov/curve-launchpad/internal/storage"
	"github.com/rovshanmuradov/curve-launchpad/internal/storage/models"
)

// Store keeps records in process memory. Used by the simulator and in tests.
type Store struct {
	mu      sync.RWMutex
	nextID  uint
	trades  []*models.Trade
	curves  map[string]*models.Curve
	invites map[string]*models.Invite
	claims  []*models.Claim
	changes []*models.ParamsChange
	now     func() time.Time
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{
		curves:  make(map[string]*models.Curve),
		invites: make(map[string]*models.Invite),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) stamp(m *models.BaseModel) {
	s.nextID++
	now := s.now()
	m.ID = s.nextID
	m.CreatedAt = now
	m.UpdatedAt = now
}

func (s *Store) SaveTrade(_ context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *trade
	s.stamp(&cp.BaseModel)
	trade.BaseModel = cp.BaseModel
	s.trades = append(s.trades, &cp)
	return nil
}

func (s *Store) ListTrades(_ context.Context, filter storage.TradeFilter) ([]*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Trade
	for _, t := range s.trades {
		if filter.Match(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BlockTime.Equal(out[j].BlockTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].BlockTime.Before(out[j].BlockTime)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *Store) SaveCurve(_ context.Context, curve *models.Curve) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.curves[curve.Mint]; ok {
		return fmt.Errorf("curve for mint %s already stored", curve.Mint)
	}
	cp := *curve
	s.stamp(&cp.BaseModel)
	curve.BaseModel = cp.BaseModel
	s.curves[cp.Mint] = &cp
	return nil
}

func (s *Store) GetCurve(_ context.Context, mint string) (*models.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.curves[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) MarkCurveComplete(_ context.Context, mint, user string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.curves[mint]
	if !ok {
		return storage.ErrNotFound
	}
	c.Complete = true
	c.CompletedBy = user
	c.CompletedAt = &at
	c.UpdatedAt = s.now()
	return nil
}

func (s *Store) SaveInvite(_ context.Context, invite *models.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[invite.User]; ok {
		return fmt.Errorf("invite of %s already stored", invite.User)
	}
	cp := *invite
	s.stamp(&cp.BaseModel)
	invite.BaseModel = cp.BaseModel
	s.invites[cp.User] = &cp
	return nil
}

func (s *Store) SaveClaim(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *claim
	s.stamp(&cp.BaseModel)
	claim.BaseModel = cp.BaseModel
	s.claims = append(s.claims, &cp)
	return nil
}

// ListClaims returns the newest claims of user first.
func (s *Store) ListClaims(_ context.Context, user string, limit, offset int) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Claim
	for i := len(s.claims) - 1; i >= 0; i-- {
		if s.claims[i].User == user {
			cp := *s.claims[i]
			out = append(out, &cp)
		}
	}
	return page(out, limit, offset), nil
}

func (s *Store) SaveParamsChange(_ context.Context, change *models.ParamsChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *change
	s.stamp(&cp.BaseModel)
	change.BaseModel = cp.BaseModel
	s.changes = append(s.changes, &cp)
	return nil
}

// ParamsChanges returns every stored change in order.
func (s *Store) ParamsChanges() []*models.ParamsChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ParamsChange, len(s.changes))
	for i, c := range s.changes {
		cp := *c
		out[i] = &cp
	}
	return out
}

func (s *Store) RunMigrations() error { return nil }

func (s *Store) Close() error { return nil }

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
