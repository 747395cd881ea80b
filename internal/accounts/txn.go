// internal/accounts/txn.go
package accounts

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

// Txn stages changes to the accounts it locked. Nothing is visible to other
// transactions until Commit; Rollback discards every staged change.
type Txn struct {
	db     *DB
	keys   []solana.PublicKey
	named  map[solana.PublicKey]struct{}
	mus    []*sync.Mutex
	staged map[solana.PublicKey]*Account
	done   bool
}

func (tx *Txn) check(key solana.PublicKey) error {
	if tx.done {
		return ErrTxnDone
	}
	if _, ok := tx.named[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotNamed, key)
	}
	return nil
}

// lookup returns the staged account of key, staging a copy of the committed one on first access.
func (tx *Txn) lookup(key solana.PublicKey) (*Account, bool) {
	if acc, ok := tx.staged[key]; ok {
		return acc, true
	}
	tx.db.mu.Lock()
	committed, ok := tx.db.records[key]
	tx.db.mu.Unlock()
	if !ok {
		return nil, false
	}
	acc := committed.Clone()
	tx.staged[key] = acc
	return acc, true
}

// Get returns the working copy of the account at key.
func (tx *Txn) Get(key solana.PublicKey) (*Account, error) {
	if err := tx.check(key); err != nil {
		return nil, err
	}
	acc, ok := tx.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", state.ErrRecordNotFound, key)
	}
	return acc, nil
}

// Exists reports whether key holds an account.
func (tx *Txn) Exists(key solana.PublicKey) (bool, error) {
	if err := tx.check(key); err != nil {
		return false, err
	}
	_, ok := tx.lookup(key)
	return ok, nil
}

// GetOrCreate returns the account at key, staging an empty one if absent.
func (tx *Txn) GetOrCreate(key solana.PublicKey) (*Account, error) {
	if err := tx.check(key); err != nil {
		return nil, err
	}
	if acc, ok := tx.lookup(key); ok {
		return acc, nil
	}
	acc := &Account{}
	tx.staged[key] = acc
	return acc, nil
}

// Create stages a new account at key.
func (tx *Txn) Create(key solana.PublicKey, acc *Account) error {
	if err := tx.check(key); err != nil {
		return err
	}
	if _, ok := tx.lookup(key); ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, key)
	}
	tx.staged[key] = acc
	return nil
}

// Transfer moves lamports between two named accounts.
func (tx *Txn) Transfer(from, to solana.PublicKey, lamports uint64) error {
	src, err := tx.Get(from)
	if err != nil {
		return err
	}
	dst, err := tx.GetOrCreate(to)
	if err != nil {
		return err
	}
	if lamports == 0 || from.Equals(to) {
		return nil
	}
	if src.Lamports < lamports {
		return fmt.Errorf("%w: %s holds %d, needs %d", state.ErrInsufficientSOL, from, src.Lamports, lamports)
	}
	if dst.Lamports+lamports < dst.Lamports {
		return fmt.Errorf("%w: lamports of %s", state.ErrArithmeticOverflow, to)
	}
	src.Lamports -= lamports
	dst.Lamports += lamports
	return nil
}

// Commit publishes every staged account and releases the locks.
func (tx *Txn) Commit() error {
	if tx.done {
		return ErrTxnDone
	}
	tx.db.mu.Lock()
	for k, acc := range tx.staged {
		tx.db.records[k] = acc
	}
	tx.db.mu.Unlock()

	tx.db.logger.Debug("Transaction committed",
		zap.Int("named", len(tx.keys)),
		zap.Int("written", len(tx.staged)))

	tx.release()
	return nil
}

// Rollback discards staged changes. It is a no-op after Commit.
func (tx *Txn) Rollback() {
	if tx.done {
		return
	}
	tx.staged = nil
	tx.release()
}

func (tx *Txn) release() {
	tx.done = true
	for i := len(tx.mus) - 1; i >= 0; i-- {
		tx.mus[i].Unlock()
	}
}

// Load returns the typed record at key from the working copy.
func Load[T state.Data](tx *Txn, key solana.PublicKey) (T, error) {
	var zero T
	acc, err := tx.Get(key)
	if err != nil {
		return zero, err
	}
	if acc.Data == nil {
		return zero, fmt.Errorf("%w: %s holds no record", state.ErrRecordNotFound, key)
	}
	data, ok := acc.Data.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrWrongType, key, acc.Data)
	}
	return data, nil
}

// LoadOrInit returns the typed record at key, storing init() if the account holds none.
func LoadOrInit[T state.Data](tx *Txn, key solana.PublicKey, init func() T) (T, error) {
	var zero T
	acc, err := tx.GetOrCreate(key)
	if err != nil {
		return zero, err
	}
	if acc.Data == nil {
		acc.Data = init()
	}
	data, ok := acc.Data.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrWrongType, key, acc.Data)
	}
	return data, nil
}
