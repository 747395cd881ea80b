// =================================
// File: internal/accounts/db.go
// =================================
package accounts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/state"
)

var (
	// ErrNotNamed is returned when a transaction touches an account it did not lock.
	ErrNotNamed = errors.New("account not named by the transaction")
	// ErrTxnDone is returned on use of a committed or rolled back transaction.
	ErrTxnDone = errors.New("transaction already finished")
	// ErrAccountExists is returned by Create for an address that already holds an account.
	ErrAccountExists = errors.New("account already exists")
	// ErrWrongType is returned when an account holds data of another type.
	ErrWrongType = errors.New("account holds data of another type")
)

// Account is a lamport balance with an optional typed record.
type Account struct {
	Lamports uint64
	Data     state.Data
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := &Account{Lamports: a.Lamports}
	if a.Data != nil {
		c.Data = a.Data.Clone()
	}
	return c
}

// DB is an in-memory account store with one lock per address.
// Transactions lock exactly the addresses they name, so requests over
// disjoint addresses run in parallel and overlapping ones serialise.
type DB struct {
	mu      sync.Mutex
	locks   map[solana.PublicKey]*sync.Mutex
	records map[solana.PublicKey]*Account
	logger  *zap.Logger
}

// NewDB creates an empty account store.
func NewDB(logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		locks:   make(map[solana.PublicKey]*sync.Mutex),
		records: make(map[solana.PublicKey]*Account),
		logger:  logger.Named("accounts"),
	}
}

// lockFor returns the record lock of key, creating it on first use. Caller holds db.mu.
func (db *DB) lockFor(key solana.PublicKey) *sync.Mutex {
	l, ok := db.locks[key]
	if !ok {
		l = &sync.Mutex{}
		db.locks[key] = l
	}
	return l
}

// Begin locks keys and starts a transaction over them. Locks are taken in
// byte order of the address, so concurrent transactions cannot deadlock.
func (db *DB) Begin(keys ...solana.PublicKey) *Txn {
	uniq := make(map[solana.PublicKey]struct{}, len(keys))
	sorted := make([]solana.PublicKey, 0, len(keys))
	for _, k := range keys {
		if _, dup := uniq[k]; dup {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	db.mu.Lock()
	mus := make([]*sync.Mutex, len(sorted))
	for i, k := range sorted {
		mus[i] = db.lockFor(k)
	}
	db.mu.Unlock()

	for _, m := range mus {
		m.Lock()
	}

	return &Txn{
		db:     db,
		keys:   sorted,
		named:  uniq,
		mus:    mus,
		staged: make(map[solana.PublicKey]*Account, len(sorted)),
	}
}

// Update runs fn in a transaction over keys and commits only if fn returns nil.
func (db *DB) Update(keys []solana.PublicKey, fn func(tx *Txn) error) error {
	tx := db.Begin(keys...)
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Snapshot returns a copy of the committed account at key.
func (db *DB) Snapshot(key solana.PublicKey) (*Account, bool) {
	db.mu.Lock()
	l := db.lockFor(key)
	db.mu.Unlock()

	l.Lock()
	defer l.Unlock()

	db.mu.Lock()
	acc, ok := db.records[key]
	db.mu.Unlock()
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// SnapshotData returns a copy of the typed record at key.
func SnapshotData[T state.Data](db *DB, key solana.PublicKey) (T, error) {
	var zero T
	acc, ok := db.Snapshot(key)
	if !ok || acc.Data == nil {
		return zero, fmt.Errorf("%w: %s", state.ErrRecordNotFound, key)
	}
	data, ok := acc.Data.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrWrongType, key, acc.Data)
	}
	return data, nil
}

// Airdrop credits lamports to key, creating a plain account if needed.
func (db *DB) Airdrop(key solana.PublicKey, lamports uint64) error {
	return db.Update([]solana.PublicKey{key}, func(tx *Txn) error {
		acc, err := tx.GetOrCreate(key)
		if err != nil {
			return err
		}
		if acc.Lamports+lamports < acc.Lamports {
			return fmt.Errorf("%w: airdrop to %s", state.ErrArithmeticOverflow, key)
		}
		acc.Lamports += lamports
		return nil
	})
}

// Len returns the number of stored accounts.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.records)
}
