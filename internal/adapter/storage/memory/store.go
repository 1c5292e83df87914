// Package memory is a process-local storage backend. Row locks taken through
// the ...ForUpdate reads are held until the owning Tx commits or rolls back,
// and writes staged on a Tx become visible only at commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errTxDone = errors.New("memory: transaction already closed")

type ownerKey struct {
	org, customer uuid.UUID
}

type refKey struct {
	wallet       uuid.UUID
	refType, ref string
}

type codeKey struct {
	org  uuid.UUID
	code string
}

// Store holds every table of the memory backend.
type Store struct {
	mu        sync.RWMutex
	wallets   map[uuid.UUID]domain.Wallet
	owners    map[ownerKey]uuid.UUID
	txns      []domain.Transaction
	txnByID   map[uuid.UUID]int
	refs      map[refKey]int
	certs     map[uuid.UUID]domain.GiftCertificate
	certCodes map[codeKey]uuid.UUID
	audit     []domain.AuditLog
	seq       int64

	locksMu     sync.Mutex
	locks       map[string]chan struct{}
	lockTimeout time.Duration
}

// New creates an empty store. A positive lockTimeout bounds row-lock waits;
// a wait that runs out fails with ports.ErrConflict.
func New(lockTimeout time.Duration) *Store {
	return &Store{
		wallets:     make(map[uuid.UUID]domain.Wallet),
		owners:      make(map[ownerKey]uuid.UUID),
		txnByID:     make(map[uuid.UUID]int),
		refs:        make(map[refKey]int),
		certs:       make(map[uuid.UUID]domain.GiftCertificate),
		certCodes:   make(map[codeKey]uuid.UUID),
		locks:       make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:   s,
		wallets: make(map[uuid.UUID]domain.Wallet),
		certs:   make(map[uuid.UUID]domain.GiftCertificate),
	}, nil
}

func (s *Store) rowLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[key] = l
	}
	return l
}

// Tx is the memory backend's transaction. Only Commit and Rollback are
// implemented; the embedded pgx.Tx is nil and the memory repositories never
// call through it.
type Tx struct {
	pgx.Tx

	store *Store
	held  []chan struct{}
	keys  map[string]bool
	done  bool

	wallets map[uuid.UUID]domain.Wallet
	txns    []domain.Transaction
	certs   map[uuid.UUID]domain.GiftCertificate
}

// lock takes the row lock named key, waiting at most the store lock timeout.
func (tx *Tx) lock(ctx context.Context, key string) error {
	if tx.done {
		return errTxDone
	}
	if tx.keys[key] {
		return nil
	}
	l := tx.store.rowLock(key)

	var timeout <-chan time.Time
	if tx.store.lockTimeout > 0 {
		timer := time.NewTimer(tx.store.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("%w: lock timeout on %s", ports.ErrConflict, key)
	}

	if tx.keys == nil {
		tx.keys = make(map[string]bool)
	}
	tx.keys[key] = true
	tx.held = append(tx.held, l)
	return nil
}

func (tx *Tx) release() {
	for _, l := range tx.held {
		<-l
	}
	tx.held = nil
	tx.keys = nil
	tx.done = true
}

// Commit publishes the staged writes atomically and releases every row lock.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}
	defer tx.release()

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tx.txns {
		if t.HasReference() {
			if _, dup := s.refs[refKey{t.WalletID, *t.ReferenceType, *t.ReferenceID}]; dup {
				return fmt.Errorf("%w: reference %s/%s on wallet %s", ports.ErrDuplicate, *t.ReferenceType, *t.ReferenceID, t.WalletID)
			}
		}
	}

	for id, w := range tx.wallets {
		s.wallets[id] = w
	}
	for id, c := range tx.certs {
		s.certs[id] = c
	}
	for _, t := range tx.txns {
		s.txns = append(s.txns, t)
		idx := len(s.txns) - 1
		s.txnByID[t.ID] = idx
		if t.HasReference() {
			s.refs[refKey{t.WalletID, *t.ReferenceType, *t.ReferenceID}] = idx
		}
	}
	return nil
}

// Rollback discards the staged writes and releases every row lock.
// It is a no-op after Commit.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.release()
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory: unexpected transaction type %T", tx)
	}
	if mtx.done {
		return nil, errTxDone
	}
	return mtx, nil
}

func (s *Store) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}
