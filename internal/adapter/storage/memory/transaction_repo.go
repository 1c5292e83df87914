package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository on a Store.
type TransactionRepo struct {
	s *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{s: s}
}

// Create stages t on tx and assigns its sequence number.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if t.HasReference() {
		key := refKey{t.WalletID, *t.ReferenceType, *t.ReferenceID}
		r.s.mu.RLock()
		_, dup := r.s.refs[key]
		r.s.mu.RUnlock()
		if dup || stagedReference(mtx, key) != nil {
			return fmt.Errorf("insert transaction: %w: reference %s/%s", ports.ErrDuplicate, key.refType, key.ref)
		}
	}
	t.Seq = r.s.nextSeq()
	mtx.txns = append(mtx.txns, *t)
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	idx, ok := r.s.txnByID[id]
	if !ok {
		return nil, nil
	}
	t := r.s.txns[idx]
	return &t, nil
}

func (r *TransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, referenceType, referenceID string) (*domain.Transaction, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	key := refKey{walletID, referenceType, referenceID}
	if t := stagedReference(mtx, key); t != nil {
		return t, nil
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	idx, ok := r.s.refs[key]
	if !ok {
		return nil, nil
	}
	t := r.s.txns[idx]
	return &t, nil
}

func stagedReference(mtx *Tx, key refKey) *domain.Transaction {
	for i := range mtx.txns {
		t := mtx.txns[i]
		if t.HasReference() && t.WalletID == key.wallet && *t.ReferenceType == key.refType && *t.ReferenceID == key.ref {
			return &t
		}
	}
	return nil
}

// ListByWallet returns one page of a wallet's ledger, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Transaction
	for i := len(r.s.txns) - 1; i >= 0; i-- {
		if r.s.txns[i].WalletID == walletID {
			result = append(result, r.s.txns[i])
		}
	}
	return paginate(result, limit, offset), int64(len(result)), nil
}

func (r *TransactionRepo) GetActivity(ctx context.Context, orgID uuid.UUID, since time.Time) (*ports.TransactionActivity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	activity := &ports.TransactionActivity{}
	for _, t := range r.s.txns {
		if t.OrganizationID != orgID || t.CreatedAt.Before(since) {
			continue
		}
		activity.Count++
		activity.TotalAmount += t.Amount
	}
	return activity, nil
}
