package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository on a Store.
type WalletRepo struct {
	s *Store
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{s: s}
}

func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := ownerKey{w.OrganizationID, w.CustomerID}
	if _, exists := r.s.owners[key]; exists {
		return false, nil
	}
	if _, exists := r.s.wallets[w.ID]; exists {
		return false, fmt.Errorf("%w: wallet id %s", ports.ErrDuplicate, w.ID)
	}
	r.s.wallets[w.ID] = *w
	r.s.owners[key] = w.ID
	return true, nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetByOwner(ctx context.Context, orgID, customerID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.owners[ownerKey{orgID, customerID}]
	if !ok {
		return nil, nil
	}
	w := r.s.wallets[id]
	return &w, nil
}

// GetByIDForUpdate locks the wallet row for the lifetime of tx.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mtx.lock(ctx, "wallet:"+id.String()); err != nil {
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	if w, ok := mtx.wallets[id]; ok {
		return &w, nil
	}
	return r.GetByID(ctx, id)
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	return r.stage(tx, walletID, func(w *domain.Wallet) { w.Balance = balance })
}

func (r *WalletRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus) error {
	return r.stage(tx, walletID, func(w *domain.Wallet) { w.Status = status })
}

func (r *WalletRepo) stage(tx pgx.Tx, walletID uuid.UUID, mutate func(w *domain.Wallet)) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	w, ok := mtx.wallets[walletID]
	if !ok {
		r.s.mu.RLock()
		w, ok = r.s.wallets[walletID]
		r.s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("wallet not found: %s", walletID)
		}
	}
	mutate(&w)
	w.UpdatedAt = time.Now().UTC()
	mtx.wallets[walletID] = w
	return nil
}

func (r *WalletRepo) List(ctx context.Context, params ports.WalletListParams) ([]domain.Wallet, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Wallet
	for _, w := range r.s.wallets {
		if w.OrganizationID != params.OrganizationID {
			continue
		}
		if params.Status != nil && w.Status != *params.Status {
			continue
		}
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return paginate(result, params.Limit, params.Offset), int64(len(result)), nil
}

func (r *WalletRepo) GetStats(ctx context.Context, orgID uuid.UUID) (*ports.WalletStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &ports.WalletStats{}
	for _, w := range r.s.wallets {
		if w.OrganizationID != orgID {
			continue
		}
		stats.TotalWallets++
		if w.IsActive() {
			stats.ActiveWallets++
		}
		stats.TotalBalance += w.Balance
	}
	return stats, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
