package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, seq, wallet_id, organization_id, customer_id, type, amount, description,
		reference_type, reference_id, balance_before, balance_after, metadata, processed_by_staff_id, created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction and reads back
// its sequence number.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	meta, err := marshalMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}

	query := `INSERT INTO wallet_transactions (id, wallet_id, organization_id, customer_id, type, amount,
		description, reference_type, reference_id, balance_before, balance_after, metadata,
		processed_by_staff_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`

	err = tx.QueryRow(ctx, query,
		t.ID, t.WalletID, t.OrganizationID, t.CustomerID, t.Type, t.Amount,
		t.Description, t.ReferenceType, t.ReferenceID, t.BalanceBefore, t.BalanceAfter, meta,
		t.ProcessedByStaffID, t.CreatedAt,
	).Scan(&t.Seq)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", classify(err))
	}
	return nil
}

// GetByID fetches a ledger entry by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// GetByReference finds the entry written for an idempotency reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, referenceType, referenceID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 AND reference_type = $2 AND reference_id = $3`

	t, err := scanTransaction(tx.QueryRow(ctx, query, walletID, referenceType, referenceID))
	if err != nil {
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return t, nil
}

// ListByWallet returns one page of a wallet's ledger, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", classify(err))
	}

	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", classify(err))
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", classify(err))
	}
	return txns, total, nil
}

// GetActivity counts and sums an organization's entries created at or after since.
func (r *TransactionRepo) GetActivity(ctx context.Context, orgID uuid.UUID, since time.Time) (*ports.TransactionActivity, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM wallet_transactions WHERE organization_id = $1 AND created_at >= $2`

	activity := &ports.TransactionActivity{}
	if err := r.pool.QueryRow(ctx, query, orgID, since).Scan(&activity.Count, &activity.TotalAmount); err != nil {
		return nil, fmt.Errorf("get transaction activity: %w", classify(err))
	}
	return activity, nil
}

// scanTransaction returns nil, nil when the row does not exist.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var meta []byte
	err := row.Scan(
		&t.ID, &t.Seq, &t.WalletID, &t.OrganizationID, &t.CustomerID, &t.Type, &t.Amount, &t.Description,
		&t.ReferenceType, &t.ReferenceID, &t.BalanceBefore, &t.BalanceAfter, &meta, &t.ProcessedByStaffID,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return t, nil
}

// marshalMetadata maps an empty bag to SQL NULL.
func marshalMetadata(m domain.Metadata) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
