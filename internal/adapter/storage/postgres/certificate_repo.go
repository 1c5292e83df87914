package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const certificateColumns = `id, organization_id, code, original_amount, current_balance, status,
		valid_from, valid_until, recipient_email, recipient_phone, issued_at, updated_at`

// CertificateRepo implements ports.CertificateRepository.
type CertificateRepo struct {
	pool Pool
}

// NewCertificateRepo creates a new CertificateRepo.
func NewCertificateRepo(pool Pool) *CertificateRepo {
	return &CertificateRepo{pool: pool}
}

// Create inserts a newly issued certificate. A duplicate code within the
// organization surfaces as ports.ErrDuplicate.
func (r *CertificateRepo) Create(ctx context.Context, c *domain.GiftCertificate) error {
	query := `INSERT INTO gift_certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.OrganizationID, c.Code, c.OriginalAmount, c.CurrentBalance, c.Status,
		c.ValidFrom, c.ValidUntil, c.RecipientEmail, c.RecipientPhone, c.IssuedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", classify(err))
	}
	return nil
}

// GetByCode fetches a certificate by organization and code (non-locking read).
// Codes match on domain.CertificateCodeKey, which the code_key column stores.
func (r *CertificateRepo) GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*domain.GiftCertificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM gift_certificates WHERE organization_id = $1 AND code_key = $2`

	c, err := scanCertificate(r.pool.QueryRow(ctx, query, orgID, domain.CertificateCodeKey(code)))
	if err != nil {
		return nil, fmt.Errorf("get certificate by code: %w", err)
	}
	return c, nil
}

// GetByCodeForUpdate fetches a certificate with pessimistic locking.
// This MUST be called within a transaction.
func (r *CertificateRepo) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, code string) (*domain.GiftCertificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM gift_certificates
		WHERE organization_id = $1 AND code_key = $2 FOR UPDATE`

	c, err := scanCertificate(tx.QueryRow(ctx, query, orgID, domain.CertificateCodeKey(code)))
	if err != nil {
		return nil, fmt.Errorf("get certificate for update: %w", err)
	}
	return c, nil
}

// UpdateState stores the remaining balance and status within a transaction.
func (r *CertificateRepo) UpdateState(ctx context.Context, tx pgx.Tx, id uuid.UUID, currentBalance int64, status domain.CertificateStatus) error {
	query := `UPDATE gift_certificates SET current_balance = $1, status = $2, updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, currentBalance, status, id)
	if err != nil {
		return fmt.Errorf("update certificate state: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("certificate not found: %s", id)
	}
	return nil
}

func scanCertificate(row pgx.Row) (*domain.GiftCertificate, error) {
	c := &domain.GiftCertificate{}
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.Code, &c.OriginalAmount, &c.CurrentBalance, &c.Status,
		&c.ValidFrom, &c.ValidUntil, &c.RecipientEmail, &c.RecipientPhone, &c.IssuedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return c, nil
}
