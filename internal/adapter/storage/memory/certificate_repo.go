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

// CertificateRepo implements ports.CertificateRepository on a Store.
type CertificateRepo struct {
	s *Store
}

// NewCertificateRepo creates a new CertificateRepo.
func NewCertificateRepo(s *Store) *CertificateRepo {
	return &CertificateRepo{s: s}
}

func (r *CertificateRepo) Create(ctx context.Context, c *domain.GiftCertificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := codeKey{c.OrganizationID, domain.CertificateCodeKey(c.Code)}
	if _, exists := r.s.certCodes[key]; exists {
		return fmt.Errorf("insert certificate: %w: code %s", ports.ErrDuplicate, c.Code)
	}
	r.s.certs[c.ID] = *c
	r.s.certCodes[key] = c.ID
	return nil
}

func (r *CertificateRepo) GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*domain.GiftCertificate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.certCodes[codeKey{orgID, domain.CertificateCodeKey(code)}]
	if !ok {
		return nil, nil
	}
	c := r.s.certs[id]
	return &c, nil
}

// GetByCodeForUpdate locks the certificate row for the lifetime of tx.
func (r *CertificateRepo) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, code string) (*domain.GiftCertificate, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mtx.lock(ctx, "certificate:"+orgID.String()+":"+domain.CertificateCodeKey(code)); err != nil {
		return nil, fmt.Errorf("get certificate for update: %w", err)
	}
	c, err := r.GetByCode(ctx, orgID, code)
	if err != nil || c == nil {
		return c, err
	}
	if staged, ok := mtx.certs[c.ID]; ok {
		return &staged, nil
	}
	return c, nil
}

func (r *CertificateRepo) UpdateState(ctx context.Context, tx pgx.Tx, id uuid.UUID, currentBalance int64, status domain.CertificateStatus) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	c, ok := mtx.certs[id]
	if !ok {
		r.s.mu.RLock()
		c, ok = r.s.certs[id]
		r.s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("certificate not found: %s", id)
		}
	}
	c.CurrentBalance = currentBalance
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	mtx.certs[id] = c
	return nil
}
