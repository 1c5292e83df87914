package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Create inserts w unless a wallet already exists for its
	// (organization, customer) pair. created is false when the row existed.
	Create(ctx context.Context, w *domain.Wallet) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, orgID, customerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus) error
	// Reporting queries
	List(ctx context.Context, params WalletListParams) ([]domain.Wallet, int64, error)
	GetStats(ctx context.Context, orgID uuid.UUID) (*WalletStats, error)
}

// WalletListParams holds filter + pagination for listing organization wallets.
type WalletListParams struct {
	OrganizationID uuid.UUID
	Status         *domain.WalletStatus
	Limit          int
	Offset         int
}

// WalletStats aggregates wallet rows of one organization.
type WalletStats struct {
	TotalWallets  int64
	ActiveWallets int64
	TotalBalance  int64
}

// TransactionRepository defines persistence operations for ledger entries.
// Entries are append-only: no update or delete exists.
type TransactionRepository interface {
	// Create inserts t and fills t.Seq.
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// GetByReference finds the entry previously written for the idempotency
	// reference on walletID. Must be called while holding the wallet lock.
	GetByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, referenceType, referenceID string) (*domain.Transaction, error)
	// ListByWallet returns entries newest first together with the total count.
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error)
	GetActivity(ctx context.Context, orgID uuid.UUID, since time.Time) (*TransactionActivity, error)
}

// TransactionActivity aggregates ledger entries of one organization since a point in time.
type TransactionActivity struct {
	Count       int64
	TotalAmount int64
}

// CertificateRepository defines persistence operations for gift certificates.
type CertificateRepository interface {
	Create(ctx context.Context, c *domain.GiftCertificate) error
	GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*domain.GiftCertificate, error)
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, code string) (*domain.GiftCertificate, error)
	UpdateState(ctx context.Context, tx pgx.Tx, id uuid.UUID, currentBalance int64, status domain.CertificateStatus) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
