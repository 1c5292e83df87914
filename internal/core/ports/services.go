package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// Role is the caller role carried in an access token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(claims TokenClaims) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims. SubjectID is the customer id for
// customer tokens and the staff member id for staff tokens.
type TokenClaims struct {
	SubjectID      uuid.UUID
	OrganizationID uuid.UUID
	Role           Role
}

// IdempotencyCache is the Redis-layer replay cache (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher delivers committed wallet changes to subscribers.
// Delivery is best-effort and never affects the outcome of an operation.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.WalletEvent) error
}

// MetricsRecorder receives ledger outcome observations.
type MetricsRecorder interface {
	ObserveTransaction(txType domain.TransactionType, outcome string, amount int64)
	ObserveRedemption(outcome string)
	ObserveRetry(operation string)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// LedgerService is the Transaction Processor: the only writer of wallet balance.
type LedgerService interface {
	ApplyTransaction(ctx context.Context, req ApplyTransactionRequest) (*domain.Transaction, error)
}

// ApplyTransactionRequest holds validated input for one ledger entry.
// A non-nil OrganizationID scopes the wallet lookup to that organization.
type ApplyTransactionRequest struct {
	WalletID       uuid.UUID
	OrganizationID *uuid.UUID
	Type           domain.TransactionType
	Amount         int64
	Description    string
	ReferenceType  *string
	ReferenceID    *string
	Metadata       domain.Metadata
	StaffID        *uuid.UUID
}

// WalletService covers wallet resolution and the top-up / payment flows.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, orgID, customerID uuid.UUID) (*domain.Wallet, error)
	TopUp(ctx context.Context, req TopUpRequest) (*FlowResult, error)
	Pay(ctx context.Context, req PayRequest) (*FlowResult, error)
	SetStatus(ctx context.Context, req SetWalletStatusRequest) (*domain.Wallet, error)
}

// TopUpRequest holds validated input for a wallet top-up.
type TopUpRequest struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Amount         int64
	PaymentMethod  string
	ReferenceID    *string
	Metadata       domain.Metadata
	StaffID        *uuid.UUID
}

// PayRequest holds validated input for a wallet payment.
type PayRequest struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Amount         int64
	Description    string
	ReferenceType  *string
	ReferenceID    *string
	Metadata       domain.Metadata
	StaffID        *uuid.UUID
}

// SetWalletStatusRequest changes a wallet's status within an organization.
type SetWalletStatusRequest struct {
	OrganizationID uuid.UUID
	WalletID       uuid.UUID
	Status         domain.WalletStatus
	StaffID        uuid.UUID
}

// FlowResult is returned by the top-up, payment and redemption flows.
type FlowResult struct {
	Transaction *domain.Transaction
	NewBalance  int64
}

// RedemptionService is the Certificate Redemption Coordinator.
type RedemptionService interface {
	RedeemCertificate(ctx context.Context, req RedeemRequest) (*FlowResult, error)
}

// RedeemRequest identifies the certificate and the redeeming customer.
type RedeemRequest struct {
	OrganizationID uuid.UUID
	CustomerID     uuid.UUID
	Code           string
	StaffID        *uuid.UUID
}

// CertificateService manages gift certificates outside of redemption.
type CertificateService interface {
	Issue(ctx context.Context, req IssueCertificateRequest) (*domain.GiftCertificate, error)
	Validate(ctx context.Context, orgID uuid.UUID, code string) (*CertificateValidation, error)
	Cancel(ctx context.Context, orgID uuid.UUID, code string) (*domain.GiftCertificate, error)
}

// IssueCertificateRequest holds validated input for issuing a certificate.
// An empty Code asks the service to generate one.
type IssueCertificateRequest struct {
	OrganizationID uuid.UUID
	Code           string
	Amount         int64
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	RecipientEmail *string
	RecipientPhone *string
}

// CertificateValidation is the read-only redeemability verdict.
type CertificateValidation struct {
	Certificate *domain.GiftCertificate
	CanRedeem   bool
	Reason      domain.RedeemBlocker
}

// ReportingService defines read-side wallet queries.
type ReportingService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	ListWallets(ctx context.Context, params WalletListParams) ([]domain.Wallet, int64, error)
	GetOrganizationStats(ctx context.Context, orgID uuid.UUID) (*OrganizationStats, error)
}

// TransactionListParams holds pagination for one wallet's ledger.
// A non-nil OrganizationID scopes the wallet lookup to that organization.
type TransactionListParams struct {
	WalletID       uuid.UUID
	OrganizationID *uuid.UUID
	Limit          int
	Offset         int
}

// Page size bounds for list queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ClampPage applies the default and maximum page size and floors offset at 0.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// OrganizationStats summarises an organization's wallets and today's activity.
type OrganizationStats struct {
	TotalWallets      int64
	ActiveWallets     int64
	TotalBalance      int64
	TransactionsToday int64
	AmountToday       int64
}
