package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
	now        func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
) ports.ReportingService {
	return &reportingService{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		now:        time.Now,
	}
}

// ListTransactions returns one wallet's ledger, newest first.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	wallet, err := s.walletRepo.GetByID(ctx, params.WalletID)
	if err != nil {
		return nil, 0, storageError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil || (params.OrganizationID != nil && wallet.OrganizationID != *params.OrganizationID) {
		return nil, 0, apperror.ErrWalletNotFound()
	}

	limit, offset := ports.ClampPage(params.Limit, params.Offset)
	txns, total, err := s.txRepo.ListByWallet(ctx, wallet.ID, limit, offset)
	if err != nil {
		return nil, 0, storageError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// ListWallets returns the organization's wallets, newest first.
func (s *reportingService) ListWallets(ctx context.Context, params ports.WalletListParams) ([]domain.Wallet, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.ErrInvalidWalletStatus()
	}
	params.Limit, params.Offset = ports.ClampPage(params.Limit, params.Offset)

	wallets, total, err := s.walletRepo.List(ctx, params)
	if err != nil {
		return nil, 0, storageError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, total, nil
}

// GetOrganizationStats combines wallet totals with ledger activity since
// the start of the current UTC day.
func (s *reportingService) GetOrganizationStats(ctx context.Context, orgID uuid.UUID) (*ports.OrganizationStats, error) {
	ws, err := s.walletRepo.GetStats(ctx, orgID)
	if err != nil {
		return nil, storageError(fmt.Errorf("wallet stats: %w", err))
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	activity, err := s.txRepo.GetActivity(ctx, orgID, dayStart)
	if err != nil {
		return nil, storageError(fmt.Errorf("transaction activity: %w", err))
	}

	return &ports.OrganizationStats{
		TotalWallets:      ws.TotalWallets,
		ActiveWallets:     ws.ActiveWallets,
		TotalBalance:      ws.TotalBalance,
		TransactionsToday: activity.Count,
		AmountToday:       activity.TotalAmount,
	}, nil
}

