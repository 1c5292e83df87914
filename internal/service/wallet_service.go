package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService: wallet resolution, the
// top-up and payment flows, and status administration.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledger     *LedgerServiceImpl
	currency   string
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl. New wallets are opened
// in currency.
func NewWalletService(walletRepo ports.WalletRepository, ledger *LedgerServiceImpl, currency string, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledger:     ledger,
		currency:   currency,
		log:        log,
	}
}

// GetOrCreateWallet returns the customer's wallet in the organization,
// opening an empty active one on first access. Concurrent first accesses
// all observe the same wallet.
func (s *WalletServiceImpl) GetOrCreateWallet(ctx context.Context, orgID, customerID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, orgID, customerID)
	if err != nil {
		return nil, storageError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = domain.NewWallet(orgID, customerID, s.currency, time.Now().UTC())
	created, err := s.walletRepo.Create(ctx, wallet)
	if err != nil && !errors.Is(err, ports.ErrDuplicate) {
		return nil, storageError(fmt.Errorf("create wallet: %w", err))
	}
	if created {
		s.log.Info().
			Str("wallet_id", wallet.ID.String()).
			Str("organization_id", orgID.String()).
			Str("customer_id", customerID.String()).
			Msg("wallet created")
		return wallet, nil
	}

	// Lost the race against a concurrent first access.
	wallet, err = s.walletRepo.GetByOwner(ctx, orgID, customerID)
	if err != nil {
		return nil, storageError(fmt.Errorf("re-fetch wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.InternalError(fmt.Errorf("wallet for customer %s vanished after conflict", customerID))
	}
	return wallet, nil
}

// TopUp credits the customer's wallet.
func (s *WalletServiceImpl) TopUp(ctx context.Context, req ports.TopUpRequest) (*ports.FlowResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.GetOrCreateWallet(ctx, req.OrganizationID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	metadata := maps.Clone(req.Metadata)
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	metadata["payment_method"] = req.PaymentMethod

	refType := domain.ReferenceTypeTopUp
	txn, err := s.ledger.ApplyTransaction(ctx, ports.ApplyTransactionRequest{
		WalletID:       wallet.ID,
		OrganizationID: &req.OrganizationID,
		Type:           domain.TransactionTypeTopUp,
		Amount:         req.Amount,
		Description:    "Top-up via " + req.PaymentMethod,
		ReferenceType:  &refType,
		ReferenceID:    req.ReferenceID,
		Metadata:       metadata,
		StaffID:        req.StaffID,
	})
	if err != nil {
		return nil, err
	}
	return &ports.FlowResult{Transaction: txn, NewBalance: txn.BalanceAfter}, nil
}

// Pay debits the customer's wallet.
func (s *WalletServiceImpl) Pay(ctx context.Context, req ports.PayRequest) (*ports.FlowResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.GetOrCreateWallet(ctx, req.OrganizationID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	// Unlocked fast rejection. Skipped for referenced payments so a replay
	// still returns the original entry after the balance dropped, and for
	// non-active wallets so the status error wins.
	if wallet.IsActive() && !hasReference(req.ReferenceType, req.ReferenceID) && wallet.Balance < req.Amount {
		return nil, apperror.ErrInsufficientBalance()
	}

	txn, err := s.ledger.ApplyTransaction(ctx, ports.ApplyTransactionRequest{
		WalletID:       wallet.ID,
		OrganizationID: &req.OrganizationID,
		Type:           domain.TransactionTypePayment,
		Amount:         req.Amount,
		Description:    req.Description,
		ReferenceType:  req.ReferenceType,
		ReferenceID:    req.ReferenceID,
		Metadata:       req.Metadata,
		StaffID:        req.StaffID,
	})
	if err != nil {
		return nil, err
	}
	return &ports.FlowResult{Transaction: txn, NewBalance: txn.BalanceAfter}, nil
}

// SetStatus moves a wallet to a new status under the wallet lock.
func (s *WalletServiceImpl) SetStatus(ctx context.Context, req ports.SetWalletStatusRequest) (*domain.Wallet, error) {
	if !req.Status.Valid() {
		return nil, apperror.ErrInvalidWalletStatus()
	}

	var wallet *domain.Wallet
	err := s.ledger.units.run(ctx, "set_wallet_status", func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.walletRepo.GetByIDForUpdate(ctx, tx, req.WalletID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if w == nil || w.OrganizationID != req.OrganizationID {
			return apperror.ErrWalletNotFound()
		}
		if !w.CanTransitionTo(req.Status) {
			return apperror.ErrInvalidWalletStatus()
		}
		if err := s.walletRepo.UpdateStatus(ctx, tx, w.ID, req.Status); err != nil {
			return fmt.Errorf("update wallet status: %w", err)
		}
		w.Status = req.Status
		w.UpdatedAt = time.Now().UTC()
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.publish(ctx, domain.WalletEvent{
		Type:           domain.WalletEventStatusChanged,
		OrganizationID: wallet.OrganizationID,
		CustomerID:     wallet.CustomerID,
		WalletID:       wallet.ID,
		Balance:        wallet.Balance,
		Status:         wallet.Status,
		OccurredAt:     wallet.UpdatedAt,
	})

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("status", string(wallet.Status)).
		Str("staff_id", req.StaffID.String()).
		Msg("wallet status changed")

	return wallet, nil
}
