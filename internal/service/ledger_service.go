package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Outcome labels reported to ports.MetricsRecorder.
const (
	outcomeApplied  = "applied"
	outcomeReplayed = "replayed"
)

// LedgerOptions tunes LedgerServiceImpl.
type LedgerOptions struct {
	Unit           UnitPolicy
	IdempotencyTTL time.Duration
}

// LedgerServiceImpl implements ports.LedgerService. It is the only component
// that changes a wallet balance.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	idempCache ports.IdempotencyCache
	publisher  ports.EventPublisher
	metrics    ports.MetricsRecorder
	units      *unitRunner
	idempTTL   time.Duration
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. idempCache, publisher and
// metrics may be nil.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	opts LedgerOptions,
	log zerolog.Logger,
) *LedgerServiceImpl {
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		idempCache: idempCache,
		publisher:  publisher,
		metrics:    metrics,
		units:      &unitRunner{transactor: transactor, policy: opts.Unit, metrics: metrics, log: log},
		idempTTL:   ttl,
		log:        log,
	}
}

// appliedEntry is the outcome of applyInTx.
type appliedEntry struct {
	txn      *domain.Transaction
	wallet   *domain.Wallet
	replayed bool
}

// ApplyTransaction appends one ledger entry and moves the wallet balance,
// or returns the entry previously written for the same reference.
func (s *LedgerServiceImpl) ApplyTransaction(ctx context.Context, req ports.ApplyTransactionRequest) (*domain.Transaction, error) {
	if err := validateApply(req); err != nil {
		if req.Type.Valid() {
			s.observeTransaction(req.Type, err, req.Amount)
		}
		return nil, err
	}

	var idempKey string
	if hasReference(req.ReferenceType, req.ReferenceID) {
		idempKey = domain.BuildIdempotencyKey(req.WalletID, *req.ReferenceType, *req.ReferenceID)
		if cached := s.cachedEntry(ctx, idempKey, req.OrganizationID); cached != nil {
			s.observe(req.Type, outcomeReplayed, cached.Amount)
			return cached, nil
		}
	}

	var entry *appliedEntry
	err := s.units.run(ctx, "apply_transaction", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		entry, err = s.applyInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		s.observeTransaction(req.Type, err, req.Amount)
		return nil, err
	}

	s.afterCommit(ctx, entry)
	return entry.txn, nil
}

func validateApply(req ports.ApplyTransactionRequest) error {
	if req.Amount <= 0 || req.Amount > domain.MaxAmount {
		return apperror.ErrInvalidAmount()
	}
	if !req.Type.Valid() {
		return apperror.ErrInvalidTransactionType()
	}
	// Certificate references are written only by RedeemCertificate, which
	// enters through applyInTx. Top-up references need the top_up type.
	if req.ReferenceType != nil {
		if owner, ok := domain.ReferenceOwner(*req.ReferenceType); ok &&
			(owner == domain.TransactionTypeGiftCertificateRedeem || owner != req.Type) {
			return apperror.ErrReservedReference()
		}
	}
	return nil
}

// applyInTx runs the locked part of ApplyTransaction on tx: lock, replay
// check, status check, balance check, then write. Callers commit.
func (s *LedgerServiceImpl) applyInTx(ctx context.Context, tx pgx.Tx, req ports.ApplyTransactionRequest) (*appliedEntry, error) {
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, req.WalletID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet == nil || (req.OrganizationID != nil && wallet.OrganizationID != *req.OrganizationID) {
		return nil, apperror.ErrWalletNotFound()
	}

	if hasReference(req.ReferenceType, req.ReferenceID) {
		existing, err := s.txRepo.GetByReference(ctx, tx, wallet.ID, *req.ReferenceType, *req.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("find transaction by reference: %w", err)
		}
		if existing != nil {
			return &appliedEntry{txn: existing, wallet: wallet, replayed: true}, nil
		}
	}

	if !wallet.Accepts(req.Type) {
		if wallet.Status == domain.WalletStatusClosed {
			return nil, apperror.ErrWalletClosed()
		}
		return nil, apperror.ErrWalletSuspended()
	}

	after, err := req.Type.Apply(wallet.Balance, req.Amount)
	switch {
	case errors.Is(err, domain.ErrNegativeBalance):
		return nil, apperror.ErrInsufficientBalance()
	case errors.Is(err, domain.ErrBalanceOverflow):
		return nil, apperror.ErrInvalidAmount()
	case err != nil:
		return nil, err
	}

	txn := &domain.Transaction{
		ID:                 uuid.New(),
		WalletID:           wallet.ID,
		OrganizationID:     wallet.OrganizationID,
		CustomerID:         wallet.CustomerID,
		Type:               req.Type,
		Amount:             req.Amount,
		Description:        req.Description,
		ReferenceType:      req.ReferenceType,
		ReferenceID:        req.ReferenceID,
		BalanceBefore:      wallet.Balance,
		BalanceAfter:       after,
		Metadata:           req.Metadata,
		ProcessedByStaffID: req.StaffID,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, after); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	wallet.Balance = after
	wallet.UpdatedAt = txn.CreatedAt

	return &appliedEntry{txn: txn, wallet: wallet}, nil
}

// afterCommit runs the best-effort side effects of a committed entry.
// None of them can fail the operation.
func (s *LedgerServiceImpl) afterCommit(ctx context.Context, entry *appliedEntry) {
	txn := entry.txn

	if txn.HasReference() && s.idempCache != nil {
		key := domain.BuildIdempotencyKey(txn.WalletID, *txn.ReferenceType, *txn.ReferenceID)
		if payload, err := json.Marshal(txn); err == nil {
			if err := s.idempCache.Set(ctx, key, payload, s.idempTTL); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
			}
		}
	}

	if entry.replayed {
		s.observe(txn.Type, outcomeReplayed, txn.Amount)
		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("wallet_id", txn.WalletID.String()).
			Msg("transaction replayed by reference")
		return
	}

	s.observe(txn.Type, outcomeApplied, txn.Amount)
	s.publish(ctx, domain.NewTransactionEvent(entry.wallet, txn))

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", txn.WalletID.String()).
		Str("type", string(txn.Type)).
		Int64("amount", txn.Amount).
		Int64("balance_after", txn.BalanceAfter).
		Msg("transaction applied")
}

// cachedEntry returns the committed entry stored under key, or nil on miss,
// cache error, undecodable payload or organization mismatch.
func (s *LedgerServiceImpl) cachedEntry(ctx context.Context, key string, orgID *uuid.UUID) *domain.Transaction {
	if s.idempCache == nil {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	txn := &domain.Transaction{}
	if err := json.Unmarshal(cached, txn); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("undecodable idempotency cache entry")
		return nil
	}
	if orgID != nil && txn.OrganizationID != *orgID {
		return nil
	}
	return txn
}

func (s *LedgerServiceImpl) publish(ctx context.Context, event domain.WalletEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("wallet_id", event.WalletID.String()).
			Str("event", string(event.Type)).
			Msg("failed to publish wallet event")
	}
}

func (s *LedgerServiceImpl) observe(txType domain.TransactionType, outcome string, amount int64) {
	if s.metrics != nil {
		s.metrics.ObserveTransaction(txType, outcome, amount)
	}
}

// observeTransaction records a failed attempt under its error code.
func (s *LedgerServiceImpl) observeTransaction(txType domain.TransactionType, err error, amount int64) {
	outcome := apperror.CodeOf(err)
	if outcome == "" {
		outcome = "error"
	}
	s.observe(txType, outcome, amount)
}

func hasReference(refType, refID *string) bool {
	return refType != nil && *refType != "" && refID != nil && *refID != ""
}
