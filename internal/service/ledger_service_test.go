package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc        *LedgerServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	certRepo   *mocks.MockCertificateRepository
	transactor *mocks.MockDBTransactor
	idempCache *mocks.MockIdempotencyCache
	publisher  *mocks.MockEventPublisher
	metrics    *mocks.MockMetricsRecorder
	ctrl       *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		certRepo:   mocks.NewMockCertificateRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		publisher:  mocks.NewMockEventPublisher(ctrl),
		metrics:    mocks.NewMockMetricsRecorder(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewLedgerService(
		d.walletRepo, d.txRepo, d.transactor, d.idempCache, d.publisher, d.metrics,
		LedgerOptions{Unit: UnitPolicy{MaxRetries: 2, Backoff: time.Millisecond}},
		newTestLogger(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// failingCommitTx fails its commit with err.
type failingCommitTx struct {
	pgx.Tx
	err error
}

func (m *failingCommitTx) Rollback(_ context.Context) error { return nil }
func (m *failingCommitTx) Commit(_ context.Context) error   { return m.err }

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func strPtr(s string) *string { return &s }

func newActiveWallet(balance int64) *domain.Wallet {
	w := domain.NewWallet(uuid.New(), uuid.New(), "EUR", time.Now().UTC())
	w.Balance = balance
	return w
}

// ==================== ApplyTransaction Tests ====================

func TestLedgerService_ApplyTransaction_Credit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(1000)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, int64(1000), txn.BalanceBefore)
			assert.Equal(t, int64(3500), txn.BalanceAfter)
			assert.Equal(t, wallet.OrganizationID, txn.OrganizationID)
			txn.Seq = 7
			return nil
		},
	)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(3500)).Return(nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeCredit, outcomeApplied, int64(2500))
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ev domain.WalletEvent) error {
			assert.Equal(t, domain.WalletEventTransaction, ev.Type)
			assert.Equal(t, int64(3500), ev.Balance)
			return nil
		},
	)

	txn, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: wallet.ID,
		Type:     domain.TransactionTypeCredit,
		Amount:   2500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3500), txn.BalanceAfter)
	assert.Equal(t, int64(7), txn.Seq)
}

func TestLedgerService_ApplyTransaction_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	for _, amount := range []int64{0, -1, domain.MaxAmount + 1} {
		d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeDebit, "PAY_002", amount)

		_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
			WalletID: uuid.New(),
			Type:     domain.TransactionTypeDebit,
			Amount:   amount,
		})
		assertAppError(t, err, "PAY_002")
	}
}

func TestLedgerService_ApplyTransaction_InvalidType(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: uuid.New(),
		Type:     domain.TransactionType("transfer"),
		Amount:   100,
	})
	assertAppError(t, err, "WAL_005")
}

func TestLedgerService_ApplyTransaction_ReservedReference(t *testing.T) {
	tests := []struct {
		name    string
		txType  domain.TransactionType
		refType string
	}{
		{"payment with certificate reference", domain.TransactionTypePayment, domain.ReferenceTypeGiftCertificate},
		{"redeem type with certificate reference", domain.TransactionTypeGiftCertificateRedeem, domain.ReferenceTypeGiftCertificate},
		{"payment with top-up reference", domain.TransactionTypePayment, domain.ReferenceTypeTopUp},
		{"credit with top-up reference", domain.TransactionTypeCredit, domain.ReferenceTypeTopUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t)
			defer d.ctrl.Finish()

			// No transactor or repository calls are expected.
			d.metrics.EXPECT().ObserveTransaction(tt.txType, "PAY_002", int64(100))

			_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
				WalletID:      uuid.New(),
				Type:          tt.txType,
				Amount:        100,
				ReferenceType: strPtr(tt.refType),
				ReferenceID:   strPtr(uuid.NewString()),
			})
			assertAppError(t, err, "PAY_002")
		})
	}
}

func TestLedgerService_ApplyTransaction_BalanceOverflow(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(math.MaxInt64 - 50)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeCredit, "PAY_002", int64(100))

	_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: wallet.ID,
		Type:     domain.TransactionTypeCredit,
		Amount:   100,
	})
	assertAppError(t, err, "PAY_002")
}

func TestLedgerService_ApplyTransaction_InsufficientBalance(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(1000)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypePayment, "WAL_001", int64(1500))

	_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: wallet.ID,
		Type:     domain.TransactionTypePayment,
		Amount:   1500,
	})
	assertAppError(t, err, "WAL_001")
}

func TestLedgerService_ApplyTransaction_WalletNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	tx := &mockTx{}
	walletID := uuid.New()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, walletID).Return(nil, nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeCredit, "WAL_002", int64(100))

	_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: walletID,
		Type:     domain.TransactionTypeCredit,
		Amount:   100,
	})
	assertAppError(t, err, "WAL_002")
}

func TestLedgerService_ApplyTransaction_OtherOrganization(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(1000)
	tx := &mockTx{}
	otherOrg := uuid.New()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.metrics.EXPECT().ObserveTransaction(gomock.Any(), "WAL_002", gomock.Any())

	_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID:       wallet.ID,
		OrganizationID: &otherOrg,
		Type:           domain.TransactionTypeCredit,
		Amount:         100,
	})
	assertAppError(t, err, "WAL_002")
}

func TestLedgerService_ApplyTransaction_StatusRules(t *testing.T) {
	tests := []struct {
		name   string
		status domain.WalletStatus
		txType domain.TransactionType
		code   string
	}{
		{"suspended rejects debit", domain.WalletStatusSuspended, domain.TransactionTypeDebit, "WAL_003"},
		{"closed rejects credit", domain.WalletStatusClosed, domain.TransactionTypeCredit, "WAL_004"},
		{"closed rejects debit", domain.WalletStatusClosed, domain.TransactionTypePayment, "WAL_004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t)
			defer d.ctrl.Finish()

			wallet := newActiveWallet(5000)
			wallet.Status = tt.status
			tx := &mockTx{}

			d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
			d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
			d.metrics.EXPECT().ObserveTransaction(tt.txType, tt.code, int64(100))

			_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
				WalletID: wallet.ID,
				Type:     tt.txType,
				Amount:   100,
			})
			assertAppError(t, err, tt.code)
		})
	}
}

func TestLedgerService_ApplyTransaction_SuspendedAcceptsCredit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(0)
	wallet.Status = domain.WalletStatusSuspended
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(300)).Return(nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeRefund, outcomeApplied, int64(300))
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	txn, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: wallet.ID,
		Type:     domain.TransactionTypeRefund,
		Amount:   300,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), txn.BalanceAfter)
}

func TestLedgerService_ApplyTransaction_CacheHit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(0)
	existing := &domain.Transaction{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		OrganizationID: wallet.OrganizationID,
		Type:           domain.TransactionTypeCredit,
		Amount:         500,
		ReferenceType:  strPtr("order"),
		ReferenceID:    strPtr("A-1"),
		BalanceAfter:   500,
	}
	payload, err := json.Marshal(existing)
	require.NoError(t, err)

	key := domain.BuildIdempotencyKey(wallet.ID, "order", "A-1")
	d.idempCache.EXPECT().Get(gomock.Any(), key).Return(payload, nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeCredit, outcomeReplayed, int64(500))

	txn, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID:      wallet.ID,
		Type:          domain.TransactionTypeCredit,
		Amount:        500,
		ReferenceType: strPtr("order"),
		ReferenceID:   strPtr("A-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, txn.ID)
}

func TestLedgerService_ApplyTransaction_ReplayFromDB(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	// Balance already moved past the original entry; a replay must still
	// return it instead of re-checking the balance.
	wallet := newActiveWallet(0)
	tx := &mockTx{}
	existing := &domain.Transaction{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		OrganizationID: wallet.OrganizationID,
		Type:           domain.TransactionTypePayment,
		Amount:         800,
		ReferenceType:  strPtr("order"),
		ReferenceID:    strPtr("B-2"),
		BalanceAfter:   200,
	}
	key := domain.BuildIdempotencyKey(wallet.ID, "order", "B-2")

	d.idempCache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByReference(gomock.Any(), tx, wallet.ID, "order", "B-2").Return(existing, nil)
	d.idempCache.EXPECT().Set(gomock.Any(), key, gomock.Any(), defaultIdempotencyTTL).Return(nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypePayment, outcomeReplayed, int64(800))

	txn, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID:      wallet.ID,
		Type:          domain.TransactionTypePayment,
		Amount:        800,
		ReferenceType: strPtr("order"),
		ReferenceID:   strPtr("B-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, txn.ID)
	assert.Equal(t, int64(200), txn.BalanceAfter)
}

func TestLedgerService_ApplyTransaction_CacheErrorFallsThrough(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(0)
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(wallet.ID, "order", "C-3")

	d.idempCache.EXPECT().Get(gomock.Any(), key).Return(nil, errors.New("redis down"))
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByReference(gomock.Any(), tx, wallet.ID, "order", "C-3").Return(nil, nil)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(900)).Return(nil)
	d.idempCache.EXPECT().Set(gomock.Any(), key, gomock.Any(), defaultIdempotencyTTL).Return(errors.New("redis down"))
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeTopUp, outcomeApplied, int64(900))
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	txn, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID:      wallet.ID,
		Type:          domain.TransactionTypeTopUp,
		Amount:        900,
		ReferenceType: strPtr("order"),
		ReferenceID:   strPtr("C-3"),
	})
	require.NoError(t, err, "cache and publisher failures must not fail a committed entry")
	assert.Equal(t, int64(900), txn.BalanceAfter)
}

func TestLedgerService_ApplyTransaction_RetriesConflict(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(1000)
	conflict := fmt.Errorf("%w: serialization failure", ports.ErrConflict)

	gomock.InOrder(
		d.transactor.EXPECT().Begin(gomock.Any()).Return(&failingCommitTx{err: conflict}, nil),
		d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil),
	)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), wallet.ID).DoAndReturn(
		func(context.Context, pgx.Tx, uuid.UUID) (*domain.Wallet, error) {
			w := *wallet
			return &w, nil
		},
	).Times(2)
	d.txRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), gomock.Any(), wallet.ID, int64(1100)).Return(nil).Times(2)
	d.metrics.EXPECT().ObserveRetry("apply_transaction")
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeCredit, outcomeApplied, int64(100))
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	txn, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: wallet.ID,
		Type:     domain.TransactionTypeCredit,
		Amount:   100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1100), txn.BalanceAfter)
}

func TestLedgerService_ApplyTransaction_RetriesExhausted(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	conflict := fmt.Errorf("%w: lock timeout", ports.ErrConflict)

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil).Times(3)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), walletID).Return(nil, conflict).Times(3)
	d.metrics.EXPECT().ObserveRetry("apply_transaction").Times(2)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeCredit, "SYS_002", int64(100))

	_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: walletID,
		Type:     domain.TransactionTypeCredit,
		Amount:   100,
	})
	assertAppError(t, err, "SYS_002")
	assert.ErrorIs(t, err, ports.ErrConflict)
}

func TestLedgerService_ApplyTransaction_StorageUnavailable(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	down := fmt.Errorf("%w: connection refused", ports.ErrUnavailable)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(nil, down)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeCredit, "SYS_004", int64(100))

	_, err := d.svc.ApplyTransaction(context.Background(), ports.ApplyTransactionRequest{
		WalletID: uuid.New(),
		Type:     domain.TransactionTypeCredit,
		Amount:   100,
	})
	assertAppError(t, err, "SYS_004")
}

func TestLedgerService_ApplyTransaction_IgnoresCallerCancellation(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(0)
	tx := &mockTx{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.transactor.EXPECT().Begin(gomock.Any()).DoAndReturn(func(ctx context.Context) (pgx.Tx, error) {
		assert.NoError(t, ctx.Err(), "unit must run detached from the caller")
		return tx, nil
	})
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(100)).Return(nil)
	d.metrics.EXPECT().ObserveTransaction(gomock.Any(), outcomeApplied, gomock.Any())
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := d.svc.ApplyTransaction(ctx, ports.ApplyTransactionRequest{
		WalletID: wallet.ID,
		Type:     domain.TransactionTypeCredit,
		Amount:   100,
	})
	require.NoError(t, err)
}
