package service

import (
	"context"
	"fmt"
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupWalletService(t *testing.T) (*WalletServiceImpl, *ledgerTestDeps) {
	d := setupLedgerService(t)
	return NewWalletService(d.walletRepo, d.svc, "EUR", newTestLogger()), d
}

// ==================== GetOrCreateWallet Tests ====================

func TestWalletService_GetOrCreateWallet_Existing(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(100)
	d.walletRepo.EXPECT().GetByOwner(gomock.Any(), wallet.OrganizationID, wallet.CustomerID).Return(wallet, nil)

	got, err := svc.GetOrCreateWallet(context.Background(), wallet.OrganizationID, wallet.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, wallet, got)
}

func TestWalletService_GetOrCreateWallet_Creates(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	orgID, customerID := uuid.New(), uuid.New()
	d.walletRepo.EXPECT().GetByOwner(gomock.Any(), orgID, customerID).Return(nil, nil)
	d.walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.Wallet) (bool, error) {
			assert.Equal(t, "EUR", w.Currency)
			assert.Equal(t, domain.WalletStatusActive, w.Status)
			assert.Equal(t, int64(0), w.Balance)
			return true, nil
		},
	)

	got, err := svc.GetOrCreateWallet(context.Background(), orgID, customerID)
	require.NoError(t, err)
	assert.Equal(t, orgID, got.OrganizationID)
	assert.Equal(t, customerID, got.CustomerID)
}

func TestWalletService_GetOrCreateWallet_LostRace(t *testing.T) {
	for _, createErr := range []error{nil, fmt.Errorf("%w: uq_wallets_owner", ports.ErrDuplicate)} {
		svc, d := setupWalletService(t)

		winner := newActiveWallet(0)
		gomock.InOrder(
			d.walletRepo.EXPECT().GetByOwner(gomock.Any(), winner.OrganizationID, winner.CustomerID).Return(nil, nil),
			d.walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(false, createErr),
			d.walletRepo.EXPECT().GetByOwner(gomock.Any(), winner.OrganizationID, winner.CustomerID).Return(winner, nil),
		)

		got, err := svc.GetOrCreateWallet(context.Background(), winner.OrganizationID, winner.CustomerID)
		require.NoError(t, err)
		assert.Equal(t, winner.ID, got.ID)
		d.ctrl.Finish()
	}
}

func TestWalletService_GetOrCreateWallet_StorageDown(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	d.walletRepo.EXPECT().GetByOwner(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: dial tcp", ports.ErrUnavailable))

	_, err := svc.GetOrCreateWallet(context.Background(), uuid.New(), uuid.New())
	assertAppError(t, err, "SYS_004")
}

// ==================== TopUp Tests ====================

func TestWalletService_TopUp_Success(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(0)
	tx := &mockTx{}
	callerMeta := domain.Metadata{"note": "gift"}

	d.walletRepo.EXPECT().GetByOwner(gomock.Any(), wallet.OrganizationID, wallet.CustomerID).Return(wallet, nil)
	d.idempCache.EXPECT().Get(gomock.Any(), domain.BuildIdempotencyKey(wallet.ID, "top_up", "psp-1")).Return(nil, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByReference(gomock.Any(), tx, wallet.ID, "top_up", "psp-1").Return(nil, nil)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeTopUp, txn.Type)
			assert.Equal(t, "Top-up via card", txn.Description)
			assert.Equal(t, "card", txn.Metadata["payment_method"])
			assert.Equal(t, "gift", txn.Metadata["note"])
			return nil
		},
	)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(5000)).Return(nil)
	d.idempCache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypeTopUp, outcomeApplied, int64(5000))
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.TopUp(context.Background(), ports.TopUpRequest{
		OrganizationID: wallet.OrganizationID,
		CustomerID:     wallet.CustomerID,
		Amount:         5000,
		PaymentMethod:  "card",
		ReferenceID:    strPtr("psp-1"),
		Metadata:       callerMeta,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.NewBalance)
	assert.NotContains(t, callerMeta, "payment_method", "caller metadata must not be mutated")
}

func TestWalletService_TopUp_InvalidAmount(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	_, err := svc.TopUp(context.Background(), ports.TopUpRequest{
		OrganizationID: uuid.New(),
		CustomerID:     uuid.New(),
		Amount:         0,
		PaymentMethod:  "card",
	})
	assertAppError(t, err, "PAY_002")
}

// ==================== Pay Tests ====================

func TestWalletService_Pay_PreCheckRejects(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(100)
	d.walletRepo.EXPECT().GetByOwner(gomock.Any(), wallet.OrganizationID, wallet.CustomerID).Return(wallet, nil)

	_, err := svc.Pay(context.Background(), ports.PayRequest{
		OrganizationID: wallet.OrganizationID,
		CustomerID:     wallet.CustomerID,
		Amount:         500,
	})
	assertAppError(t, err, "WAL_001")
}

func TestWalletService_Pay_SuspendedSkipsPreCheck(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(100)
	wallet.Status = domain.WalletStatusSuspended
	tx := &mockTx{}

	d.walletRepo.EXPECT().GetByOwner(gomock.Any(), wallet.OrganizationID, wallet.CustomerID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypePayment, "WAL_003", int64(500))

	_, err := svc.Pay(context.Background(), ports.PayRequest{
		OrganizationID: wallet.OrganizationID,
		CustomerID:     wallet.CustomerID,
		Amount:         500,
	})
	assertAppError(t, err, "WAL_003")
}

func TestWalletService_Pay_Success(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(1000)
	staffID := uuid.New()
	tx := &mockTx{}

	d.walletRepo.EXPECT().GetByOwner(gomock.Any(), wallet.OrganizationID, wallet.CustomerID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			require.NotNil(t, txn.ProcessedByStaffID)
			assert.Equal(t, staffID, *txn.ProcessedByStaffID)
			return nil
		},
	)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, wallet.ID, int64(600)).Return(nil)
	d.metrics.EXPECT().ObserveTransaction(domain.TransactionTypePayment, outcomeApplied, int64(400))
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Pay(context.Background(), ports.PayRequest{
		OrganizationID: wallet.OrganizationID,
		CustomerID:     wallet.CustomerID,
		Amount:         400,
		Description:    "Coffee",
		StaffID:        &staffID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.NewBalance)
}

// ==================== SetStatus Tests ====================

func TestWalletService_SetStatus_Success(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(100)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateStatus(gomock.Any(), tx, wallet.ID, domain.WalletStatusSuspended).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ev domain.WalletEvent) error {
			assert.Equal(t, domain.WalletEventStatusChanged, ev.Type)
			assert.Equal(t, domain.WalletStatusSuspended, ev.Status)
			return nil
		},
	)

	got, err := svc.SetStatus(context.Background(), ports.SetWalletStatusRequest{
		OrganizationID: wallet.OrganizationID,
		WalletID:       wallet.ID,
		Status:         domain.WalletStatusSuspended,
		StaffID:        uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WalletStatusSuspended, got.Status)
}

func TestWalletService_SetStatus_ClosedIsTerminal(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(0)
	wallet.Status = domain.WalletStatusClosed
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)

	_, err := svc.SetStatus(context.Background(), ports.SetWalletStatusRequest{
		OrganizationID: wallet.OrganizationID,
		WalletID:       wallet.ID,
		Status:         domain.WalletStatusActive,
	})
	assertAppError(t, err, "WAL_006")
}

func TestWalletService_SetStatus_InvalidStatus(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	_, err := svc.SetStatus(context.Background(), ports.SetWalletStatusRequest{
		OrganizationID: uuid.New(),
		WalletID:       uuid.New(),
		Status:         domain.WalletStatus("frozen"),
	})
	assertAppError(t, err, "WAL_006")
}

func TestWalletService_SetStatus_OtherOrganization(t *testing.T) {
	svc, d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet := newActiveWallet(0)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, wallet.ID).Return(wallet, nil)

	_, err := svc.SetStatus(context.Background(), ports.SetWalletStatusRequest{
		OrganizationID: uuid.New(),
		WalletID:       wallet.ID,
		Status:         domain.WalletStatusSuspended,
	})
	assertAppError(t, err, "WAL_002")
}
