package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerStack wires every service onto one memory store.
type ledgerStack struct {
	store      *memory.Store
	wallets    *WalletServiceImpl
	ledger     *LedgerServiceImpl
	redeem     *RedemptionServiceImpl
	certs      *CertificateServiceImpl
	reports    ports.ReportingService
	walletRepo *memory.WalletRepo
	txRepo     *memory.TransactionRepo
}

func newLedgerStack(t *testing.T) *ledgerStack {
	t.Helper()
	store := memory.New(5 * time.Second)
	walletRepo := memory.NewWalletRepo(store)
	txRepo := memory.NewTransactionRepo(store)
	certRepo := memory.NewCertificateRepo(store)

	ledger := NewLedgerService(walletRepo, txRepo, store, nil, nil, nil,
		LedgerOptions{Unit: UnitPolicy{MaxRetries: 3, Backoff: time.Millisecond}}, newTestLogger())
	wallets := NewWalletService(walletRepo, ledger, "EUR", newTestLogger())

	return &ledgerStack{
		store:      store,
		wallets:    wallets,
		ledger:     ledger,
		redeem:     NewRedemptionService(certRepo, wallets, ledger, nil, newTestLogger()),
		certs:      NewCertificateService(certRepo, ledger, newTestLogger()),
		reports:    NewReportingService(txRepo, walletRepo),
		walletRepo: walletRepo,
		txRepo:     txRepo,
	}
}

// assertLedgerConsistent checks that the stored balance equals the replayed
// ledger and that every entry chains onto the previous one.
func (s *ledgerStack) assertLedgerConsistent(t *testing.T, walletID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	txns, total, err := s.txRepo.ListByWallet(ctx, walletID, 10_000, 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(txns)), total)

	// newest first; walk oldest to newest
	var running int64
	for i := len(txns) - 1; i >= 0; i-- {
		tx := txns[i]
		assert.Equal(t, running, tx.BalanceBefore, "entry seq %d", tx.Seq)
		running += tx.SignedAmount()
		assert.Equal(t, running, tx.BalanceAfter, "entry seq %d", tx.Seq)
		assert.GreaterOrEqual(t, tx.BalanceAfter, int64(0))
	}

	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReplayBalance(txns), wallet.Balance)
}

func TestScenario_TopUpPayRedeem(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID, customerID := uuid.New(), uuid.New()

	res, err := s.wallets.TopUp(ctx, ports.TopUpRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: 5000, PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.NewBalance)

	res, err = s.wallets.Pay(ctx, ports.PayRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: 1200, Description: "Lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3800), res.NewBalance)

	cert, err := s.certs.Issue(ctx, ports.IssueCertificateRequest{OrganizationID: orgID, Amount: 2000})
	require.NoError(t, err)

	res, err = s.redeem.RedeemCertificate(ctx, ports.RedeemRequest{
		OrganizationID: orgID, CustomerID: customerID, Code: cert.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5800), res.NewBalance)

	v, err := s.certs.Validate(ctx, orgID, cert.Code)
	require.NoError(t, err)
	assert.False(t, v.CanRedeem)
	assert.Equal(t, domain.CertificateStatusFullyUsed, v.Certificate.Status)
	assert.Equal(t, int64(0), v.Certificate.CurrentBalance)

	_, err = s.redeem.RedeemCertificate(ctx, ports.RedeemRequest{
		OrganizationID: orgID, CustomerID: customerID, Code: cert.Code,
	})
	assertAppError(t, err, "GC_005")

	_, err = s.wallets.Pay(ctx, ports.PayRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: 10_000,
	})
	assertAppError(t, err, "WAL_001")

	s.assertLedgerConsistent(t, res.Transaction.WalletID)

	txns, total, err := s.reports.ListTransactions(ctx, ports.TransactionListParams{WalletID: res.Transaction.WalletID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, domain.TransactionTypeGiftCertificateRedeem, txns[0].Type)
	assert.Equal(t, domain.TransactionTypeTopUp, txns[2].Type)

	stats, err := s.reports.GetOrganizationStats(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalWallets)
	assert.Equal(t, int64(5800), stats.TotalBalance)
	assert.Equal(t, int64(3), stats.TransactionsToday)
}

func TestScenario_ReferencedPaymentIsIdempotent(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID, customerID := uuid.New(), uuid.New()

	_, err := s.wallets.TopUp(ctx, ports.TopUpRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: 1000, PaymentMethod: "cash",
	})
	require.NoError(t, err)

	req := ports.PayRequest{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Amount:         800,
		ReferenceType:  strPtr("order"),
		ReferenceID:    strPtr("ORD-1"),
	}
	first, err := s.wallets.Pay(ctx, req)
	require.NoError(t, err)

	// Balance is now below the amount; the replay still returns the original.
	second, err := s.wallets.Pay(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, int64(200), second.NewBalance)

	s.assertLedgerConsistent(t, first.Transaction.WalletID)
}

func TestScenario_CertificateReferenceCannotBeForged(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID, customerID := uuid.New(), uuid.New()

	_, err := s.wallets.TopUp(ctx, ports.TopUpRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: 100, PaymentMethod: "card",
	})
	require.NoError(t, err)

	cert, err := s.certs.Issue(ctx, ports.IssueCertificateRequest{OrganizationID: orgID, Amount: 2000})
	require.NoError(t, err)

	_, err = s.wallets.Pay(ctx, ports.PayRequest{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Amount:         1,
		ReferenceType:  strPtr(domain.ReferenceTypeGiftCertificate),
		ReferenceID:    strPtr(cert.ID.String()),
	})
	assertAppError(t, err, "PAY_002")

	_, err = s.wallets.Pay(ctx, ports.PayRequest{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Amount:         1,
		ReferenceType:  strPtr(domain.ReferenceTypeTopUp),
		ReferenceID:    strPtr("psp-1"),
	})
	assertAppError(t, err, "PAY_002")

	res, err := s.redeem.RedeemCertificate(ctx, ports.RedeemRequest{
		OrganizationID: orgID, CustomerID: customerID, Code: cert.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2100), res.NewBalance)

	v, err := s.certs.Validate(ctx, orgID, cert.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.CertificateStatusFullyUsed, v.Certificate.Status)
	assert.Zero(t, v.Certificate.CurrentBalance)

	s.assertLedgerConsistent(t, res.Transaction.WalletID)
}

func TestScenario_RedeemWithLooselyTypedCode(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID, customerID := uuid.New(), uuid.New()

	cert, err := s.certs.Issue(ctx, ports.IssueCertificateRequest{OrganizationID: orgID, Code: "GC-1234-5678", Amount: 750})
	require.NoError(t, err)

	v, err := s.certs.Validate(ctx, orgID, "gc 1234 5678")
	require.NoError(t, err)
	assert.True(t, v.CanRedeem)

	res, err := s.redeem.RedeemCertificate(ctx, ports.RedeemRequest{
		OrganizationID: orgID, CustomerID: customerID, Code: "gc12345678",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(750), res.NewBalance)
	assert.Equal(t, cert.Code, res.Transaction.Metadata["gift_certificate_code"])

	_, err = s.certs.Issue(ctx, ports.IssueCertificateRequest{OrganizationID: orgID, Code: "gc12345678", Amount: 100})
	assertAppError(t, err, "GC_007")

	_, err = s.certs.Issue(ctx, ports.IssueCertificateRequest{OrganizationID: orgID, Code: "--", Amount: 100})
	assertAppError(t, err, "PAY_002")
}

func TestScenario_WalletStatusRules(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID, customerID := uuid.New(), uuid.New()

	res, err := s.wallets.TopUp(ctx, ports.TopUpRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: 1000, PaymentMethod: "card",
	})
	require.NoError(t, err)
	walletID := res.Transaction.WalletID

	_, err = s.wallets.SetStatus(ctx, ports.SetWalletStatusRequest{
		OrganizationID: orgID, WalletID: walletID, Status: domain.WalletStatusSuspended, StaffID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = s.wallets.Pay(ctx, ports.PayRequest{OrganizationID: orgID, CustomerID: customerID, Amount: 100})
	assertAppError(t, err, "WAL_003")

	_, err = s.ledger.ApplyTransaction(ctx, ports.ApplyTransactionRequest{
		WalletID: walletID, OrganizationID: &orgID, Type: domain.TransactionTypeRefund, Amount: 100,
	})
	require.NoError(t, err, "suspended wallets still accept credits")

	_, err = s.wallets.SetStatus(ctx, ports.SetWalletStatusRequest{
		OrganizationID: orgID, WalletID: walletID, Status: domain.WalletStatusClosed, StaffID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = s.wallets.TopUp(ctx, ports.TopUpRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: 100, PaymentMethod: "card",
	})
	assertAppError(t, err, "WAL_004")

	_, err = s.wallets.SetStatus(ctx, ports.SetWalletStatusRequest{
		OrganizationID: orgID, WalletID: walletID, Status: domain.WalletStatusActive, StaffID: uuid.New(),
	})
	assertAppError(t, err, "WAL_006")

	s.assertLedgerConsistent(t, walletID)
}

func TestScenario_CancelledCertificateCannotBeRedeemed(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID := uuid.New()

	cert, err := s.certs.Issue(ctx, ports.IssueCertificateRequest{OrganizationID: orgID, Code: "promo-1", Amount: 500})
	require.NoError(t, err)
	assert.Equal(t, "PROMO-1", cert.Code)

	_, err = s.certs.Cancel(ctx, orgID, "promo-1")
	require.NoError(t, err)

	_, err = s.redeem.RedeemCertificate(ctx, ports.RedeemRequest{
		OrganizationID: orgID, CustomerID: uuid.New(), Code: "PROMO-1",
	})
	assertAppError(t, err, "GC_002")

	// Certificates are scoped to their organization.
	_, err = s.certs.Validate(ctx, uuid.New(), "PROMO-1")
	assertAppError(t, err, "GC_001")
}

func TestConcurrency_PaymentsNeverOverdraw(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID, customerID := uuid.New(), uuid.New()

	const (
		balance = int64(1000)
		amount  = int64(150)
		workers = 20
	)

	res, err := s.wallets.TopUp(ctx, ports.TopUpRequest{
		OrganizationID: orgID, CustomerID: customerID, Amount: balance, PaymentMethod: "card",
	})
	require.NoError(t, err)

	var succeeded, insufficient atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.wallets.Pay(ctx, ports.PayRequest{
				OrganizationID: orgID, CustomerID: customerID, Amount: amount,
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperror.CodeOf(err) == "WAL_001":
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, balance/amount, succeeded.Load())
	assert.Equal(t, workers-balance/amount, insufficient.Load())

	wallet, err := s.wallets.GetOrCreateWallet(ctx, orgID, customerID)
	require.NoError(t, err)
	assert.Equal(t, balance%amount, wallet.Balance)
	s.assertLedgerConsistent(t, res.Transaction.WalletID)
}

func TestConcurrency_CertificateRedeemedOnce(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID := uuid.New()

	cert, err := s.certs.Issue(ctx, ports.IssueCertificateRequest{OrganizationID: orgID, Amount: 2000})
	require.NoError(t, err)

	customers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	const attemptsPerCustomer = 5

	var succeeded atomic.Int64
	var wg sync.WaitGroup
	for _, customerID := range customers {
		for i := 0; i < attemptsPerCustomer; i++ {
			wg.Add(1)
			go func(customerID uuid.UUID) {
				defer wg.Done()
				_, err := s.redeem.RedeemCertificate(ctx, ports.RedeemRequest{
					OrganizationID: orgID, CustomerID: customerID, Code: cert.Code,
				})
				if err == nil {
					succeeded.Add(1)
					return
				}
				if apperror.CodeOf(err) != "GC_005" {
					t.Errorf("unexpected error: %v", err)
				}
			}(customerID)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(1), succeeded.Load())

	var credited int64
	for _, customerID := range customers {
		w, err := s.wallets.GetOrCreateWallet(ctx, orgID, customerID)
		require.NoError(t, err)
		credited += w.Balance
		s.assertLedgerConsistent(t, w.ID)
	}
	assert.Equal(t, int64(2000), credited)
}

func TestConcurrency_FirstAccessCreatesOneWallet(t *testing.T) {
	s := newLedgerStack(t)
	ctx := context.Background()
	orgID, customerID := uuid.New(), uuid.New()

	ids := make(chan uuid.UUID, 16)
	var wg sync.WaitGroup
	for i := 0; i < cap(ids); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := s.wallets.GetOrCreateWallet(ctx, orgID, customerID)
			if err != nil {
				t.Errorf("get or create: %v", err)
				return
			}
			ids <- w.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uuid.UUID]bool)
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}
