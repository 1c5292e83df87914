package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// RedemptionServiceImpl implements ports.RedemptionService. A certificate is
// consumed in full: its whole remaining balance is credited in one entry.
type RedemptionServiceImpl struct {
	certRepo ports.CertificateRepository
	wallets  ports.WalletService
	ledger   *LedgerServiceImpl
	metrics  ports.MetricsRecorder
	log      zerolog.Logger
}

// NewRedemptionService creates a new RedemptionServiceImpl.
func NewRedemptionService(
	certRepo ports.CertificateRepository,
	wallets ports.WalletService,
	ledger *LedgerServiceImpl,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) *RedemptionServiceImpl {
	return &RedemptionServiceImpl{
		certRepo: certRepo,
		wallets:  wallets,
		ledger:   ledger,
		metrics:  metrics,
		log:      log,
	}
}

// RedeemCertificate credits the certificate's remaining balance to the
// customer's wallet and marks the certificate fully used, atomically.
func (s *RedemptionServiceImpl) RedeemCertificate(ctx context.Context, req ports.RedeemRequest) (*ports.FlowResult, error) {
	code := NormalizeCertificateCode(req.Code)
	if domain.CertificateCodeKey(code) == "" {
		return nil, apperror.ErrCertificateNotFound()
	}

	wallet, err := s.wallets.GetOrCreateWallet(ctx, req.OrganizationID, req.CustomerID)
	if err != nil {
		s.observe(err)
		return nil, err
	}

	var entry *appliedEntry
	err = s.ledger.units.run(ctx, "redeem_certificate", func(ctx context.Context, tx pgx.Tx) error {
		cert, err := s.certRepo.GetByCodeForUpdate(ctx, tx, req.OrganizationID, code)
		if err != nil {
			return fmt.Errorf("lock certificate: %w", err)
		}
		if cert == nil {
			return apperror.ErrCertificateNotFound()
		}
		if err := redeemBlockerError(cert.RedeemBlocker(time.Now().UTC())); err != nil {
			return err
		}

		refType := domain.ReferenceTypeGiftCertificate
		refID := cert.ID.String()
		entry, err = s.ledger.applyInTx(ctx, tx, ports.ApplyTransactionRequest{
			WalletID:       wallet.ID,
			OrganizationID: &req.OrganizationID,
			Type:           domain.TransactionTypeGiftCertificateRedeem,
			Amount:         cert.CurrentBalance,
			Description:    "Gift certificate " + cert.Code,
			ReferenceType:  &refType,
			ReferenceID:    &refID,
			Metadata: domain.Metadata{
				"gift_certificate_code": cert.Code,
				"original_amount":       cert.OriginalAmount,
				"redeemed_amount":       cert.CurrentBalance,
			},
			StaffID: req.StaffID,
		})
		if err != nil {
			return err
		}
		if entry.replayed {
			return apperror.ErrCertificateAlreadyRedeemed()
		}

		if err := s.certRepo.UpdateState(ctx, tx, cert.ID, 0, domain.CertificateStatusFullyUsed); err != nil {
			return fmt.Errorf("update certificate: %w", err)
		}
		return nil
	})
	if err != nil {
		s.observe(err)
		return nil, err
	}

	s.ledger.afterCommit(ctx, entry)
	s.observe(nil)

	s.log.Info().
		Str("code", code).
		Str("wallet_id", wallet.ID.String()).
		Str("tx_id", entry.txn.ID.String()).
		Int64("amount", entry.txn.Amount).
		Msg("gift certificate redeemed")

	return &ports.FlowResult{Transaction: entry.txn, NewBalance: entry.txn.BalanceAfter}, nil
}

func (s *RedemptionServiceImpl) observe(err error) {
	if s.metrics == nil {
		return
	}
	if err == nil {
		s.metrics.ObserveRedemption(outcomeApplied)
		return
	}
	outcome := apperror.CodeOf(err)
	if outcome == "" {
		outcome = "error"
	}
	s.metrics.ObserveRedemption(outcome)
}

// redeemBlockerError maps a domain redemption blocker onto its AppError.
func redeemBlockerError(b domain.RedeemBlocker) error {
	switch b {
	case domain.RedeemOK:
		return nil
	case domain.RedeemFullyUsed:
		return apperror.ErrCertificateAlreadyRedeemed()
	case domain.RedeemExhausted:
		return apperror.ErrCertificateExhausted()
	case domain.RedeemExpired:
		return apperror.ErrCertificateExpired()
	case domain.RedeemNotYetValid:
		return apperror.ErrCertificateNotYetValid()
	default:
		return apperror.ErrCertificateNotRedeemable()
	}
}

// NormalizeCertificateCode trims and upper-cases a user-entered code. It is
// the spelling stored on issue; lookups compare domain.CertificateCodeKey.
func NormalizeCertificateCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
