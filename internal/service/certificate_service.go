package service

import (
	"context"
	"crypto/rand"
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

// codeAlphabet omits 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 5

// CertificateServiceImpl implements ports.CertificateService.
type CertificateServiceImpl struct {
	certRepo ports.CertificateRepository
	units    *unitRunner
	log      zerolog.Logger
}

// NewCertificateService creates a new CertificateServiceImpl.
func NewCertificateService(certRepo ports.CertificateRepository, ledger *LedgerServiceImpl, log zerolog.Logger) *CertificateServiceImpl {
	return &CertificateServiceImpl{
		certRepo: certRepo,
		units:    ledger.units,
		log:      log,
	}
}

// Issue creates an active certificate. An empty code is generated.
func (s *CertificateServiceImpl) Issue(ctx context.Context, req ports.IssueCertificateRequest) (*domain.GiftCertificate, error) {
	if req.Amount <= 0 || req.Amount > domain.MaxAmount {
		return nil, apperror.ErrInvalidAmount()
	}

	now := time.Now().UTC()
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = req.ValidFrom.UTC()
	}
	if req.ValidUntil != nil && !req.ValidUntil.After(validFrom) {
		return nil, apperror.Validation("valid_until must be after valid_from")
	}

	cert := &domain.GiftCertificate{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		OriginalAmount: req.Amount,
		CurrentBalance: req.Amount,
		Status:         domain.CertificateStatusActive,
		ValidFrom:      validFrom,
		ValidUntil:     req.ValidUntil,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
		IssuedAt:       now,
		UpdatedAt:      now,
	}

	explicit := NormalizeCertificateCode(req.Code)
	if explicit != "" && domain.CertificateCodeKey(explicit) == "" {
		return nil, apperror.Validation("code must contain letters or digits")
	}
	for attempt := 1; ; attempt++ {
		cert.Code = explicit
		if cert.Code == "" {
			code, err := GenerateCertificateCode()
			if err != nil {
				return nil, apperror.InternalError(err)
			}
			cert.Code = code
		}

		err := s.certRepo.Create(ctx, cert)
		if err == nil {
			break
		}
		if !errors.Is(err, ports.ErrDuplicate) {
			return nil, storageError(err)
		}
		if explicit != "" || attempt >= maxCodeAttempts {
			return nil, apperror.ErrCertificateCodeExists()
		}
	}

	s.log.Info().
		Str("certificate_id", cert.ID.String()).
		Str("organization_id", cert.OrganizationID.String()).
		Int64("amount", cert.OriginalAmount).
		Msg("gift certificate issued")

	return cert, nil
}

// Validate reports whether the certificate could be redeemed right now.
// It takes no lock and changes nothing.
func (s *CertificateServiceImpl) Validate(ctx context.Context, orgID uuid.UUID, code string) (*ports.CertificateValidation, error) {
	cert, err := s.certRepo.GetByCode(ctx, orgID, NormalizeCertificateCode(code))
	if err != nil {
		return nil, storageError(fmt.Errorf("get certificate: %w", err))
	}
	if cert == nil {
		return nil, apperror.ErrCertificateNotFound()
	}

	blocker := cert.RedeemBlocker(time.Now().UTC())
	return &ports.CertificateValidation{
		Certificate: cert,
		CanRedeem:   blocker == domain.RedeemOK,
		Reason:      blocker,
	}, nil
}

// Cancel moves a non-terminal certificate to cancelled.
func (s *CertificateServiceImpl) Cancel(ctx context.Context, orgID uuid.UUID, code string) (*domain.GiftCertificate, error) {
	code = NormalizeCertificateCode(code)

	var cert *domain.GiftCertificate
	err := s.units.run(ctx, "cancel_certificate", func(ctx context.Context, tx pgx.Tx) error {
		c, err := s.certRepo.GetByCodeForUpdate(ctx, tx, orgID, code)
		if err != nil {
			return fmt.Errorf("lock certificate: %w", err)
		}
		if c == nil {
			return apperror.ErrCertificateNotFound()
		}
		if !c.CanTransitionTo(domain.CertificateStatusCancelled) {
			if c.Status == domain.CertificateStatusFullyUsed {
				return apperror.ErrCertificateAlreadyRedeemed()
			}
			return apperror.ErrCertificateNotRedeemable()
		}
		if err := s.certRepo.UpdateState(ctx, tx, c.ID, c.CurrentBalance, domain.CertificateStatusCancelled); err != nil {
			return fmt.Errorf("update certificate: %w", err)
		}
		c.Status = domain.CertificateStatusCancelled
		c.UpdatedAt = time.Now().UTC()
		cert = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("certificate_id", cert.ID.String()).
		Msg("gift certificate cancelled")

	return cert, nil
}

// GenerateCertificateCode returns a random code shaped GC-XXXX-XXXX.
func GenerateCertificateCode() (string, error) {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate certificate code: %w", err)
	}
	out := make([]byte, 0, 12)
	out = append(out, "GC-"...)
	for i, b := range raw {
		if i == 4 {
			out = append(out, '-')
		}
		out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return string(out), nil
}
