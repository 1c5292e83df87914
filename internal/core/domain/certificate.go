package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// CertificateStatus represents the lifecycle state of a gift certificate.
type CertificateStatus string

const (
	CertificateStatusActive        CertificateStatus = "active"
	CertificateStatusPartiallyUsed CertificateStatus = "partially_used"
	CertificateStatusFullyUsed     CertificateStatus = "fully_used"
	CertificateStatusExpired       CertificateStatus = "expired"
	CertificateStatusCancelled     CertificateStatus = "cancelled"
	CertificateStatusSuspended     CertificateStatus = "suspended"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s CertificateStatus) IsTerminal() bool {
	return s == CertificateStatusFullyUsed || s == CertificateStatusExpired || s == CertificateStatusCancelled
}

// RedeemBlocker names the reason a certificate cannot be redeemed right now.
// The zero value means redeemable.
type RedeemBlocker string

const (
	RedeemOK            RedeemBlocker = ""
	RedeemFullyUsed     RedeemBlocker = "fully_used"
	RedeemNotRedeemable RedeemBlocker = "not_redeemable"
	RedeemExhausted     RedeemBlocker = "exhausted"
	RedeemExpired       RedeemBlocker = "expired"
	RedeemNotYetValid   RedeemBlocker = "not_yet_valid"
)

// GiftCertificate is a pre-funded code-redeemable instrument.
type GiftCertificate struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	Code           string            `json:"code"`
	OriginalAmount int64             `json:"original_amount"`
	CurrentBalance int64             `json:"current_balance"`
	Status         CertificateStatus `json:"status"`
	ValidFrom      time.Time         `json:"valid_from"`
	ValidUntil     *time.Time        `json:"valid_until,omitempty"`
	RecipientEmail *string           `json:"recipient_email,omitempty"`
	RecipientPhone *string           `json:"recipient_phone,omitempty"`
	IssuedAt       time.Time         `json:"issued_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CanTransitionTo reports whether the certificate may move to next.
// Transitions are forward-only; terminal states never change.
func (c *GiftCertificate) CanTransitionTo(next CertificateStatus) bool {
	if c.Status == next || c.Status.IsTerminal() {
		return false
	}
	switch next {
	case CertificateStatusActive:
		return c.Status == CertificateStatusSuspended
	case CertificateStatusPartiallyUsed:
		return c.Status == CertificateStatusActive
	case CertificateStatusSuspended:
		return c.Status == CertificateStatusActive || c.Status == CertificateStatusPartiallyUsed
	case CertificateStatusFullyUsed, CertificateStatusExpired, CertificateStatusCancelled:
		return true
	}
	return false
}

// RedeemBlocker checks every redemption precondition at instant now.
func (c *GiftCertificate) RedeemBlocker(now time.Time) RedeemBlocker {
	switch c.Status {
	case CertificateStatusActive, CertificateStatusPartiallyUsed:
	case CertificateStatusFullyUsed:
		return RedeemFullyUsed
	case CertificateStatusExpired:
		return RedeemExpired
	default:
		return RedeemNotRedeemable
	}
	if c.CurrentBalance <= 0 {
		return RedeemExhausted
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return RedeemExpired
	}
	if c.ValidFrom.After(now) {
		return RedeemNotYetValid
	}
	return RedeemOK
}

// CertificateCodeKey is the form codes are matched in: upper-cased, with
// dashes and whitespace removed, so "gc 1234-5678" finds "GC-1234-5678".
// Storage keeps the issued spelling for display.
func CertificateCodeKey(code string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code))
}
