package dto

import (
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
)

// Amounts cross the API as decimal strings ("50.00") and are stored in
// minor units. Parse them with domain.ParseAmount after binding.

// TopUpRequest is the request body for a wallet top-up.
type TopUpRequest struct {
	Amount        string          `json:"amount" binding:"required,money"`
	PaymentMethod string          `json:"payment_method" binding:"required,max=50,safe_id"`
	ReferenceID   *string         `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
	Metadata      domain.Metadata `json:"metadata,omitempty"`
}

// PayRequest is the request body for a wallet payment.
type PayRequest struct {
	Amount        string          `json:"amount" binding:"required,money"`
	Description   string          `json:"description" binding:"max=255"`
	ReferenceType *string         `json:"reference_type,omitempty" binding:"omitempty,max=50,safe_id,unreserved_ref"`
	ReferenceID   *string         `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
	Metadata      domain.Metadata `json:"metadata,omitempty"`
}

// RedeemRequest is the request body for certificate redemption.
type RedeemRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// ApplyTransactionRequest is the request body for a staff ledger entry.
type ApplyTransactionRequest struct {
	Type          string          `json:"type" binding:"required"`
	Amount        string          `json:"amount" binding:"required,money"`
	Description   string          `json:"description" binding:"max=255"`
	ReferenceType *string         `json:"reference_type,omitempty" binding:"omitempty,max=50,safe_id"`
	ReferenceID   *string         `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
	Metadata      domain.Metadata `json:"metadata,omitempty"`
}

// SetWalletStatusRequest is the request body for a wallet status change.
type SetWalletStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended closed"`
}

// IssueCertificateRequest is the request body for issuing a certificate.
// An empty code lets the server generate one.
type IssueCertificateRequest struct {
	Code           string     `json:"code,omitempty" binding:"omitempty,max=64,safe_id"`
	Amount         string     `json:"amount" binding:"required,money"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	RecipientEmail *string    `json:"recipient_email,omitempty" binding:"omitempty,email"`
	RecipientPhone *string    `json:"recipient_phone,omitempty" binding:"omitempty,e164"`
}

// WalletResponse is the public view of a wallet.
type WalletResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	CustomerID     string `json:"customer_id"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// TransactionResponse is the public view of a ledger entry.
type TransactionResponse struct {
	ID                 string          `json:"id"`
	WalletID           string          `json:"wallet_id"`
	Type               string          `json:"type"`
	Amount             string          `json:"amount"`
	Description        string          `json:"description"`
	ReferenceType      *string         `json:"reference_type,omitempty"`
	ReferenceID        *string         `json:"reference_id,omitempty"`
	BalanceBefore      string          `json:"balance_before"`
	BalanceAfter       string          `json:"balance_after"`
	Metadata           domain.Metadata `json:"metadata,omitempty"`
	ProcessedByStaffID *string         `json:"processed_by_staff_id,omitempty"`
	CreatedAt          string          `json:"created_at"`
}

// FlowResponse is returned by top-up, payment and redemption.
type FlowResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	NewBalance  string              `json:"new_balance"`
}

// CertificateResponse is the public view of a gift certificate.
type CertificateResponse struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	OriginalAmount string  `json:"original_amount"`
	CurrentBalance string  `json:"current_balance"`
	Status         string  `json:"status"`
	ValidFrom      string  `json:"valid_from"`
	ValidUntil     *string `json:"valid_until,omitempty"`
	IssuedAt       string  `json:"issued_at"`
}

// CertificateValidationResponse is the read-only redeemability verdict.
type CertificateValidationResponse struct {
	Certificate CertificateResponse `json:"certificate"`
	CanRedeem   bool                `json:"can_redeem"`
	Reason      string              `json:"reason,omitempty"`
}

// OrganizationStatsResponse summarises an organization's wallets.
type OrganizationStatsResponse struct {
	TotalWallets      int64  `json:"total_wallets"`
	ActiveWallets     int64  `json:"active_wallets"`
	TotalBalance      string `json:"total_balance"`
	TransactionsToday int64  `json:"transactions_today"`
	AmountToday       string `json:"amount_today"`
}

// ListResponse wraps one page of items.
type ListResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewWalletResponse renders w.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:             w.ID.String(),
		OrganizationID: w.OrganizationID.String(),
		CustomerID:     w.CustomerID.String(),
		Balance:        domain.FormatAmount(w.Balance),
		Currency:       w.Currency,
		Status:         string(w.Status),
		CreatedAt:      formatTime(w.CreatedAt),
		UpdatedAt:      formatTime(w.UpdatedAt),
	}
}

// NewTransactionResponse renders t.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:            t.ID.String(),
		WalletID:      t.WalletID.String(),
		Type:          string(t.Type),
		Amount:        domain.FormatAmount(t.Amount),
		Description:   t.Description,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		BalanceBefore: domain.FormatAmount(t.BalanceBefore),
		BalanceAfter:  domain.FormatAmount(t.BalanceAfter),
		Metadata:      t.Metadata,
		CreatedAt:     formatTime(t.CreatedAt),
	}
	if t.ProcessedByStaffID != nil {
		s := t.ProcessedByStaffID.String()
		resp.ProcessedByStaffID = &s
	}
	return resp
}

// NewFlowResponse renders a flow result.
func NewFlowResponse(r *ports.FlowResult) FlowResponse {
	return FlowResponse{
		Transaction: NewTransactionResponse(r.Transaction),
		NewBalance:  domain.FormatAmount(r.NewBalance),
	}
}

// NewCertificateResponse renders c. Recipient contact details are not echoed.
func NewCertificateResponse(c *domain.GiftCertificate) CertificateResponse {
	resp := CertificateResponse{
		ID:             c.ID.String(),
		Code:           c.Code,
		OriginalAmount: domain.FormatAmount(c.OriginalAmount),
		CurrentBalance: domain.FormatAmount(c.CurrentBalance),
		Status:         string(c.Status),
		ValidFrom:      formatTime(c.ValidFrom),
		IssuedAt:       formatTime(c.IssuedAt),
	}
	if c.ValidUntil != nil {
		s := formatTime(*c.ValidUntil)
		resp.ValidUntil = &s
	}
	return resp
}

// NewOrganizationStatsResponse renders s.
func NewOrganizationStatsResponse(s *ports.OrganizationStats) OrganizationStatsResponse {
	return OrganizationStatsResponse{
		TotalWallets:      s.TotalWallets,
		ActiveWallets:     s.ActiveWallets,
		TotalBalance:      domain.FormatAmount(s.TotalBalance),
		TransactionsToday: s.TransactionsToday,
		AmountToday:       domain.FormatAmount(s.AmountToday),
	}
}
