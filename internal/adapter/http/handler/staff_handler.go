package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// StaffHandler serves organization staff acting on customer wallets.
// The staff member id is recorded on every ledger entry they create.
type StaffHandler struct {
	walletSvc    ports.WalletService
	ledgerSvc    ports.LedgerService
	redeemSvc    ports.RedemptionService
	reportingSvc ports.ReportingService
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(walletSvc ports.WalletService, ledgerSvc ports.LedgerService, redeemSvc ports.RedemptionService, reportingSvc ports.ReportingService) *StaffHandler {
	return &StaffHandler{
		walletSvc:    walletSvc,
		ledgerSvc:    ledgerSvc,
		redeemSvc:    redeemSvc,
		reportingSvc: reportingSvc,
	}
}

// ListWallets handles GET /api/v1/org/wallets?status=&limit=&offset=.
func (h *StaffHandler) ListWallets(c *gin.Context) {
	_, orgID, ok := identity(c)
	if !ok {
		return
	}

	params := ports.WalletListParams{OrganizationID: orgID}
	params.Limit, params.Offset = page(c)
	if s := c.Query("status"); s != "" {
		status := domain.WalletStatus(s)
		params.Status = &status
	}

	wallets, total, err := h.reportingSvc.ListWallets(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, dto.NewWalletResponse(&wallets[i]))
	}
	response.OK(c, dto.ListResponse[dto.WalletResponse]{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}

// GetStats handles GET /api/v1/org/wallets/stats.
func (h *StaffHandler) GetStats(c *gin.Context) {
	_, orgID, ok := identity(c)
	if !ok {
		return
	}

	stats, err := h.reportingSvc.GetOrganizationStats(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrganizationStatsResponse(stats))
}

// GetCustomerWallet handles GET /api/v1/org/customers/:customer_id/wallet.
func (h *StaffHandler) GetCustomerWallet(c *gin.Context) {
	_, orgID, ok := identity(c)
	if !ok {
		return
	}
	customerID, ok := uuidParam(c, "customer_id")
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetOrCreateWallet(c.Request.Context(), orgID, customerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// TopUp handles POST /api/v1/org/customers/:customer_id/wallet/topup.
func (h *StaffHandler) TopUp(c *gin.Context) {
	staffID, orgID, ok := identity(c)
	if !ok {
		return
	}
	customerID, ok := uuidParam(c, "customer_id")
	if !ok {
		return
	}
	topUp(c, h.walletSvc, orgID, customerID, &staffID)
}

// Pay handles POST /api/v1/org/customers/:customer_id/wallet/pay.
func (h *StaffHandler) Pay(c *gin.Context) {
	staffID, orgID, ok := identity(c)
	if !ok {
		return
	}
	customerID, ok := uuidParam(c, "customer_id")
	if !ok {
		return
	}
	pay(c, h.walletSvc, orgID, customerID, &staffID)
}

// Redeem handles POST /api/v1/org/customers/:customer_id/wallet/redeem.
func (h *StaffHandler) Redeem(c *gin.Context) {
	staffID, orgID, ok := identity(c)
	if !ok {
		return
	}
	customerID, ok := uuidParam(c, "customer_id")
	if !ok {
		return
	}
	redeem(c, h.redeemSvc, orgID, customerID, &staffID)
}

// ApplyTransaction handles POST /api/v1/org/wallets/:wallet_id/transactions.
func (h *StaffHandler) ApplyTransaction(c *gin.Context) {
	staffID, orgID, ok := identity(c)
	if !ok {
		return
	}
	walletID, ok := uuidParam(c, "wallet_id")
	if !ok {
		return
	}

	var req dto.ApplyTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	txType := domain.TransactionType(req.Type)
	if !txType.Valid() {
		response.Error(c, apperror.ErrInvalidTransactionType())
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	txn, err := h.ledgerSvc.ApplyTransaction(c.Request.Context(), ports.ApplyTransactionRequest{
		WalletID:       walletID,
		OrganizationID: &orgID,
		Type:           txType,
		Amount:         amount,
		Description:    req.Description,
		ReferenceType:  req.ReferenceType,
		ReferenceID:    req.ReferenceID,
		Metadata:       req.Metadata,
		StaffID:        &staffID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewFlowResponse(&ports.FlowResult{
		Transaction: txn,
		NewBalance:  txn.BalanceAfter,
	}))
}

// ListTransactions handles GET /api/v1/org/wallets/:wallet_id/transactions.
func (h *StaffHandler) ListTransactions(c *gin.Context) {
	_, orgID, ok := identity(c)
	if !ok {
		return
	}
	walletID, ok := uuidParam(c, "wallet_id")
	if !ok {
		return
	}
	listTransactions(c, h.reportingSvc, ports.TransactionListParams{
		WalletID:       walletID,
		OrganizationID: &orgID,
	})
}

// SetWalletStatus handles PUT /api/v1/org/wallets/:wallet_id/status.
func (h *StaffHandler) SetWalletStatus(c *gin.Context) {
	staffID, orgID, ok := identity(c)
	if !ok {
		return
	}
	walletID, ok := uuidParam(c, "wallet_id")
	if !ok {
		return
	}

	var req dto.SetWalletStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.SetStatus(c.Request.Context(), ports.SetWalletStatusRequest{
		OrganizationID: orgID,
		WalletID:       walletID,
		Status:         domain.WalletStatus(req.Status),
		StaffID:        staffID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}
