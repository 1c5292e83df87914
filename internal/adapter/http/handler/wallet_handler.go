package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler serves the customer's own wallet. Organization and customer
// come from the token claims.
type WalletHandler struct {
	walletSvc    ports.WalletService
	redeemSvc    ports.RedemptionService
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, redeemSvc ports.RedemptionService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{
		walletSvc:    walletSvc,
		redeemSvc:    redeemSvc,
		reportingSvc: reportingSvc,
	}
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	customerID, orgID, ok := identity(c)
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

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	customerID, orgID, ok := identity(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetOrCreateWallet(c.Request.Context(), orgID, customerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	listTransactions(c, h.reportingSvc, ports.TransactionListParams{
		WalletID:       wallet.ID,
		OrganizationID: &orgID,
	})
}

// TopUp handles POST /api/v1/wallet/topup.
func (h *WalletHandler) TopUp(c *gin.Context) {
	customerID, orgID, ok := identity(c)
	if !ok {
		return
	}
	topUp(c, h.walletSvc, orgID, customerID, nil)
}

// Pay handles POST /api/v1/wallet/pay.
func (h *WalletHandler) Pay(c *gin.Context) {
	customerID, orgID, ok := identity(c)
	if !ok {
		return
	}
	pay(c, h.walletSvc, orgID, customerID, nil)
}

// Redeem handles POST /api/v1/wallet/redeem.
func (h *WalletHandler) Redeem(c *gin.Context) {
	customerID, orgID, ok := identity(c)
	if !ok {
		return
	}
	redeem(c, h.redeemSvc, orgID, customerID, nil)
}

// The flows below are shared by the customer and staff routes. A nil
// staffID means the customer acted on their own wallet.

func topUp(c *gin.Context, svc ports.WalletService, orgID, customerID uuid.UUID, staffID *uuid.UUID) {
	var req dto.TopUpRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	result, err := svc.TopUp(c.Request.Context(), ports.TopUpRequest{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Amount:         amount,
		PaymentMethod:  req.PaymentMethod,
		ReferenceID:    req.ReferenceID,
		Metadata:       req.Metadata,
		StaffID:        staffID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewFlowResponse(result))
}

func pay(c *gin.Context, svc ports.WalletService, orgID, customerID uuid.UUID, staffID *uuid.UUID) {
	var req dto.PayRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	result, err := svc.Pay(c.Request.Context(), ports.PayRequest{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Amount:         amount,
		Description:    req.Description,
		ReferenceType:  req.ReferenceType,
		ReferenceID:    req.ReferenceID,
		Metadata:       req.Metadata,
		StaffID:        staffID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewFlowResponse(result))
}

func redeem(c *gin.Context, svc ports.RedemptionService, orgID, customerID uuid.UUID, staffID *uuid.UUID) {
	var req dto.RedeemRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := svc.RedeemCertificate(c.Request.Context(), ports.RedeemRequest{
		OrganizationID: orgID,
		CustomerID:     customerID,
		Code:           req.Code,
		StaffID:        staffID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewFlowResponse(result))
}

func listTransactions(c *gin.Context, svc ports.ReportingService, params ports.TransactionListParams) {
	params.Limit, params.Offset = page(c)

	txns, total, err := svc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.NewTransactionResponse(&txns[i]))
	}
	response.OK(c, dto.ListResponse[dto.TransactionResponse]{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}
