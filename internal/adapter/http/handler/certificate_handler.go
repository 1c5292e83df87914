package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// CertificateHandler serves staff gift certificate management.
type CertificateHandler struct {
	certSvc ports.CertificateService
}

// NewCertificateHandler creates a new CertificateHandler.
func NewCertificateHandler(certSvc ports.CertificateService) *CertificateHandler {
	return &CertificateHandler{certSvc: certSvc}
}

// Issue handles POST /api/v1/org/certificates.
func (h *CertificateHandler) Issue(c *gin.Context) {
	_, orgID, ok := identity(c)
	if !ok {
		return
	}

	var req dto.IssueCertificateRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	cert, err := h.certSvc.Issue(c.Request.Context(), ports.IssueCertificateRequest{
		OrganizationID: orgID,
		Code:           req.Code,
		Amount:         amount,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewCertificateResponse(cert))
}

// Validate handles GET /api/v1/org/certificates/:code/validate.
func (h *CertificateHandler) Validate(c *gin.Context) {
	_, orgID, ok := identity(c)
	if !ok {
		return
	}

	v, err := h.certSvc.Validate(c.Request.Context(), orgID, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CertificateValidationResponse{
		Certificate: dto.NewCertificateResponse(v.Certificate),
		CanRedeem:   v.CanRedeem,
		Reason:      string(v.Reason),
	})
}

// Cancel handles POST /api/v1/org/certificates/:code/cancel.
func (h *CertificateHandler) Cancel(c *gin.Context) {
	_, orgID, ok := identity(c)
	if !ok {
		return
	}

	cert, err := h.certSvc.Cancel(c.Request.Context(), orgID, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewCertificateResponse(cert))
}
