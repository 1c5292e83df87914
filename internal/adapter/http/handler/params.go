package handler

import (
	"strconv"

	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// identity returns the caller's subject and organization, writing an
// AUTH_003 response when the token claims are missing.
func identity(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	sub, org, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, uuid.Nil, false
	}
	return sub, org, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation(name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func parseAmount(c *gin.Context, s string) (int64, bool) {
	amount, err := domain.ParseAmount(s)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return 0, false
	}
	return amount, true
}

// page reads the limit and offset query values, clamped to the bounds the
// reporting queries apply.
func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return ports.ClampPage(limit, offset)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}
