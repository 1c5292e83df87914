package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so errors.Is(err, apperror.ErrWalletNotFound()) works
// across separately constructed values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether the caller may safely retry the same request.
// Precondition failures never succeed on retry; infrastructure failures might.
func (e *AppError) Retryable() bool {
	return e.HTTPStatus == http.StatusServiceUnavailable
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the AppError code carried by err, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Amounts (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

// ErrReservedReference rejects a reference type owned by a built-in flow.
func ErrReservedReference() *AppError {
	return New("PAY_002", "Reference type is reserved", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Wallet ledger (WAL) ----

func ErrInsufficientBalance() *AppError {
	return New("WAL_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWalletNotFound() *AppError {
	return New("WAL_002", "Wallet not found", http.StatusNotFound)
}

func ErrWalletSuspended() *AppError {
	return New("WAL_003", "Wallet is suspended", http.StatusForbidden)
}

func ErrWalletClosed() *AppError {
	return New("WAL_004", "Wallet is closed", http.StatusForbidden)
}

func ErrInvalidTransactionType() *AppError {
	return New("WAL_005", "Invalid transaction type", http.StatusBadRequest)
}

func ErrInvalidWalletStatus() *AppError {
	return New("WAL_006", "Invalid wallet status transition", http.StatusBadRequest)
}

// ---- Gift certificates (GC) ----

func ErrCertificateNotFound() *AppError {
	return New("GC_001", "Gift certificate not found", http.StatusNotFound)
}

func ErrCertificateNotRedeemable() *AppError {
	return New("GC_002", "Gift certificate cannot be redeemed", http.StatusConflict)
}

func ErrCertificateExpired() *AppError {
	return New("GC_003", "Gift certificate has expired", http.StatusGone)
}

func ErrCertificateExhausted() *AppError {
	return New("GC_004", "Gift certificate has no remaining balance", http.StatusConflict)
}

func ErrCertificateAlreadyRedeemed() *AppError {
	return New("GC_005", "Gift certificate has already been redeemed", http.StatusConflict)
}

func ErrCertificateNotYetValid() *AppError {
	return New("GC_006", "Gift certificate is not yet valid", http.StatusConflict)
}

func ErrCertificateCodeExists() *AppError {
	return New("GC_007", "Gift certificate code already exists", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Insufficient permissions", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// ErrConcurrencyConflict is returned once internal retries of a ledger unit
// are exhausted (serialization failure, deadlock, lock timeout).
func ErrConcurrencyConflict(err error) *AppError {
	return Wrap("SYS_002", "Concurrent update conflict, please retry", http.StatusServiceUnavailable, err)
}

func ErrStorageUnavailable(err error) *AppError {
	return Wrap("SYS_004", "Storage unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
