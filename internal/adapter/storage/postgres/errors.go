package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the ledger reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeAdminShutdown        = "57P01"
)

// classify tags err with the matching ports storage sentinel while keeping
// the driver error in the chain. Unrecognised errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeSerializationFailure, pgErr.Code == codeDeadlockDetected, pgErr.Code == codeLockNotAvailable:
			return fmt.Errorf("%w: %w", ports.ErrConflict, err)
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%w: %w", ports.ErrDuplicate, err)
		case pgErr.Code == codeAdminShutdown, strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	}
	return err
}
