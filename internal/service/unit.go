package service

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// UnitPolicy controls how a database unit of work is executed.
type UnitPolicy struct {
	// MaxRetries is the number of re-executions after a concurrency conflict.
	MaxRetries int
	// Backoff is multiplied by the attempt number between re-executions.
	Backoff time.Duration
	// Timeout bounds one attempt. Zero means no bound.
	Timeout time.Duration
}

// unitRunner runs units of work inside one pgx.Tx each, detached from the
// caller's cancellation, re-running the whole unit on ports.ErrConflict.
type unitRunner struct {
	transactor ports.DBTransactor
	policy     UnitPolicy
	metrics    ports.MetricsRecorder
	log        zerolog.Logger
}

// run executes fn in a fresh transaction and commits it. fn's error aborts the
// attempt; the returned error is already mapped to an *apperror.AppError.
func (r *unitRunner) run(ctx context.Context, operation string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	base := context.WithoutCancel(ctx)

	var err error
	for attempt := 0; ; attempt++ {
		err = r.attempt(base, fn)
		if err == nil || !errors.Is(err, ports.ErrConflict) || attempt >= r.policy.MaxRetries {
			break
		}
		if r.metrics != nil {
			r.metrics.ObserveRetry(operation)
		}
		r.log.Warn().Err(err).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Msg("concurrency conflict, retrying unit")
		time.Sleep(r.policy.Backoff * time.Duration(attempt+1))
	}
	return storageError(err)
}

func (r *unitRunner) attempt(base context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := base, context.CancelFunc(func() {})
	if r.policy.Timeout > 0 {
		ctx, cancel = context.WithTimeout(base, r.policy.Timeout)
	}
	defer cancel()

	tx, err := r.transactor.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// storageError maps adapter errors onto the apperror taxonomy. AppErrors
// raised by business rules pass through untouched.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, ports.ErrConflict):
		return apperror.ErrConcurrencyConflict(err)
	case errors.Is(err, ports.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return apperror.ErrStorageUnavailable(err)
	}
	return apperror.InternalError(err)
}
