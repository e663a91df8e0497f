package service

import (
	"context"
	stderrors "errors"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"mealcard/internal/errors"
	"mealcard/internal/metrics"
	"mealcard/internal/repository"
)

const maxRetryDelay = time.Second

// UnitOptions bounds every atomic unit.
type UnitOptions struct {
	// Timeout is the deadline of a single attempt.
	Timeout time.Duration
	// MaxRetries is how many times a transient conflict is retried.
	MaxRetries int
	// BaseDelay is the first backoff ceiling; it doubles per retry.
	BaseDelay time.Duration
}

// DefaultUnitOptions returns the options used when none are configured.
func DefaultUnitOptions() UnitOptions {
	return UnitOptions{Timeout: 5 * time.Second, MaxRetries: 3, BaseDelay: 20 * time.Millisecond}
}

// unitRunner executes one business operation as one store transaction.
type unitRunner struct {
	store repository.Store
	opts  UnitOptions
	log   *zap.Logger
}

func newUnitRunner(store repository.Store, opts UnitOptions, log *zap.Logger) *unitRunner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultUnitOptions().Timeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &unitRunner{store: store, opts: opts, log: log}
}

// run executes fn in a transaction. Domain errors returned by fn roll the
// unit back and are returned unchanged; any other failure is retried while
// transient and otherwise surfaces as a storage or timeout error.
func (u *unitRunner) run(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Store) error) error {
	for attempt := 0; ; attempt++ {
		err := u.once(ctx, fn)
		if err == nil {
			return nil
		}
		var domainErr *errors.Error
		if stderrors.As(err, &domainErr) {
			return err
		}
		if !repository.IsRetryable(err) || attempt >= u.opts.MaxRetries {
			return errors.Storage(err)
		}

		delay := backoff(u.opts.BaseDelay, attempt)
		metrics.UnitRetries.WithLabelValues(op).Inc()
		u.log.Debug("retrying unit after conflict",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return errors.Storage(err)
		}
	}
}

func (u *unitRunner) once(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, u.opts.Timeout)
	defer cancel()
	return u.store.WithTransaction(ctx, fn)
}

// backoff returns a full-jitter delay in [0, base*2^attempt), capped.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	ceiling := base << uint(attempt)
	if ceiling <= 0 || ceiling > maxRetryDelay {
		ceiling = maxRetryDelay
	}
	return time.Duration(rand.Int63n(int64(ceiling)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// observe records the result of a finished operation in metrics and logs.
func observe(log *zap.Logger, op string, err error, fields ...zap.Field) {
	kind := errors.KindOf(err)
	outcome := "success"
	if kind != "" {
		outcome = strings.ToLower(string(kind))
	}
	metrics.ObserveOperation(op, outcome)

	fields = append(fields, zap.String("operation", op), zap.String("outcome", outcome))
	switch kind {
	case "":
		log.Info("ledger operation committed", fields...)
	case errors.KindStorage, errors.KindTimeout:
		log.Error("ledger operation aborted", append(fields, zap.Error(err))...)
	default:
		log.Info("ledger operation rejected", append(fields, zap.String("reason", err.Error()))...)
	}
}
