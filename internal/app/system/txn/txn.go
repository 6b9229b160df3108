// Package txn runs allocation work inside MongoDB multi-document transactions.
//
// A Runner retries transient transaction failures a bounded number of times.
// When the deployment cannot run transactions (standalone mongod) it switches
// permanently to running the work directly, in which case callers must rely on
// single-document atomic operations and compensate on their own. Callers can
// tell the two apart with InTransaction.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// ErrRetriesExhausted is returned when every attempt ended in a transient error.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// DefaultMaxAttempts bounds how often a unit of work is re-entered.
const DefaultMaxAttempts = 3

const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"
	codeWriteConflict  = 112
)

const (
	modeUnknown int32 = iota
	modeTransactions
	modeDirect
)

// Runner executes units of work transactionally.
type Runner struct {
	client      *mongo.Client
	maxAttempts int
	log         *zap.Logger
	onRetry     func(name string, attempt int, err error)
	txnOpts     *options.TransactionOptions
	mode        atomic.Int32
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxAttempts sets the attempt budget. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxAttempts = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRetryHook is called after every transient failure that will be retried
// or that used up the last attempt.
func WithRetryHook(fn func(name string, attempt int, err error)) Option {
	return func(r *Runner) { r.onRetry = fn }
}

// WithoutTransactions starts the runner in direct mode, for deployments known
// to lack transactions.
func WithoutTransactions() Option {
	return func(r *Runner) { r.mode.Store(modeDirect) }
}

// New creates a Runner for client.
func New(client *mongo.Client, opts ...Option) *Runner {
	r := &Runner{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		log:         zap.NewNop(),
		txnOpts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Direct reports whether the runner has fallen back to non-transactional mode.
func (r *Runner) Direct() bool { return r.mode.Load() == modeDirect }

// Do runs fn, inside a transaction when the deployment supports it.
// fn may be invoked more than once and must derive all state from its reads.
// The context handed to fn must be used for every database call.
func (r *Runner) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.once(ctx, name, fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		last = err
		if r.onRetry != nil {
			r.onRetry(name, attempt, err)
		}
		r.log.Debug("transient transaction failure",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	return fmt.Errorf("%s: %w: %w", name, ErrRetriesExhausted, last)
}

func (r *Runner) once(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if r.Direct() {
		return fn(ctx)
	}
	err := r.inTransaction(ctx, fn)
	if err != nil && IsNotSupported(err) {
		if r.mode.Swap(modeDirect) != modeDirect {
			r.log.Warn("transactions not supported by this deployment; using single-document atomic operations",
				zap.String("op", name),
				zap.Error(err))
		}
		return fn(ctx)
	}
	if err == nil {
		r.mode.CompareAndSwap(modeUnknown, modeTransactions)
	}
	return err
}

func (r *Runner) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(r.txnOpts); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(context.WithoutCancel(sc))
			return err
		}
		return r.commit(sc)
	})
}

// commit retries commits whose outcome is unknown; the server makes a repeated
// commit of the same transaction idempotent.
func (r *Runner) commit(sc mongo.SessionContext) error {
	var err error
	for i := 0; i < r.maxAttempts; i++ {
		err = sc.CommitTransaction(sc)
		if err == nil {
			return nil
		}
		var se mongo.ServerError
		if !errors.As(err, &se) || !se.HasErrorLabel(labelUnknownCommit) {
			return err
		}
	}
	return err
}

// InTransaction reports whether ctx carries a transaction started by a Runner.
func InTransaction(ctx context.Context) bool {
	return mongo.SessionFromContext(ctx) != nil
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err so the runner re-enters the unit of work.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsTransient reports whether err is worth another attempt: a write conflict,
// a transient transaction error, or an error marked with Retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel(labelTransient) || se.HasErrorCode(codeWriteConflict)
	}
	return false
}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions (standalone mongod, old server).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	if !strings.Contains(msg, "transaction") {
		return false
	}
	for _, kw := range []string{"replica set", "not supported", "session", "illegal operation"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
