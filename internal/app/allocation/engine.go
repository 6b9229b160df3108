// Package allocation decides who gets a capacity-limited topic.
//
// Every decision runs as one unit of work on the txn runner and always writes
// the topic document, so two decisions on the same topic conflict and one is
// retried. Decisions on different topics never touch the same documents.
// Confirmed, waitlisted and already-signed-up are results, not errors.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	signupstore "github.com/dalemusser/stratatopics/internal/app/store/signups"
	teamstore "github.com/dalemusser/stratatopics/internal/app/store/teams"
	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"github.com/dalemusser/stratatopics/internal/app/system/txn"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// TeamDirectory answers whether a team exists.
type TeamDirectory interface {
	TeamExists(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Metrics receives allocation counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordSignup(outcome string)
	RecordDrop(status string, promoted bool)
	RecordPromotion(source string)
	RecordPurge(deleted int64)
	RecordRetry(op string)
	RecordInvariantViolation(invariant string)
	ObserveDuration(op string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordSignup(string)                   {}
func (nopMetrics) RecordDrop(string, bool)               {}
func (nopMetrics) RecordPromotion(string)                {}
func (nopMetrics) RecordPurge(int64)                     {}
func (nopMetrics) RecordRetry(string)                    {}
func (nopMetrics) RecordInvariantViolation(string)       {}
func (nopMetrics) ObserveDuration(string, time.Duration) {}

// Engine is the allocation engine.
type Engine struct {
	topics      *topicstore.Store
	signups     *signupstore.Store
	teams       TeamDirectory
	runner      *txn.Runner
	log         *zap.Logger
	metrics     Metrics
	maxAttempts int
	direct      bool
	now         func() time.Time

	// Set by tests to pause between steps that only the counter orders when
	// there is no transaction.
	afterClaim    func(topicID primitive.ObjectID)
	beforeRelease func(topicID primitive.ObjectID)
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithMaxAttempts bounds how often a conflicting decision is retried.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxAttempts = n
		}
	}
}

// WithTeams replaces the team lookup (defaults to the teams collection).
func WithTeams(t TeamDirectory) Option {
	return func(e *Engine) {
		if t != nil {
			e.teams = t
		}
	}
}

// WithoutTransactions never attempts a transaction and runs every decision on
// single-document atomic operations.
func WithoutTransactions() Option {
	return func(e *Engine) { e.direct = true }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine over db.
func New(db *mongo.Database, opts ...Option) *Engine {
	e := &Engine{
		topics:      topicstore.New(db),
		signups:     signupstore.New(db),
		teams:       teamstore.New(db),
		log:         zap.NewNop(),
		metrics:     nopMetrics{},
		maxAttempts: txn.DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	runnerOpts := []txn.Option{
		txn.WithMaxAttempts(e.maxAttempts),
		txn.WithLogger(e.log),
		txn.WithRetryHook(func(op string, attempt int, err error) {
			e.metrics.RecordRetry(op)
		}),
	}
	if e.direct {
		runnerOpts = append(runnerOpts, txn.WithoutTransactions())
	}
	e.runner = txn.New(db.Client(), runnerOpts...)
	return e
}

// Outcome of a signup.
type Outcome string

const (
	OutcomeConfirmed       Outcome = "confirmed"
	OutcomeWaitlisted      Outcome = "waitlisted"
	OutcomeAlreadySignedUp Outcome = "already_signed_up"
)

func outcomeFor(e models.SignupEntry) Outcome {
	if e.IsConfirmed() {
		return OutcomeConfirmed
	}
	return OutcomeWaitlisted
}

// Topic returns the topic or ErrTopicNotFound.
func (e *Engine) Topic(ctx context.Context, id primitive.ObjectID) (models.Topic, error) {
	return e.loadTopic(ctx, id)
}

func (e *Engine) loadTopic(ctx context.Context, id primitive.ObjectID) (models.Topic, error) {
	t, err := e.topics.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Topic{}, ErrTopicNotFound
	}
	if err != nil {
		return models.Topic{}, fmt.Errorf("load topic: %w", err)
	}
	return t, nil
}

// run executes fn on the runner and maps an exhausted retry budget.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := e.runner.Do(ctx, op, fn)
	if errors.Is(err, txn.ErrRetriesExhausted) {
		e.log.Warn("allocation retries exhausted", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAllocationUnavailable, err)
	}
	return err
}

func (e *Engine) violation(invariant, detail string, fields ...zap.Field) {
	e.metrics.RecordInvariantViolation(invariant)
	e.log.Error("allocation invariant violated",
		append([]zap.Field{zap.String("invariant", invariant), zap.String("detail", detail)}, fields...)...)
	panic(&InvariantError{Invariant: invariant, Detail: detail})
}

// assertCapacity checks the ledger of one topic against its capacity.
func (e *Engine) assertCapacity(ctx context.Context, topicID primitive.ObjectID, capacity int) error {
	n, err := e.signups.CountByTopic(ctx, topicID, models.SignupConfirmed)
	if err != nil {
		return fmt.Errorf("count confirmed: %w", err)
	}
	if n > int64(capacity) {
		e.violation(InvariantCapacity,
			fmt.Sprintf("%d confirmed entries exceed capacity %d", n, capacity),
			zap.String("topic_id", topicID.Hex()))
	}
	return nil
}
