// internal/app/system/workers/ledgeraudit.go
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/stratatopics/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// LedgerAuditor is the part of the allocation engine the worker drives.
type LedgerAuditor interface {
	InspectTopic(ctx context.Context, topicID primitive.ObjectID) (allocation.LedgerState, error)
	RepairCounter(ctx context.Context, st allocation.LedgerState) (bool, error)
	CheckSingleClaims(ctx context.Context) error
}

// TopicLister lists every topic ID.
type TopicLister interface {
	ListIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// SweepRecorder receives per-sweep counts.
type SweepRecorder interface {
	RecordLedgerSweep(inspected, repaired int)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Inspected int
	Drifted   int
	Repaired  int
}

// LedgerAudit is a background worker that compares every topic's confirmed
// counter with its ledger and checks the allocation invariants.
//
// A drifted counter is only repaired when the same state (same version) is
// seen on two consecutive sweeps, so operations still in flight are left
// alone.
type LedgerAudit struct {
	engine   LedgerAuditor
	topics   TopicLister
	metrics  SweepRecorder
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[primitive.ObjectID]allocation.LedgerState
}

// NewLedgerAudit creates a new ledger audit worker.
//
// Parameters:
//   - engine: the allocation engine
//   - topics: source of topic IDs
//   - metrics: sweep counters (nil to disable)
//   - logger: zap logger for logging
//   - interval: how often to sweep (e.g., 5 minutes)
func NewLedgerAudit(engine LedgerAuditor, topics TopicLister, metrics SweepRecorder, logger *zap.Logger, interval time.Duration) *LedgerAudit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerAudit{
		engine:   engine,
		topics:   topics,
		metrics:  metrics,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		pending:  make(map[primitive.ObjectID]allocation.LedgerState),
	}
}

// Start begins the background sweep loop.
func (w *LedgerAudit) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("ledger audit worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *LedgerAudit) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("ledger audit worker stopped")
}

func (w *LedgerAudit) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Sweep(), w.log, "ledger audit sweep")
			w.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep inspects every topic once.
func (w *LedgerAudit) Sweep(ctx context.Context) SweepResult {
	var res SweepResult

	ids, err := w.topics.ListIDs(ctx)
	if err != nil {
		w.log.Error("ledger audit: list topics failed", zap.Error(err))
		return res
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[primitive.ObjectID]allocation.LedgerState, len(w.pending))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		st, err := w.engine.InspectTopic(ctx, id)
		if errors.Is(err, allocation.ErrTopicNotFound) {
			continue
		}
		if err != nil {
			w.log.Error("ledger audit: inspect failed", zap.String("topic_id", id.Hex()), zap.Error(err))
			continue
		}
		res.Inspected++
		if !st.Drifted() {
			continue
		}
		res.Drifted++

		prev, ok := w.pending[id]
		if !ok || prev != st {
			seen[id] = st
			w.log.Info("ledger audit: counter drift observed",
				zap.String("topic_id", id.Hex()),
				zap.Int("counter", st.Counter),
				zap.Int64("ledger", st.Confirmed))
			continue
		}
		repaired, err := w.engine.RepairCounter(ctx, st)
		if err != nil {
			w.log.Error("ledger audit: repair failed", zap.String("topic_id", id.Hex()), zap.Error(err))
			seen[id] = st
			continue
		}
		if repaired {
			res.Repaired++
		}
	}
	w.pending = seen

	if err := w.engine.CheckSingleClaims(ctx); err != nil {
		w.log.Error("ledger audit: single-claim check failed", zap.Error(err))
	}
	if w.metrics != nil {
		w.metrics.RecordLedgerSweep(res.Inspected, res.Repaired)
	}
	if res.Drifted > 0 {
		w.log.Info("ledger audit sweep finished",
			zap.Int("inspected", res.Inspected),
			zap.Int("drifted", res.Drifted),
			zap.Int("repaired", res.Repaired))
	}
	return res
}
