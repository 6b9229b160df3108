package allocation

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// LedgerState compares a topic's denormalised counter with its ledger.
type LedgerState struct {
	TopicID   primitive.ObjectID
	Version   int64
	Capacity  int
	Counter   int   // topic.confirmed
	Confirmed int64 // confirmed rows in the ledger
}

// Drifted reports whether the counter disagrees with the ledger.
func (s LedgerState) Drifted() bool { return int64(s.Counter) != s.Confirmed }

// InspectTopic reads the counter and the ledger from one snapshot and checks
// the capacity invariant.
func (e *Engine) InspectTopic(ctx context.Context, topicID primitive.ObjectID) (LedgerState, error) {
	var st LedgerState
	err := e.run(ctx, "inspect", func(ctx context.Context) error {
		topic, err := e.loadTopic(ctx, topicID)
		if err != nil {
			return err
		}
		n, err := e.signups.CountByTopic(ctx, topicID, models.SignupConfirmed)
		if err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}
		st = LedgerState{
			TopicID:   topicID,
			Version:   topic.Version,
			Capacity:  topic.Capacity,
			Counter:   topic.Confirmed,
			Confirmed: n,
		}
		return nil
	})
	if err != nil {
		return LedgerState{}, err
	}
	if st.Confirmed > int64(st.Capacity) {
		e.violation(InvariantCapacity,
			fmt.Sprintf("%d confirmed entries exceed capacity %d", st.Confirmed, st.Capacity),
			zap.String("topic_id", topicID.Hex()))
	}
	return st, nil
}

// RepairCounter sets the counter to the ledger count seen in st, provided the
// topic has not changed since. Reports whether it wrote.
func (e *Engine) RepairCounter(ctx context.Context, st LedgerState) (bool, error) {
	if !st.Drifted() {
		return false, nil
	}
	ok, err := e.topics.SetConfirmed(ctx, st.TopicID, st.Version, int(st.Confirmed))
	if err != nil {
		return false, fmt.Errorf("repair counter: %w", err)
	}
	if ok {
		e.log.Warn("confirmed counter repaired",
			zap.String("topic_id", st.TopicID.Hex()),
			zap.Int("counter", st.Counter),
			zap.Int64("ledger", st.Confirmed))
	}
	return ok, nil
}

// CheckSingleClaims fails if any team holds two confirmed topics in one
// assignment.
func (e *Engine) CheckSingleClaims(ctx context.Context) error {
	dups, err := e.signups.DuplicateConfirmedClaims(ctx)
	if err != nil {
		return fmt.Errorf("single-claim check: %w", err)
	}
	if len(dups) > 0 {
		d := dups[0]
		e.violation(InvariantSingleClaim,
			fmt.Sprintf("team holds %d confirmed topics", d.Count),
			zap.String("assignment_id", d.AssignmentID.Hex()),
			zap.String("team_id", d.TeamID.Hex()),
			zap.Int("pairs", len(dups)))
	}
	return nil
}
