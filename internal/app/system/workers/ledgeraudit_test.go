package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"github.com/dalemusser/stratatopics/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeAuditor struct {
	mu       sync.Mutex
	states   map[primitive.ObjectID]allocation.LedgerState
	errs     map[primitive.ObjectID]error
	repaired []allocation.LedgerState
	checks   int
}

func (f *fakeAuditor) InspectTopic(_ context.Context, id primitive.ObjectID) (allocation.LedgerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return allocation.LedgerState{}, err
	}
	return f.states[id], nil
}

func (f *fakeAuditor) RepairCounter(_ context.Context, st allocation.LedgerState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repaired = append(f.repaired, st)
	return true, nil
}

func (f *fakeAuditor) CheckSingleClaims(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return nil
}

type staticTopics []primitive.ObjectID

func (s staticTopics) ListIDs(context.Context) ([]primitive.ObjectID, error) { return s, nil }

type sweepCounter struct{ inspected, repaired int }

func (s *sweepCounter) RecordLedgerSweep(inspected, repaired int) {
	s.inspected += inspected
	s.repaired += repaired
}

func TestLedgerAudit_RepairsOnlyStableDrift(t *testing.T) {
	clean, drifted, gone := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	fa := &fakeAuditor{
		states: map[primitive.ObjectID]allocation.LedgerState{
			clean:   {TopicID: clean, Version: 3, Capacity: 2, Counter: 1, Confirmed: 1},
			drifted: {TopicID: drifted, Version: 7, Capacity: 2, Counter: 2, Confirmed: 1},
		},
		errs: map[primitive.ObjectID]error{gone: allocation.ErrTopicNotFound},
	}
	rec := &sweepCounter{}
	w := NewLedgerAudit(fa, staticTopics{clean, drifted, gone}, rec, zap.NewNop(), time.Hour)
	ctx := context.Background()

	first := w.Sweep(ctx)
	require.Equal(t, SweepResult{Inspected: 2, Drifted: 1}, first)
	require.Empty(t, fa.repaired, "first sighting must not repair")

	second := w.Sweep(ctx)
	require.Equal(t, 1, second.Repaired)
	require.Len(t, fa.repaired, 1)
	require.Equal(t, drifted, fa.repaired[0].TopicID)
	require.Equal(t, 2, fa.checks)
	require.Equal(t, 4, rec.inspected)
	require.Equal(t, 1, rec.repaired)
}

func TestLedgerAudit_MovingTopicIsNotRepaired(t *testing.T) {
	id := primitive.NewObjectID()
	fa := &fakeAuditor{states: map[primitive.ObjectID]allocation.LedgerState{
		id: {TopicID: id, Version: 1, Capacity: 3, Counter: 2, Confirmed: 1},
	}}
	w := NewLedgerAudit(fa, staticTopics{id}, nil, nil, time.Hour)
	ctx := context.Background()

	w.Sweep(ctx)
	fa.mu.Lock()
	fa.states[id] = allocation.LedgerState{TopicID: id, Version: 2, Capacity: 3, Counter: 3, Confirmed: 2}
	fa.mu.Unlock()
	res := w.Sweep(ctx)

	require.Zero(t, res.Repaired)
	require.Empty(t, fa.repaired)
}

func TestLedgerAudit_InspectErrorsDoNotStopSweep(t *testing.T) {
	bad, good := primitive.NewObjectID(), primitive.NewObjectID()
	fa := &fakeAuditor{
		states: map[primitive.ObjectID]allocation.LedgerState{good: {TopicID: good, Capacity: 1}},
		errs:   map[primitive.ObjectID]error{bad: errors.New("socket closed")},
	}
	w := NewLedgerAudit(fa, staticTopics{bad, good}, nil, nil, time.Hour)

	res := w.Sweep(context.Background())
	require.Equal(t, 1, res.Inspected)
	require.Equal(t, 1, fa.checks)
}

func TestLedgerAudit_StartStop(t *testing.T) {
	fa := &fakeAuditor{}
	w := NewLedgerAudit(fa, staticTopics{}, nil, nil, 10*time.Millisecond)
	w.Start()
	require.Eventually(t, func() bool {
		fa.mu.Lock()
		defer fa.mu.Unlock()
		return fa.checks > 0
	}, 2*time.Second, 10*time.Millisecond)
	w.Stop()
	w.Stop() // idempotent
}

func TestLedgerAudit_WithEngine(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	assignment := primitive.NewObjectID()
	topic := fixtures.CreateTopic(ctx, assignment, "A", 3)
	team := fixtures.CreateTeam(ctx, assignment, "Team A")
	engine := allocation.New(db)
	if _, err := engine.SignUp(ctx, topic.ID, team.ID); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	// Leave the counter one ahead, as a crash after the claim would.
	if _, err := db.Collection("topics").UpdateByID(ctx, topic.ID, bson.M{"$inc": bson.M{"confirmed": 1}}); err != nil {
		t.Fatalf("bump counter: %v", err)
	}

	w := NewLedgerAudit(engine, topicstore.New(db), nil, nil, time.Hour)
	require.Zero(t, w.Sweep(ctx).Repaired)
	require.Equal(t, 1, w.Sweep(ctx).Repaired)

	got, err := topicstore.New(db).GetByID(ctx, topic.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Confirmed)
}
