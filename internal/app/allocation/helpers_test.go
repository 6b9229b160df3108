package allocation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"github.com/dalemusser/stratatopics/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type recordingMetrics struct {
	mu         sync.Mutex
	signups    map[string]int
	drops      int
	promotions map[string]int
	purged     int64
	violations []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{signups: map[string]int{}, promotions: map[string]int{}}
}

func (m *recordingMetrics) RecordSignup(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signups[outcome]++
}

func (m *recordingMetrics) RecordDrop(string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops++
}

func (m *recordingMetrics) RecordPromotion(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions[source]++
}

func (m *recordingMetrics) RecordPurge(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged += n
}

func (m *recordingMetrics) RecordRetry(string) {}

func (m *recordingMetrics) RecordInvariantViolation(inv string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = append(m.violations, inv)
}

func (m *recordingMetrics) ObserveDuration(string, time.Duration) {}

type env struct {
	db       *mongo.Database
	engine   *allocation.Engine
	fixtures *testutil.Fixtures
	metrics  *recordingMetrics
	ctx      context.Context
}

func setup(t *testing.T, opts ...allocation.Option) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	m := newRecordingMetrics()
	opts = append([]allocation.Option{allocation.WithMetrics(m)}, opts...)
	return &env{
		db:       db,
		engine:   allocation.New(db, opts...),
		fixtures: testutil.NewFixtures(t, db),
		metrics:  m,
		ctx:      ctx,
	}
}

// teams creates n teams in the assignment and returns their IDs.
func (e *env) teams(assignmentID primitive.ObjectID, n int) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, n)
	for _, tm := range e.fixtures.CreateTeams(e.ctx, assignmentID, n) {
		ids = append(ids, tm.ID)
	}
	return ids
}

func (e *env) signUp(t *testing.T, topic models.Topic, team primitive.ObjectID) allocation.SignupResult {
	t.Helper()
	res, err := e.engine.SignUp(e.ctx, topic.ID, team)
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	return res
}

func (e *env) setCounter(t *testing.T, topicID primitive.ObjectID, n int) {
	t.Helper()
	if _, err := e.db.Collection("topics").UpdateByID(e.ctx, topicID,
		bson.M{"$set": bson.M{"confirmed": n}}); err != nil {
		t.Fatalf("set counter: %v", err)
	}
}

func (e *env) counter(t *testing.T, topicID primitive.ObjectID) int {
	t.Helper()
	var doc struct {
		Confirmed int `bson:"confirmed"`
	}
	if err := e.db.Collection("topics").FindOne(e.ctx, bson.M{"_id": topicID}).Decode(&doc); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return doc.Confirmed
}

func (e *env) confirmed(t *testing.T, topicID primitive.ObjectID) []primitive.ObjectID {
	t.Helper()
	ids, err := e.engine.ConfirmedTeams(e.ctx, topicID)
	if err != nil {
		t.Fatalf("ConfirmedTeams failed: %v", err)
	}
	return ids
}

func (e *env) waitlist(t *testing.T, topicID primitive.ObjectID) []primitive.ObjectID {
	t.Helper()
	ids, err := e.engine.WaitlistedTeams(e.ctx, topicID)
	if err != nil {
		t.Fatalf("WaitlistedTeams failed: %v", err)
	}
	return ids
}

func sameIDs(got, want []primitive.ObjectID) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// mustPanicInvariant runs fn and returns the *InvariantError it panics with.
func mustPanicInvariant(t *testing.T, fn func()) (ie *allocation.InvariantError) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected an invariant panic")
		}
		var ok bool
		if ie, ok = r.(*allocation.InvariantError); !ok {
			t.Fatalf("unexpected panic value %T: %v", r, r)
		}
	}()
	fn()
	return nil
}
