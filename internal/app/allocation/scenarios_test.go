package allocation_test

import (
	"testing"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/stratatopics/internal/app/policy/droppolicy"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The walkthrough on a topic with two slots: fill, overflow, drop a confirmed
// team, then drop a waitlisted one.
func TestScenario_FillDropAndWaitlistDrop(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	topic := e.fixtures.CreateTopic(e.ctx, assignment, "A", 2)
	teams := e.teams(assignment, 4)
	t1, t2, t3, t4 := teams[0], teams[1], teams[2], teams[3]

	for _, team := range []primitive.ObjectID{t1, t2} {
		if res := e.signUp(t, topic, team); res.Outcome != allocation.OutcomeConfirmed {
			t.Fatalf("expected confirmed, got %s", res.Outcome)
		}
	}
	r3 := e.signUp(t, topic, t3)
	r4 := e.signUp(t, topic, t4)
	if r3.Outcome != allocation.OutcomeWaitlisted || r4.Outcome != allocation.OutcomeWaitlisted {
		t.Fatalf("expected T3 and T4 waitlisted, got %s, %s", r3.Outcome, r4.Outcome)
	}
	if r3.Entry.Sequence >= r4.Entry.Sequence {
		t.Fatalf("T3 must be ahead of T4: %d vs %d", r3.Entry.Sequence, r4.Entry.Sequence)
	}

	res, err := e.engine.DropTeam(e.ctx, topic.ID, t1)
	if err != nil {
		t.Fatalf("drop T1: %v", err)
	}
	if res.Promoted == nil || res.Promoted.TeamID != t3 {
		t.Fatalf("expected T3 promoted, got %+v", res.Promoted)
	}
	if got := e.confirmed(t, topic.ID); !sameIDs(got, []primitive.ObjectID{t2, t3}) {
		t.Errorf("confirmed = %v, want [T2 T3]", got)
	}
	if got := e.waitlist(t, topic.ID); !sameIDs(got, []primitive.ObjectID{t4}) {
		t.Errorf("waitlist = %v, want [T4]", got)
	}

	res, err = e.engine.DropTeam(e.ctx, topic.ID, t4)
	if err != nil {
		t.Fatalf("drop T4: %v", err)
	}
	if res.Promoted != nil {
		t.Errorf("dropping a waitlisted team must not promote, got %+v", res.Promoted)
	}
	if got := e.waitlist(t, topic.ID); len(got) != 0 {
		t.Errorf("waitlist = %v, want empty", got)
	}
	if got := e.confirmed(t, topic.ID); !sameIDs(got, []primitive.ObjectID{t2, t3}) {
		t.Errorf("confirmed = %v, want [T2 T3]", got)
	}
}

// A team moved onto topic B by staff loses its waitlist places elsewhere.
func TestScenario_StaffMovePurgesWaitlists(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	a := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	b := e.fixtures.CreateTopic(e.ctx, assignment, "B", 1)
	c := e.fixtures.CreateTopic(e.ctx, assignment, "C", 1)
	teams := e.teams(assignment, 3)
	t2 := teams[1]

	e.signUp(t, a, t2)
	e.signUp(t, b, teams[0])
	e.signUp(t, c, teams[2])
	// T2 queued on B and C before it won A.
	e.fixtures.CreateSignup(e.ctx, b, t2, models.SignupWaitlisted, 50)
	e.fixtures.CreateSignup(e.ctx, c, t2, models.SignupWaitlisted, 50)

	// Staff release T2 from A and open a slot on B for it.
	if _, err := e.engine.DropTeam(e.ctx, a.ID, t2); err != nil {
		t.Fatalf("drop from A: %v", err)
	}
	res, err := e.engine.UpdateCapacity(e.ctx, b.ID, 2)
	if err != nil {
		t.Fatalf("UpdateCapacity: %v", err)
	}
	if len(res.Promoted) != 1 || res.Promoted[0].TeamID != t2 {
		t.Fatalf("expected T2 promoted on B, got %+v", res.Promoted)
	}
	if got := e.waitlist(t, c.ID); containsID(got, t2) {
		t.Errorf("T2's waitlist entry on C should be purged, waitlist = %v", got)
	}
}

// Submitted work blocks the drop and the ledger stays as it was.
func TestScenario_DropDeniedAfterSubmission(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	topic := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	team := e.teams(assignment, 1)[0]
	e.signUp(t, topic, team)
	e.fixtures.CreateSubmission(e.ctx, assignment, team, []string{"https://example.org/work"}, nil)

	guard := droppolicy.NewFromDB(e.db)
	d, err := guard.CanDrop(e.ctx, team, assignment)
	if err != nil {
		t.Fatalf("CanDrop: %v", err)
	}
	if d.Allowed || d.Reason != droppolicy.ReasonAlreadySubmitted {
		t.Fatalf("decision = %+v, want already_submitted", d)
	}
	if got := e.confirmed(t, topic.ID); !sameIDs(got, []primitive.ObjectID{team}) {
		t.Errorf("ledger changed: %v", got)
	}
}
