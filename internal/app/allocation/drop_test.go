package allocation_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDropTeam_NotSignedUp(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	topic := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	teams := e.teams(assignment, 2)
	e.signUp(t, topic, teams[0])

	_, err := e.engine.DropTeam(e.ctx, topic.ID, teams[1])
	if !errors.Is(err, allocation.ErrNotSignedUp) {
		t.Fatalf("err = %v, want ErrNotSignedUp", err)
	}
	if got := e.confirmed(t, topic.ID); !sameIDs(got, teams[:1]) {
		t.Errorf("ledger changed: %v", got)
	}

	if _, err := e.engine.DropTeam(e.ctx, primitive.NewObjectID(), teams[0]); !errors.Is(err, allocation.ErrTopicNotFound) {
		t.Errorf("err = %v, want ErrTopicNotFound", err)
	}
}

func TestDropTeam_ConfirmedWithEmptyWaitlistFreesSlot(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	topic := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	team := e.teams(assignment, 1)[0]
	e.signUp(t, topic, team)

	res, err := e.engine.DropTeam(e.ctx, topic.ID, team)
	if err != nil {
		t.Fatalf("DropTeam failed: %v", err)
	}
	if res.Promoted != nil {
		t.Errorf("unexpected promotion: %+v", res.Promoted)
	}
	if !res.Dropped.IsConfirmed() {
		t.Errorf("dropped entry should be confirmed, got %s", res.Dropped.Status)
	}
	if n := e.counter(t, topic.ID); n != 0 {
		t.Errorf("counter = %d, want 0", n)
	}
	if slots, _ := e.engine.AvailableSlots(e.ctx, topic.ID); slots != 1 {
		t.Errorf("AvailableSlots = %d, want 1", slots)
	}
}

func TestDropTeam_PromotesSmallestSequence(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	topic := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	teams := e.teams(assignment, 4)
	e.setCounter(t, topic.ID, 1)

	// Insertion order differs from sequence order on purpose.
	e.fixtures.CreateSignup(e.ctx, topic, teams[0], models.SignupConfirmed, 1)
	e.fixtures.CreateSignup(e.ctx, topic, teams[1], models.SignupWaitlisted, 9)
	e.fixtures.CreateSignup(e.ctx, topic, teams[2], models.SignupWaitlisted, 4)
	e.fixtures.CreateSignup(e.ctx, topic, teams[3], models.SignupWaitlisted, 7)

	res, err := e.engine.DropTeam(e.ctx, topic.ID, teams[0])
	if err != nil {
		t.Fatalf("DropTeam failed: %v", err)
	}
	if res.Promoted == nil || res.Promoted.TeamID != teams[2] {
		t.Fatalf("promoted = %+v, want team with sequence 4", res.Promoted)
	}
	if got := e.waitlist(t, topic.ID); !sameIDs(got, []primitive.ObjectID{teams[3], teams[1]}) {
		t.Errorf("waitlist = %v", got)
	}
	if n := e.counter(t, topic.ID); n != 1 {
		t.Errorf("counter = %d, want 1", n)
	}
	if e.metrics.promotions["drop"] != 1 {
		t.Errorf("promotion not recorded: %v", e.metrics.promotions)
	}
}

func TestDropTeam_SkipsTeamsHoldingAnotherTopic(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	a := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	b := e.fixtures.CreateTopic(e.ctx, assignment, "B", 1)
	teams := e.teams(assignment, 3)
	e.setCounter(t, a.ID, 1)
	e.setCounter(t, b.ID, 1)

	e.fixtures.CreateSignup(e.ctx, a, teams[0], models.SignupConfirmed, 1)
	e.fixtures.CreateSignup(e.ctx, a, teams[1], models.SignupWaitlisted, 2) // stale: holds B
	e.fixtures.CreateSignup(e.ctx, a, teams[2], models.SignupWaitlisted, 3)
	e.fixtures.CreateSignup(e.ctx, b, teams[1], models.SignupConfirmed, 1)

	res, err := e.engine.DropTeam(e.ctx, a.ID, teams[0])
	if err != nil {
		t.Fatalf("DropTeam failed: %v", err)
	}
	if res.Promoted == nil || res.Promoted.TeamID != teams[2] {
		t.Fatalf("promoted = %+v, want teams[2]", res.Promoted)
	}
	if got := e.waitlist(t, a.ID); len(got) != 0 {
		t.Errorf("stale entry should be removed, waitlist = %v", got)
	}
	if got := e.confirmed(t, b.ID); !sameIDs(got, teams[1:2]) {
		t.Errorf("claim on B must be untouched, got %v", got)
	}
}

func TestDropTeam_OnlyStaleCandidatesReleasesSlot(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	a := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	b := e.fixtures.CreateTopic(e.ctx, assignment, "B", 1)
	teams := e.teams(assignment, 2)
	e.setCounter(t, a.ID, 1)
	e.setCounter(t, b.ID, 1)
	e.fixtures.CreateSignup(e.ctx, a, teams[0], models.SignupConfirmed, 1)
	e.fixtures.CreateSignup(e.ctx, a, teams[1], models.SignupWaitlisted, 2)
	e.fixtures.CreateSignup(e.ctx, b, teams[1], models.SignupConfirmed, 1)

	res, err := e.engine.DropTeam(e.ctx, a.ID, teams[0])
	if err != nil {
		t.Fatalf("DropTeam failed: %v", err)
	}
	if res.Promoted != nil {
		t.Errorf("nobody should be promoted, got %+v", res.Promoted)
	}
	if n := e.counter(t, a.ID); n != 0 {
		t.Errorf("counter = %d, want 0", n)
	}
}

func TestDropTeam_PromotionPurgesOtherWaitlists(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	a := e.fixtures.CreateTopic(e.ctx, assignment, "A", 1)
	c := e.fixtures.CreateTopic(e.ctx, assignment, "C", 0)
	teams := e.teams(assignment, 3)

	e.signUp(t, a, teams[0])
	e.signUp(t, a, teams[1])
	e.signUp(t, c, teams[1])
	e.signUp(t, c, teams[2])

	res, err := e.engine.DropTeam(e.ctx, a.ID, teams[0])
	if err != nil {
		t.Fatalf("DropTeam failed: %v", err)
	}
	if res.Promoted == nil || res.Promoted.TeamID != teams[1] {
		t.Fatalf("promoted = %+v", res.Promoted)
	}
	if res.Purged != 1 {
		t.Errorf("Purged = %d, want 1", res.Purged)
	}
	if got := e.waitlist(t, c.ID); !sameIDs(got, teams[2:3]) {
		t.Errorf("waitlist on C = %v, want only teams[2]", got)
	}
}

func TestPurgeOtherWaitlistEntries(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	keep := e.fixtures.CreateTopic(e.ctx, assignment, "K", 1)
	x := e.fixtures.CreateTopic(e.ctx, assignment, "X", 1)
	y := e.fixtures.CreateTopic(e.ctx, assignment, "Y", 1)
	elsewhere := e.fixtures.CreateTopic(e.ctx, primitive.NewObjectID(), "X", 1)
	team, other := primitive.NewObjectID(), primitive.NewObjectID()

	e.fixtures.CreateSignup(e.ctx, keep, team, models.SignupWaitlisted, 1)
	e.fixtures.CreateSignup(e.ctx, x, team, models.SignupWaitlisted, 1)
	e.fixtures.CreateSignup(e.ctx, y, team, models.SignupConfirmed, 1)
	e.fixtures.CreateSignup(e.ctx, x, other, models.SignupWaitlisted, 2)
	e.fixtures.CreateSignup(e.ctx, elsewhere, team, models.SignupWaitlisted, 1)

	n, err := e.engine.PurgeOtherWaitlistEntries(e.ctx, assignment, team, keep.ID)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if got := e.waitlist(t, keep.ID); !containsID(got, team) {
		t.Error("entry on the kept topic must stay")
	}
	if got := e.confirmed(t, y.ID); !containsID(got, team) {
		t.Error("confirmed entries must stay")
	}
	if got := e.waitlist(t, x.ID); !sameIDs(got, []primitive.ObjectID{other}) {
		t.Errorf("other teams must stay, waitlist = %v", got)
	}
	if got := e.waitlist(t, elsewhere.ID); !containsID(got, team) {
		t.Error("other assignments must stay")
	}

	if n, err := e.engine.PurgeOtherWaitlistEntries(e.ctx, assignment, team, keep.ID); err != nil || n != 0 {
		t.Errorf("second purge = %d, %v; want 0, nil", n, err)
	}
}
