package allocation_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRoster(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	topic := e.fixtures.CreateTopic(e.ctx, assignment, "A", 2)
	teams := e.teams(assignment, 3)
	for _, team := range teams {
		e.signUp(t, topic, team)
	}

	r, err := e.engine.Roster(e.ctx, topic.ID)
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if r.Topic.ID != topic.ID || r.AvailableSlots != 0 {
		t.Errorf("topic/slots = %s/%d", r.Topic.ID.Hex(), r.AvailableSlots)
	}
	if len(r.Confirmed) != 2 || len(r.Waitlist) != 1 || r.Waitlist[0].TeamID != teams[2] {
		t.Errorf("unexpected roster: %+v", r)
	}

	if _, err := e.engine.Roster(e.ctx, primitive.NewObjectID()); !errors.Is(err, allocation.ErrTopicNotFound) {
		t.Errorf("err = %v, want ErrTopicNotFound", err)
	}
}

func TestReads_UnknownTopic(t *testing.T) {
	e := setup(t)
	missing := primitive.NewObjectID()

	if _, err := e.engine.AvailableSlots(e.ctx, missing); !errors.Is(err, allocation.ErrTopicNotFound) {
		t.Errorf("AvailableSlots err = %v", err)
	}
	if _, err := e.engine.ConfirmedTeams(e.ctx, missing); !errors.Is(err, allocation.ErrTopicNotFound) {
		t.Errorf("ConfirmedTeams err = %v", err)
	}
	if _, err := e.engine.WaitlistedTeams(e.ctx, missing); !errors.Is(err, allocation.ErrTopicNotFound) {
		t.Errorf("WaitlistedTeams err = %v", err)
	}
}

func TestTeamSignups_Positions(t *testing.T) {
	e := setup(t)
	assignment := primitive.NewObjectID()
	a := e.fixtures.CreateTopic(e.ctx, assignment, "A", 0)
	b := e.fixtures.CreateTopic(e.ctx, assignment, "B", 0)
	teams := e.teams(assignment, 3)

	e.signUp(t, a, teams[0])
	e.signUp(t, a, teams[1])
	e.signUp(t, a, teams[2])
	e.signUp(t, b, teams[2])

	got, err := e.engine.TeamSignups(e.ctx, assignment, teams[2])
	if err != nil {
		t.Fatalf("TeamSignups failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	want := map[primitive.ObjectID]int64{a.ID: 3, b.ID: 1}
	for _, ts := range got {
		if ts.Position != want[ts.Entry.TopicID] {
			t.Errorf("topic %s: position %d, want %d", ts.Entry.TopicID.Hex(), ts.Position, want[ts.Entry.TopicID])
		}
	}

	if _, err := e.engine.DropTeam(e.ctx, a.ID, teams[0]); err != nil {
		t.Fatalf("DropTeam failed: %v", err)
	}
	got, _ = e.engine.TeamSignups(e.ctx, assignment, teams[2])
	for _, ts := range got {
		if ts.Entry.TopicID == a.ID && ts.Position != 2 {
			t.Errorf("position after drop = %d, want 2", ts.Position)
		}
	}
}
