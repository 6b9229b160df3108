package allocation

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// AvailableSlots is capacity minus confirmed entries, never negative.
func (e *Engine) AvailableSlots(ctx context.Context, topicID primitive.ObjectID) (int, error) {
	topic, err := e.loadTopic(ctx, topicID)
	if err != nil {
		return 0, err
	}
	n, err := e.signups.CountByTopic(ctx, topicID, models.SignupConfirmed)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return slotsLeft(topic.Capacity, n), nil
}

// Slots reads the free capacity off the topic's counter without touching the
// ledger. Use AvailableSlots when the exact count matters.
func Slots(t models.Topic) int {
	return slotsLeft(t.Capacity, int64(t.Confirmed))
}

func slotsLeft(capacity int, confirmed int64) int {
	if left := int64(capacity) - confirmed; left > 0 {
		return int(left)
	}
	return 0
}

// ConfirmedTeams lists the teams holding the topic, in signup order.
func (e *Engine) ConfirmedTeams(ctx context.Context, topicID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return e.teamsWithStatus(ctx, topicID, models.SignupConfirmed)
}

// WaitlistedTeams lists the waiting teams, next to be promoted first.
func (e *Engine) WaitlistedTeams(ctx context.Context, topicID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return e.teamsWithStatus(ctx, topicID, models.SignupWaitlisted)
}

func (e *Engine) teamsWithStatus(ctx context.Context, topicID primitive.ObjectID, status string) ([]primitive.ObjectID, error) {
	if _, err := e.loadTopic(ctx, topicID); err != nil {
		return nil, err
	}
	entries, err := e.signups.ListByTopic(ctx, topicID, status)
	if err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	return teamIDs(entries), nil
}

func teamIDs(entries []models.SignupEntry) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(entries))
	for _, en := range entries {
		ids = append(ids, en.TeamID)
	}
	return ids
}

// Roster is a topic with its ledger.
type Roster struct {
	Topic          models.Topic
	Confirmed      []models.SignupEntry
	Waitlist       []models.SignupEntry
	AvailableSlots int
}

// Roster loads the topic and both halves of its ledger concurrently.
func (e *Engine) Roster(ctx context.Context, topicID primitive.ObjectID) (Roster, error) {
	var r Roster
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := e.loadTopic(gctx, topicID)
		r.Topic = t
		return err
	})
	g.Go(func() error {
		c, err := e.signups.ListByTopic(gctx, topicID, models.SignupConfirmed)
		if err != nil {
			return fmt.Errorf("list confirmed: %w", err)
		}
		r.Confirmed = c
		return nil
	})
	g.Go(func() error {
		w, err := e.signups.ListByTopic(gctx, topicID, models.SignupWaitlisted)
		if err != nil {
			return fmt.Errorf("list waitlist: %w", err)
		}
		r.Waitlist = w
		return nil
	})
	if err := g.Wait(); err != nil {
		return Roster{}, err
	}
	r.AvailableSlots = slotsLeft(r.Topic.Capacity, int64(len(r.Confirmed)))
	return r, nil
}

// TeamSignup is one of a team's entries. Position is the 1-based waitlist
// position, 0 for confirmed entries.
type TeamSignup struct {
	Entry    models.SignupEntry
	Position int64
}

// TeamSignups lists the team's entries in the assignment.
func (e *Engine) TeamSignups(ctx context.Context, assignmentID, teamID primitive.ObjectID) ([]TeamSignup, error) {
	entries, err := e.signups.ListByTeam(ctx, assignmentID, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team signups: %w", err)
	}
	out := make([]TeamSignup, 0, len(entries))
	for _, en := range entries {
		ts := TeamSignup{Entry: en}
		if en.IsWaitlisted() {
			if ts.Position, err = e.signups.WaitlistPosition(ctx, en); err != nil {
				return nil, fmt.Errorf("waitlist position: %w", err)
			}
		}
		out = append(out, ts)
	}
	return out, nil
}
