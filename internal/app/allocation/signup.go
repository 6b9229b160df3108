package allocation

import (
	"context"
	"errors"
	"fmt"

	signupstore "github.com/dalemusser/stratatopics/internal/app/store/signups"
	"github.com/dalemusser/stratatopics/internal/app/system/txn"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SignupResult describes a completed signup.
type SignupResult struct {
	Outcome Outcome
	Entry   models.SignupEntry
	Topic   models.Topic
	// Purged counts waitlist entries removed from the team's other topics.
	Purged int64
	// Promoted is set when an older waitlisted team took a slot that a
	// concurrent drop freed while this signup was queueing.
	Promoted *models.SignupEntry
}

// SignUp places a team on a topic: confirmed while slots remain, waitlisted
// after that. Signing up again for the same topic returns the existing entry
// with OutcomeAlreadySignedUp.
//
// Errors: ErrTeamNotFound and ErrTopicNotFound for unknown ids,
// ErrTopicRestricted when the topic is reserved for another team,
// ErrTeamHoldsTopic when the team already holds a confirmed topic in the
// assignment, and ErrAllocationUnavailable once conflicting decisions have
// used up the retry budget.
func (e *Engine) SignUp(ctx context.Context, topicID, teamID primitive.ObjectID) (SignupResult, error) {
	start := e.now()
	defer func() { e.metrics.ObserveDuration("signup", e.now().Sub(start)) }()

	ok, err := e.teams.TeamExists(ctx, teamID)
	if err != nil {
		return SignupResult{}, fmt.Errorf("look up team: %w", err)
	}
	if !ok {
		return SignupResult{}, ErrTeamNotFound
	}

	var res SignupResult
	err = e.run(ctx, "signup", func(ctx context.Context) error {
		res = SignupResult{}
		topic, err := e.loadTopic(ctx, topicID)
		if err != nil {
			return err
		}
		res.Topic = topic
		if !topic.AllowsTeam(teamID) {
			return ErrTopicRestricted
		}

		existing, err := e.signups.Find(ctx, topicID, teamID)
		switch {
		case err == nil:
			res.Outcome, res.Entry = OutcomeAlreadySignedUp, existing
			return nil
		case !errors.Is(err, mongo.ErrNoDocuments):
			return fmt.Errorf("find signup: %w", err)
		}

		held, err := e.signups.ConfirmedForTeam(ctx, topic.AssignmentID, teamID)
		switch {
		case err == nil:
			return fmt.Errorf("%w (topic %s)", ErrTeamHoldsTopic, held.TopicID.Hex())
		case !errors.Is(err, mongo.ErrNoDocuments):
			return fmt.Errorf("find confirmed signup: %w", err)
		}

		claim, err := e.topics.Claim(ctx, topicID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTopicNotFound
		}
		if err != nil {
			return fmt.Errorf("claim slot: %w", err)
		}
		if e.afterClaim != nil {
			e.afterClaim(topicID)
		}

		status := models.SignupWaitlisted
		if claim.Confirmed {
			status = models.SignupConfirmed
		}
		entry, err := e.signups.Insert(ctx, models.SignupEntry{
			TopicID:      topicID,
			AssignmentID: topic.AssignmentID,
			TeamID:       teamID,
			Status:       status,
			Sequence:     claim.Sequence,
		})
		if errors.Is(err, signupstore.ErrDuplicateSignup) || errors.Is(err, signupstore.ErrConfirmedElsewhere) {
			// A concurrent signup for this team won. Give the slot back and
			// re-read; the next attempt reports what it finds.
			if claim.Confirmed && !txn.InTransaction(ctx) {
				if rerr := e.topics.Release(ctx, topicID); rerr != nil {
					return fmt.Errorf("release slot: %w", rerr)
				}
			}
			return txn.Retryable(err)
		}
		if err != nil {
			return fmt.Errorf("insert signup: %w", err)
		}

		capacity := claim.Capacity
		if !entry.IsConfirmed() && !txn.InTransaction(ctx) {
			// The topic looked full at claim time, but without a transaction
			// a drop may have freed a slot since then.
			moved, err := e.fillSlots(ctx, topic, false, 1)
			if err != nil {
				e.log.Warn("waitlist refill after signup failed",
					zap.String("topic_id", topicID.Hex()),
					zap.Error(err))
			}
			for _, p := range moved {
				if p.ID == entry.ID {
					entry = p
					continue
				}
				res.Promoted = &p
			}
			if len(moved) > 0 {
				cur, err := e.loadTopic(ctx, topicID)
				if err != nil {
					return err
				}
				capacity = cur.Capacity
			}
		}

		if entry.IsConfirmed() || res.Promoted != nil {
			if err := e.assertCapacity(ctx, topicID, capacity); err != nil {
				return err
			}
		}
		res.Outcome, res.Entry = outcomeFor(entry), entry
		res.Topic.Capacity = capacity
		return nil
	})
	if err != nil {
		return SignupResult{}, err
	}

	e.metrics.RecordSignup(string(res.Outcome))
	e.log.Info("signup decided",
		zap.String("topic_id", topicID.Hex()),
		zap.String("team_id", teamID.Hex()),
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("sequence", res.Entry.Sequence))

	if res.Outcome == OutcomeConfirmed {
		res.Purged = e.purgeAfter(ctx, res.Topic.AssignmentID, teamID, topicID)
	}
	if p := res.Promoted; p != nil {
		e.metrics.RecordPromotion("signup")
		e.log.Info("waitlisted team promoted into a freed slot",
			zap.String("topic_id", topicID.Hex()),
			zap.String("team_id", p.TeamID.Hex()))
		e.purgeAfter(ctx, res.Topic.AssignmentID, p.TeamID, topicID)
	}
	return res, nil
}

// purgeAfter runs the cross-topic rule after a decision has committed. The
// decision stands if the purge fails; the next purge for the team catches up.
func (e *Engine) purgeAfter(ctx context.Context, assignmentID, teamID, keepTopicID primitive.ObjectID) int64 {
	n, err := e.PurgeOtherWaitlistEntries(ctx, assignmentID, teamID, keepTopicID)
	if err != nil {
		e.log.Warn("waitlist purge failed",
			zap.String("team_id", teamID.Hex()),
			zap.String("topic_id", keepTopicID.Hex()),
			zap.Error(err))
	}
	return n
}

