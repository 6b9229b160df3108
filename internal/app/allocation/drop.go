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

// DropResult describes a completed drop.
type DropResult struct {
	Topic    models.Topic
	Dropped  models.SignupEntry
	Promoted *models.SignupEntry
	Purged   int64
}

// DropTeam removes the team's entry from the topic. When a confirmed entry is
// dropped, the oldest eligible waitlisted team takes the freed slot. Callers
// decide beforehand whether the drop is allowed (see droppolicy).
func (e *Engine) DropTeam(ctx context.Context, topicID, teamID primitive.ObjectID) (DropResult, error) {
	start := e.now()
	defer func() { e.metrics.ObserveDuration("drop", e.now().Sub(start)) }()

	var res DropResult
	err := e.run(ctx, "drop", func(ctx context.Context) error {
		res = DropResult{}
		topic, err := e.loadTopic(ctx, topicID)
		if err != nil {
			return err
		}
		res.Topic = topic

		dropped, err := e.signups.Delete(ctx, topicID, teamID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotSignedUp
		}
		if err != nil {
			return fmt.Errorf("delete signup: %w", err)
		}
		res.Dropped = dropped

		if !dropped.IsConfirmed() {
			return e.touch(ctx, topicID)
		}

		// The dropped entry's slot is still on the counter and is handed
		// over as is.
		promoted, err := e.fillSlots(ctx, topic, true, 1)
		if err != nil {
			return err
		}
		if len(promoted) == 0 {
			return nil
		}
		res.Promoted = &promoted[0]
		return e.touch(ctx, topicID)
	})
	if err != nil {
		return DropResult{}, err
	}

	e.metrics.RecordDrop(res.Dropped.Status, res.Promoted != nil)
	fields := []zap.Field{
		zap.String("topic_id", topicID.Hex()),
		zap.String("team_id", teamID.Hex()),
		zap.String("status", res.Dropped.Status),
	}
	if res.Promoted != nil {
		e.metrics.RecordPromotion("drop")
		fields = append(fields, zap.String("promoted_team_id", res.Promoted.TeamID.Hex()))
		res.Purged = e.purgeAfter(ctx, res.Topic.AssignmentID, res.Promoted.TeamID, topicID)
	}
	e.log.Info("team dropped", fields...)
	return res, nil
}

func (e *Engine) touch(ctx context.Context, topicID primitive.ObjectID) error {
	err := e.topics.Touch(ctx, topicID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrTopicNotFound
	}
	if err != nil {
		return fmt.Errorf("touch topic: %w", err)
	}
	return nil
}

// maxRefillRounds bounds how often fillSlots re-reads the waitlist after giving
// a slot back.
const maxRefillRounds = 5

// fillSlots promotes waitlisted teams into free slots, at most limit of them
// (no bound when limit < 0). held means the caller already counts one slot on
// the topic counter that nobody occupies. A slot nobody takes is given back.
// Without a transaction a signup may have found the topic full and queued
// while the slot was out, so the waitlist is read again after each release.
func (e *Engine) fillSlots(ctx context.Context, topic models.Topic, held bool, limit int) ([]models.SignupEntry, error) {
	var promoted []models.SignupEntry
	rounds := 0
	for limit < 0 || len(promoted) < limit {
		if !held {
			took, err := e.topics.TakeSlot(ctx, topic.ID)
			if err != nil {
				return promoted, fmt.Errorf("take slot: %w", err)
			}
			if !took {
				return promoted, nil
			}
		}
		held = false

		p, err := e.promoteNext(ctx, topic)
		if err != nil {
			return promoted, err
		}
		if p != nil {
			promoted = append(promoted, *p)
			continue
		}

		if e.beforeRelease != nil {
			e.beforeRelease(topic.ID)
		}
		if err := e.topics.Release(ctx, topic.ID); err != nil {
			return promoted, fmt.Errorf("release slot: %w", err)
		}
		if txn.InTransaction(ctx) {
			return promoted, nil
		}
		waiting, err := e.signups.CountByTopic(ctx, topic.ID, models.SignupWaitlisted)
		if err != nil {
			return promoted, fmt.Errorf("count waitlist: %w", err)
		}
		if waiting == 0 {
			return promoted, nil
		}
		if rounds++; rounds >= maxRefillRounds {
			e.log.Warn("waitlist refill gave up with teams still waiting",
				zap.String("topic_id", topic.ID.Hex()),
				zap.Int64("waiting", waiting))
			return promoted, nil
		}
	}
	return promoted, nil
}

// promoteNext confirms the oldest waitlisted entry of the topic whose team
// does not already hold a confirmed topic. Entries of teams that do are stale
// and are removed on the way. Returns nil when nobody is eligible. The caller
// owns the slot being handed over.
func (e *Engine) promoteNext(ctx context.Context, topic models.Topic) (*models.SignupEntry, error) {
	const batch = 10
	for {
		candidates, err := e.signups.Waitlisted(ctx, topic.ID, batch)
		if err != nil {
			return nil, fmt.Errorf("list waitlist: %w", err)
		}
		if len(candidates) == 0 {
			return nil, nil
		}
		for _, c := range candidates {
			_, err := e.signups.ConfirmedForTeam(ctx, topic.AssignmentID, c.TeamID)
			if err == nil {
				if _, err := e.signups.DeleteByID(ctx, c.ID); err != nil {
					return nil, fmt.Errorf("remove stale waitlist entry: %w", err)
				}
				continue
			}
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("find confirmed signup: %w", err)
			}

			ok, err := e.signups.Promote(ctx, c.ID)
			if errors.Is(err, signupstore.ErrConfirmedElsewhere) {
				if txn.InTransaction(ctx) {
					return nil, txn.Retryable(err)
				}
				if _, err := e.signups.DeleteByID(ctx, c.ID); err != nil {
					return nil, fmt.Errorf("remove stale waitlist entry: %w", err)
				}
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("promote: %w", err)
			}
			if !ok {
				continue
			}
			c.Status = models.SignupConfirmed
			return &c, nil
		}
	}
}
