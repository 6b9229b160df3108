package allocation

import (
	"context"
	"errors"
	"fmt"

	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CapacityResult describes a capacity change.
type CapacityResult struct {
	Topic    models.Topic
	Previous int
	Promoted []models.SignupEntry
}

// UpdateCapacity sets a topic's capacity. Raising it promotes waitlisted
// teams in order until the new slots are filled or the waitlist runs out.
// Lowering it below the number of confirmed teams fails with
// ErrCapacityBelowConfirmed; nobody is ever demoted.
func (e *Engine) UpdateCapacity(ctx context.Context, topicID primitive.ObjectID, capacity int) (CapacityResult, error) {
	if capacity < 0 {
		return CapacityResult{}, ErrInvalidCapacity
	}

	var res CapacityResult
	err := e.run(ctx, "capacity", func(ctx context.Context) error {
		res = CapacityResult{}
		topic, err := e.loadTopic(ctx, topicID)
		if err != nil {
			return err
		}
		confirmed, err := e.signups.CountByTopic(ctx, topicID, models.SignupConfirmed)
		if err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}
		if int64(capacity) < confirmed {
			return fmt.Errorf("%w (%d confirmed)", ErrCapacityBelowConfirmed, confirmed)
		}
		err = e.topics.SetCapacity(ctx, topicID, capacity)
		switch {
		case errors.Is(err, topicstore.ErrBelowConfirmed):
			return ErrCapacityBelowConfirmed
		case errors.Is(err, mongo.ErrNoDocuments):
			return ErrTopicNotFound
		case err != nil:
			return fmt.Errorf("set capacity: %w", err)
		}
		res.Previous = topic.Capacity
		topic.Capacity = capacity

		res.Promoted, err = e.fillSlots(ctx, topic, false, -1)
		if err != nil {
			return err
		}
		res.Topic = topic
		return e.assertCapacity(ctx, topicID, capacity)
	})
	if err != nil {
		return CapacityResult{}, err
	}

	e.log.Info("topic capacity changed",
		zap.String("topic_id", topicID.Hex()),
		zap.Int("previous", res.Previous),
		zap.Int("capacity", capacity),
		zap.Int("promoted", len(res.Promoted)))
	for _, p := range res.Promoted {
		e.metrics.RecordPromotion("capacity")
		e.purgeAfter(ctx, res.Topic.AssignmentID, p.TeamID, topicID)
	}
	return res, nil
}

// DeleteResult describes a deleted topic and the entries removed with it.
type DeleteResult struct {
	Topic   models.Topic
	Entries []models.SignupEntry
}

// DeleteTopic removes the topic and its whole ledger.
func (e *Engine) DeleteTopic(ctx context.Context, topicID primitive.ObjectID) (DeleteResult, error) {
	var res DeleteResult
	err := e.run(ctx, "delete_topic", func(ctx context.Context) error {
		res = DeleteResult{}
		topic, err := e.loadTopic(ctx, topicID)
		if err != nil {
			return err
		}
		entries, err := e.signups.ListByTopic(ctx, topicID, "")
		if err != nil {
			return fmt.Errorf("list signups: %w", err)
		}
		if _, err := e.signups.DeleteByTopic(ctx, topicID); err != nil {
			return fmt.Errorf("delete signups: %w", err)
		}
		n, err := e.topics.Delete(ctx, topicID)
		if err != nil {
			return fmt.Errorf("delete topic: %w", err)
		}
		if n == 0 {
			return ErrTopicNotFound
		}
		res.Topic, res.Entries = topic, entries
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	e.log.Info("topic deleted",
		zap.String("topic_id", topicID.Hex()),
		zap.Int("signups_removed", len(res.Entries)))
	return res, nil
}
