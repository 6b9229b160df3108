// internal/app/store/duedates/duedatestore.go
package duedatestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("due_dates")}
}

// Set upserts the assignment's deadline of the given kind.
func (s *Store) Set(ctx context.Context, assignmentID primitive.ObjectID, kind string, dueAt time.Time) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"assignment_id": assignmentID, "kind": kind},
		bson.M{
			"$set":         bson.M{"due_at": dueAt.UTC(), "updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true))
	return err
}

// Clear removes the assignment's deadline of the given kind.
func (s *Store) Clear(ctx context.Context, assignmentID primitive.ObjectID, kind string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"assignment_id": assignmentID, "kind": kind})
	return err
}

// DropDeadline returns the last moment a team may drop its topic, or nil
// when the assignment has no drop deadline.
func (s *Store) DropDeadline(ctx context.Context, assignmentID primitive.ObjectID) (*time.Time, error) {
	var dd models.DueDate
	err := s.c.FindOne(ctx, bson.M{"assignment_id": assignmentID, "kind": models.DueDropTopic}).Decode(&dd)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at := dd.DueAt.UTC()
	return &at, nil
}
