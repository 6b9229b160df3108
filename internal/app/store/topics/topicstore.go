// internal/app/store/topics/topicstore.go
package topicstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/stratatopics/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("topics")}
}

var (
	ErrDuplicateIdentifier = errors.New("a topic with this identifier already exists in the assignment")
	ErrInvalidCapacity     = errors.New("capacity must not be negative")
	ErrBelowConfirmed      = errors.New("capacity is below the number of confirmed teams")
)

// Create inserts a topic. Counters start at zero; ID and timestamps are filled in.
func (s *Store) Create(ctx context.Context, t models.Topic) (models.Topic, error) {
	if t.Capacity < 0 {
		return models.Topic{}, ErrInvalidCapacity
	}
	now := time.Now().UTC()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.Identifier = strings.TrimSpace(t.Identifier)
	t.NameCI = text.Fold(t.Name)
	t.Confirmed, t.NextSeq, t.Version = 0, 0, 0
	t.CreatedAt, t.UpdatedAt = now, now

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Topic{}, ErrDuplicateIdentifier
		}
		return models.Topic{}, err
	}
	return t, nil
}

// GetByID returns mongo.ErrNoDocuments when the topic does not exist.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Topic, error) {
	var t models.Topic
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	return t, err
}

// ListByAssignment returns the assignment's topics ordered by identifier.
func (s *Store) ListByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Topic, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"assignment_id": assignmentID},
		options.Find().SetSort(bson.D{{Key: "identifier", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Topic
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListIDs returns every topic ID.
func (s *Store) ListIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Info is the descriptive part of a topic that may be edited freely.
type Info struct {
	Name        string
	Category    string
	Description string
	Link        string
}

// UpdateInfo replaces the descriptive fields. Returns mongo.ErrNoDocuments if absent.
func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, in Info) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"name":        in.Name,
		"name_ci":     text.Fold(in.Name),
		"category":    in.Category,
		"description": in.Description,
		"link":        in.Link,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Claim is the outcome of advancing a topic's counters for one signup.
type Claim struct {
	Sequence        int64 // sequence assigned to the new entry
	Confirmed       bool  // a slot was taken
	Capacity        int
	ConfirmedBefore int
}

// Claim atomically hands out the next sequence number and, if
// confirmed < capacity, takes a slot. Returns mongo.ErrNoDocuments if absent.
func (s *Store) Claim(ctx context.Context, id primitive.ObjectID) (Claim, error) {
	hasSlot := bson.D{{Key: "$lt", Value: bson.A{"$confirmed", "$capacity"}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "next_seq", Value: bson.D{{Key: "$add", Value: bson.A{"$next_seq", 1}}}},
			{Key: "confirmed", Value: bson.D{{Key: "$cond", Value: bson.A{
				hasSlot,
				bson.D{{Key: "$add", Value: bson.A{"$confirmed", 1}}},
				"$confirmed",
			}}}},
			{Key: "version", Value: bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$version", 0}}}, 1}}}},
			{Key: "updated_at", Value: "$$NOW"},
		}}},
	}

	var before struct {
		NextSeq   int64 `bson:"next_seq"`
		Confirmed int   `bson:"confirmed"`
		Capacity  int   `bson:"capacity"`
	}
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&before)
	if err != nil {
		return Claim{}, err
	}
	return Claim{
		Sequence:        before.NextSeq + 1,
		Confirmed:       before.Confirmed < before.Capacity,
		Capacity:        before.Capacity,
		ConfirmedBefore: before.Confirmed,
	}, nil
}

// TakeSlot increments confirmed if a slot is free. Reports whether it did.
func (s *Store) TakeSlot(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "$expr": bson.M{"$lt": bson.A{"$confirmed", "$capacity"}}},
		bson.M{"$inc": bson.M{"confirmed": 1, "version": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Release gives back one slot. The counter never goes below zero.
func (s *Store) Release(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "confirmed": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"confirmed": -1, "version": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	return err
}

// Touch bumps the version so concurrent transactions on the topic conflict.
func (s *Store) Touch(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$inc": bson.M{"version": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetCapacity changes capacity unless it would drop below the confirmed
// counter, in which case ErrBelowConfirmed is returned.
func (s *Store) SetCapacity(ctx context.Context, id primitive.ObjectID, capacity int) error {
	if capacity < 0 {
		return ErrInvalidCapacity
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "confirmed": bson.M{"$lte": capacity}},
		bson.M{"$set": bson.M{"capacity": capacity, "updated_at": time.Now().UTC()}, "$inc": bson.M{"version": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if n, err := s.c.CountDocuments(ctx, bson.M{"_id": id}); err != nil {
		return err
	} else if n == 0 {
		return mongo.ErrNoDocuments
	}
	return ErrBelowConfirmed
}

// SetConfirmed overwrites the counter only if the topic is still at version.
// Reports whether the write happened.
func (s *Store) SetConfirmed(ctx context.Context, id primitive.ObjectID, version int64, confirmed int) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "version": version},
		bson.M{"$set": bson.M{"confirmed": confirmed, "updated_at": time.Now().UTC()}, "$inc": bson.M{"version": 1}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Delete removes the topic document. Ledger rows are removed by the caller.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
