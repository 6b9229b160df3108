// internal/app/store/signups/signupstore.go
package signupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/stratatopics/internal/app/system/indexes"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the signup ledger: one row per (topic, team) claim.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("topic_signups")}
}

var (
	ErrDuplicateSignup    = errors.New("team already has a signup for this topic")
	ErrConfirmedElsewhere = errors.New("team already holds a confirmed topic in this assignment")
	errBadStatus          = errors.New(`status must be "confirmed" or "waitlisted"`)
)

// dupError maps a duplicate-key error to the ledger invariant it violated.
func dupError(err error) error {
	if !wafflemongo.IsDup(err) {
		return err
	}
	if strings.Contains(err.Error(), indexes.SignupsAssignmentTeamConfirm) {
		return ErrConfirmedElsewhere
	}
	return ErrDuplicateSignup
}

var bySequence = bson.D{{Key: "sequence", Value: 1}, {Key: "_id", Value: 1}}

// Insert writes a new entry. ID and timestamps are filled in.
func (s *Store) Insert(ctx context.Context, e models.SignupEntry) (models.SignupEntry, error) {
	if e.Status != models.SignupConfirmed && e.Status != models.SignupWaitlisted {
		return models.SignupEntry{}, errBadStatus
	}
	now := time.Now().UTC()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	e.CreatedAt, e.UpdatedAt = now, now

	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.SignupEntry{}, dupError(err)
	}
	return e, nil
}

// Find returns mongo.ErrNoDocuments when the team has no entry on the topic.
func (s *Store) Find(ctx context.Context, topicID, teamID primitive.ObjectID) (models.SignupEntry, error) {
	var e models.SignupEntry
	err := s.c.FindOne(ctx, bson.M{"topic_id": topicID, "team_id": teamID}).Decode(&e)
	return e, err
}

// Delete removes and returns the team's entry on the topic.
// Returns mongo.ErrNoDocuments when there is none.
func (s *Store) Delete(ctx context.Context, topicID, teamID primitive.ObjectID) (models.SignupEntry, error) {
	var e models.SignupEntry
	err := s.c.FindOneAndDelete(ctx, bson.M{"topic_id": topicID, "team_id": teamID}).Decode(&e)
	return e, err
}

// DeleteByID removes one entry; reports how many rows went away.
func (s *Store) DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ConfirmedForTeam returns the team's confirmed entry in the assignment, or
// mongo.ErrNoDocuments.
func (s *Store) ConfirmedForTeam(ctx context.Context, assignmentID, teamID primitive.ObjectID) (models.SignupEntry, error) {
	var e models.SignupEntry
	err := s.c.FindOne(ctx, bson.M{
		"assignment_id": assignmentID,
		"team_id":       teamID,
		"status":        models.SignupConfirmed,
	}).Decode(&e)
	return e, err
}

// Waitlisted returns up to limit waitlisted entries of the topic, oldest first.
func (s *Store) Waitlisted(ctx context.Context, topicID primitive.ObjectID, limit int64) ([]models.SignupEntry, error) {
	opts := options.Find().SetSort(bySequence)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, bson.M{"topic_id": topicID, "status": models.SignupWaitlisted}, opts)
}

// Promote flips a waitlisted entry to confirmed. Reports false if the entry
// is gone or no longer waitlisted. Returns ErrConfirmedElsewhere if the team
// already holds a confirmed entry in the assignment.
func (s *Store) Promote(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.SignupWaitlisted},
		bson.M{"$set": bson.M{"status": models.SignupConfirmed, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, dupError(err)
	}
	return res.ModifiedCount == 1, nil
}

// ListByTopic returns the topic's entries with the given status ("" = all), oldest first.
func (s *Store) ListByTopic(ctx context.Context, topicID primitive.ObjectID, status string) ([]models.SignupEntry, error) {
	filter := bson.M{"topic_id": topicID}
	if status != "" {
		filter["status"] = status
	}
	return s.find(ctx, filter, options.Find().SetSort(bySequence))
}

// CountByTopic counts the topic's entries with the given status ("" = all).
func (s *Store) CountByTopic(ctx context.Context, topicID primitive.ObjectID, status string) (int64, error) {
	filter := bson.M{"topic_id": topicID}
	if status != "" {
		filter["status"] = status
	}
	return s.c.CountDocuments(ctx, filter)
}

// WaitlistPosition is the 1-based FIFO position of a waitlisted entry.
func (s *Store) WaitlistPosition(ctx context.Context, e models.SignupEntry) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"topic_id": e.TopicID,
		"status":   models.SignupWaitlisted,
		"sequence": bson.M{"$lt": e.Sequence},
	})
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// ListByTeam returns the team's entries in the assignment.
func (s *Store) ListByTeam(ctx context.Context, assignmentID, teamID primitive.ObjectID) ([]models.SignupEntry, error) {
	return s.find(ctx,
		bson.M{"assignment_id": assignmentID, "team_id": teamID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

// DeleteWaitlistedExcept removes the team's waitlisted entries in the
// assignment on every topic but keepTopicID.
func (s *Store) DeleteWaitlistedExcept(ctx context.Context, assignmentID, teamID, keepTopicID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"assignment_id": assignmentID,
		"team_id":       teamID,
		"status":        models.SignupWaitlisted,
		"topic_id":      bson.M{"$ne": keepTopicID},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByTopic removes every entry of the topic.
func (s *Store) DeleteByTopic(ctx context.Context, topicID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"topic_id": topicID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ClaimCount is a team holding more than one confirmed entry in an assignment.
type ClaimCount struct {
	AssignmentID primitive.ObjectID
	TeamID       primitive.ObjectID
	Count        int
}

// DuplicateConfirmedClaims lists (assignment, team) pairs with more than one
// confirmed entry. The partial unique index should keep this empty.
func (s *Store) DuplicateConfirmedClaims(ctx context.Context) ([]ClaimCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.SignupConfirmed}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "a", Value: "$assignment_id"}, {Key: "t", Value: "$team_id"}}},
			{Key: "n", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$match", Value: bson.M{"n": bson.M{"$gt": 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []ClaimCount
	for cur.Next(ctx) {
		var row struct {
			ID struct {
				A primitive.ObjectID `bson:"a"`
				T primitive.ObjectID `bson:"t"`
			} `bson:"_id"`
			N int `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, ClaimCount{AssignmentID: row.ID.A, TeamID: row.ID.T, Count: row.N})
	}
	return out, cur.Err()
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.SignupEntry, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.SignupEntry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
