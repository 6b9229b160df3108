// internal/app/store/submissions/submissionstore.go
package submissionstore

import (
	"context"

	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store reads the submission summaries written by the submission service.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("team_submissions")}
}

// Get returns the team's submission for the assignment, or mongo.ErrNoDocuments.
func (s *Store) Get(ctx context.Context, teamID, assignmentID primitive.ObjectID) (models.TeamSubmission, error) {
	var sub models.TeamSubmission
	err := s.c.FindOne(ctx, bson.M{"team_id": teamID, "assignment_id": assignmentID}).Decode(&sub)
	return sub, err
}

// HasSubmittedWork reports whether the team handed in any file or hyperlink
// for the assignment.
func (s *Store) HasSubmittedWork(ctx context.Context, teamID, assignmentID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"team_id":       teamID,
		"assignment_id": assignmentID,
		"$or": bson.A{
			bson.M{"hyperlinks.0": bson.M{"$exists": true}},
			bson.M{"files.0": bson.M{"$exists": true}},
		},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
