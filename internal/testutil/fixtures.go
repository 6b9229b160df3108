package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/stratatopics/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Calling it again on the returned request keeps earlier parameters.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateTopic inserts a topic with the given identifier and capacity.
func (f *Fixtures) CreateTopic(ctx context.Context, assignmentID primitive.ObjectID, identifier string, capacity int) models.Topic {
	f.t.Helper()

	now := time.Now().UTC()
	name := "Topic " + identifier
	topic := models.Topic{
		ID:           primitive.NewObjectID(),
		AssignmentID: assignmentID,
		Identifier:   identifier,
		Name:         name,
		NameCI:       text.Fold(name),
		Category:     "general",
		Capacity:     capacity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("topics").InsertOne(ctx, topic); err != nil {
		f.t.Fatalf("failed to create test topic: %v", err)
	}
	return topic
}

// CreateRestrictedTopic inserts a topic only teamID may sign up for.
func (f *Fixtures) CreateRestrictedTopic(ctx context.Context, assignmentID primitive.ObjectID, identifier string, capacity int, teamID primitive.ObjectID) models.Topic {
	f.t.Helper()

	topic := f.CreateTopic(ctx, assignmentID, identifier, capacity)
	if _, err := f.db.Collection("topics").UpdateByID(ctx, topic.ID,
		bson.M{"$set": bson.M{"restricted_to_team_id": teamID}}); err != nil {
		f.t.Fatalf("failed to restrict test topic: %v", err)
	}
	topic.RestrictedToTeamID = &teamID
	return topic
}

// CreateTeam inserts a team with the given members.
func (f *Fixtures) CreateTeam(ctx context.Context, assignmentID primitive.ObjectID, name string, members ...primitive.ObjectID) models.Team {
	f.t.Helper()

	if members == nil {
		members = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	team := models.Team{
		ID:           primitive.NewObjectID(),
		AssignmentID: assignmentID,
		Name:         name,
		NameCI:       text.Fold(name),
		MemberIDs:    members,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, team); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}
	return team
}

// CreateTeams inserts n teams named Team 1..n.
func (f *Fixtures) CreateTeams(ctx context.Context, assignmentID primitive.ObjectID, n int) []models.Team {
	f.t.Helper()
	teams := make([]models.Team, n)
	for i := range teams {
		teams[i] = f.CreateTeam(ctx, assignmentID, "Team "+string(rune('A'+i)))
	}
	return teams
}

// CreateSignup inserts a ledger entry directly, bypassing the engine and the
// topic counter. Use it to stage states the engine would not produce.
func (f *Fixtures) CreateSignup(ctx context.Context, topic models.Topic, teamID primitive.ObjectID, status string, seq int64) models.SignupEntry {
	f.t.Helper()

	now := time.Now().UTC()
	entry := models.SignupEntry{
		ID:           primitive.NewObjectID(),
		TopicID:      topic.ID,
		AssignmentID: topic.AssignmentID,
		TeamID:       teamID,
		Status:       status,
		Sequence:     seq,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("topic_signups").InsertOne(ctx, entry); err != nil {
		f.t.Fatalf("failed to create test signup: %v", err)
	}
	return entry
}

// CreateSubmission records submitted work for a team.
func (f *Fixtures) CreateSubmission(ctx context.Context, assignmentID, teamID primitive.ObjectID, hyperlinks []string, files []models.SubmittedFile) models.TeamSubmission {
	f.t.Helper()

	sub := models.TeamSubmission{
		ID:           primitive.NewObjectID(),
		TeamID:       teamID,
		AssignmentID: assignmentID,
		Hyperlinks:   hyperlinks,
		Files:        files,
		UpdatedAt:    time.Now().UTC(),
	}
	if _, err := f.db.Collection("team_submissions").InsertOne(ctx, sub); err != nil {
		f.t.Fatalf("failed to create test submission: %v", err)
	}
	return sub
}

// CreateDueDate inserts a deadline of the given kind.
func (f *Fixtures) CreateDueDate(ctx context.Context, assignmentID primitive.ObjectID, kind string, dueAt time.Time) models.DueDate {
	f.t.Helper()

	now := time.Now().UTC()
	dd := models.DueDate{
		ID:           primitive.NewObjectID(),
		AssignmentID: assignmentID,
		Kind:         kind,
		DueAt:        dueAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("due_dates").InsertOne(ctx, dd); err != nil {
		f.t.Fatalf("failed to create test due date: %v", err)
	}
	return dd
}
