// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategorySignup = "signup"
	CategoryAdmin  = "admin"
)

// Signup event types
const (
	EventSignupConfirmed  = "signup_confirmed"
	EventSignupWaitlisted = "signup_waitlisted"
	EventSignupRejected   = "signup_rejected"
	EventSignupDropped    = "signup_dropped"
	EventSignupPromoted   = "signup_promoted"
	EventDropDenied       = "drop_denied"
	EventWaitlistPurged   = "waitlist_purged"
)

// Admin event types
const (
	EventTopicCreated    = "topic_created"
	EventTopicUpdated    = "topic_updated"
	EventTopicDeleted    = "topic_deleted"
	EventCapacityChanged = "capacity_changed"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// What
	AssignmentID *primitive.ObjectID `bson:"assignment_id,omitempty"`
	TopicID      *primitive.ObjectID `bson:"topic_id,omitempty"`
	TeamID       *primitive.ObjectID `bson:"team_id,omitempty"`

	// Who
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"`

	// Context
	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	TopicID   *primitive.ObjectID
	TeamID    *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func (f QueryFilter) query() bson.M {
	query := bson.M{}
	if f.TopicID != nil {
		query["topic_id"] = f.TopicID
	}
	if f.TeamID != nil {
		query["team_id"] = f.TeamID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}

	// Time range
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["created_at"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// GetByTopic retrieves recent audit events for a topic.
func (s *Store) GetByTopic(ctx context.Context, topicID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		TopicID: &topicID,
		Limit:   limit,
	})
}

// GetByTeam retrieves recent audit events for a team.
func (s *Store) GetByTeam(ctx context.Context, teamID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		TeamID: &teamID,
		Limit:  limit,
	})
}
