// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/stratatopics/internal/app/store/audit"
	"github.com/dalemusser/stratatopics/internal/app/system/ratelimit"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Signup controls logging for allocation decisions (signup, drop, promotion, denied drop).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Signup string
	// Admin controls logging for topic administration (create, edit, capacity, delete).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.AssignmentID != nil {
		fields = append(fields, zap.String("assignment_id", event.AssignmentID.Hex()))
	}
	if event.TopicID != nil {
		fields = append(fields, zap.String("topic_id", event.TopicID.Hex()))
	}
	if event.TeamID != nil {
		fields = append(fields, zap.String("team_id", event.TeamID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategorySignup:
		setting = l.config.Signup
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// actor converts a session user ID to an ObjectID; invalid IDs yield nil.
func actor(userID string) *primitive.ObjectID {
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		return &oid
	}
	return nil
}

func ref(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

func (l *Logger) topicEvent(r *http.Request, actorID string, category, eventType string, topic models.Topic, teamID primitive.ObjectID) audit.Event {
	return audit.Event{
		Category:     category,
		EventType:    eventType,
		AssignmentID: ref(topic.AssignmentID),
		TopicID:      ref(topic.ID),
		TeamID:       ref(teamID),
		ActorID:      actor(actorID),
		IP:           ratelimit.ClientIP(r),
		UserAgent:    r.UserAgent(),
		Success:      true,
	}
}

// --- Allocation Events ---

// SignupDecided logs a signup that ended confirmed or waitlisted.
func (l *Logger) SignupDecided(ctx context.Context, r *http.Request, actorID string, topic models.Topic, teamID primitive.ObjectID, entry models.SignupEntry) {
	if l == nil {
		return
	}
	eventType := audit.EventSignupWaitlisted
	if entry.IsConfirmed() {
		eventType = audit.EventSignupConfirmed
	}
	e := l.topicEvent(r, actorID, audit.CategorySignup, eventType, topic, teamID)
	e.Details = map[string]string{"sequence": strconv.FormatInt(entry.Sequence, 10)}
	l.Log(ctx, e)
}

// SignupRejected logs a signup the engine refused.
func (l *Logger) SignupRejected(ctx context.Context, r *http.Request, actorID string, topicID, teamID primitive.ObjectID, reason string) {
	if l == nil {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategorySignup, audit.EventSignupRejected, models.Topic{ID: topicID}, teamID)
	e.Success = false
	e.FailureReason = reason
	l.Log(ctx, e)
}

// Dropped logs a removed signup.
func (l *Logger) Dropped(ctx context.Context, r *http.Request, actorID string, topic models.Topic, entry models.SignupEntry) {
	if l == nil {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategorySignup, audit.EventSignupDropped, topic, entry.TeamID)
	e.Details = map[string]string{"status": entry.Status}
	l.Log(ctx, e)
}

// Promoted logs a waitlisted team moving into a slot. source is "drop",
// "capacity" or "signup".
func (l *Logger) Promoted(ctx context.Context, r *http.Request, actorID string, topic models.Topic, teamID primitive.ObjectID, source string) {
	if l == nil {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategorySignup, audit.EventSignupPromoted, topic, teamID)
	e.Details = map[string]string{"source": source}
	l.Log(ctx, e)
}

// DropDenied logs a drop refused by the drop guard.
func (l *Logger) DropDenied(ctx context.Context, r *http.Request, actorID string, topic models.Topic, teamID primitive.ObjectID, reason string) {
	if l == nil {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategorySignup, audit.EventDropDenied, topic, teamID)
	e.Success = false
	e.FailureReason = reason
	l.Log(ctx, e)
}

// WaitlistPurged logs waitlist entries removed after a team was confirmed.
func (l *Logger) WaitlistPurged(ctx context.Context, r *http.Request, actorID string, topic models.Topic, teamID primitive.ObjectID, deleted int64) {
	if l == nil || deleted == 0 {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategorySignup, audit.EventWaitlistPurged, topic, teamID)
	e.Details = map[string]string{"deleted": strconv.FormatInt(deleted, 10)}
	l.Log(ctx, e)
}

// --- Admin Events ---

// TopicCreated logs a new topic.
func (l *Logger) TopicCreated(ctx context.Context, r *http.Request, actorID string, topic models.Topic) {
	if l == nil {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategoryAdmin, audit.EventTopicCreated, topic, primitive.NilObjectID)
	e.Details = map[string]string{
		"identifier": topic.Identifier,
		"capacity":   strconv.Itoa(topic.Capacity),
	}
	l.Log(ctx, e)
}

// TopicUpdated logs an edit of a topic's descriptive fields.
func (l *Logger) TopicUpdated(ctx context.Context, r *http.Request, actorID string, topic models.Topic) {
	if l == nil {
		return
	}
	l.Log(ctx, l.topicEvent(r, actorID, audit.CategoryAdmin, audit.EventTopicUpdated, topic, primitive.NilObjectID))
}

// CapacityChanged logs a capacity edit.
func (l *Logger) CapacityChanged(ctx context.Context, r *http.Request, actorID string, topic models.Topic, previous int, promoted int) {
	if l == nil {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategoryAdmin, audit.EventCapacityChanged, topic, primitive.NilObjectID)
	e.Details = map[string]string{
		"previous": strconv.Itoa(previous),
		"capacity": strconv.Itoa(topic.Capacity),
		"promoted": strconv.Itoa(promoted),
	}
	l.Log(ctx, e)
}

// TopicDeleted logs a deleted topic and how many signups went with it.
func (l *Logger) TopicDeleted(ctx context.Context, r *http.Request, actorID string, topic models.Topic, signupsRemoved int) {
	if l == nil {
		return
	}
	e := l.topicEvent(r, actorID, audit.CategoryAdmin, audit.EventTopicDeleted, topic, primitive.NilObjectID)
	e.Details = map[string]string{
		"identifier":      topic.Identifier,
		"signups_removed": strconv.Itoa(signupsRemoved),
	}
	l.Log(ctx, e)
}
