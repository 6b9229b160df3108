// internal/domain/models/signup.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Signup statuses. Status only ever moves from waitlisted to confirmed.
const (
	SignupConfirmed  = "confirmed"
	SignupWaitlisted = "waitlisted"
)

// SignupEntry is one team's claim on one topic.
// Sequence comes from the topic's next_seq counter and orders the waitlist.
type SignupEntry struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TopicID      primitive.ObjectID `bson:"topic_id" json:"topic_id"`
	AssignmentID primitive.ObjectID `bson:"assignment_id" json:"assignment_id"`
	TeamID       primitive.ObjectID `bson:"team_id" json:"team_id"`
	Status       string             `bson:"status" json:"status"` // confirmed | waitlisted
	Sequence     int64              `bson:"sequence" json:"sequence"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (e SignupEntry) IsConfirmed() bool  { return e.Status == SignupConfirmed }
func (e SignupEntry) IsWaitlisted() bool { return e.Status == SignupWaitlisted }
