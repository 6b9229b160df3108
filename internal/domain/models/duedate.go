package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Due date kinds.
const (
	DueDropTopic  = "drop_topic" // last moment a team may drop its topic
	DueSubmission = "submission"
	DueReview     = "review"
)

// DueDate is one deadline of an assignment.
type DueDate struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssignmentID primitive.ObjectID `bson:"assignment_id" json:"assignment_id"`
	Kind         string             `bson:"kind" json:"kind"`
	DueAt        time.Time          `bson:"due_at" json:"due_at"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
