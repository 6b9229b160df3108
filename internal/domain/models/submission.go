package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TeamSubmission summarizes what a team has handed in for an assignment.
// File contents live elsewhere; only the listing is kept here.
type TeamSubmission struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TeamID       primitive.ObjectID `bson:"team_id" json:"team_id"`
	AssignmentID primitive.ObjectID `bson:"assignment_id" json:"assignment_id"`
	Hyperlinks   []string           `bson:"hyperlinks,omitempty" json:"hyperlinks,omitempty"`
	Files        []SubmittedFile    `bson:"files,omitempty" json:"files,omitempty"`

	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type SubmittedFile struct {
	Name       string    `bson:"name" json:"name"`
	Path       string    `bson:"path" json:"path"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// HasWork reports whether anything was submitted.
func (s TeamSubmission) HasWork() bool {
	return len(s.Hyperlinks) > 0 || len(s.Files) > 0
}
