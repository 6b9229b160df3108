package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team is a group of participants working on one assignment.
// Individual participants are modelled as single-member teams.
type Team struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AssignmentID primitive.ObjectID   `bson:"assignment_id" json:"assignment_id"`
	Name         string               `bson:"name" json:"name"`
	NameCI       string               `bson:"name_ci" json:"-"`
	MemberIDs    []primitive.ObjectID `bson:"member_ids" json:"member_ids"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
