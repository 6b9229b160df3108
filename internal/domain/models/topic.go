// internal/domain/models/topic.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Topic is a capacity-limited project topic that teams sign up for within
// one assignment.
//
// NOTE:
//   - Confirmed mirrors the number of confirmed signup entries and is the
//     value the allocation engine compares against Capacity. The ledger
//     (topic_signups) stays the source of truth; the audit worker repairs drift.
//   - Every ledger mutation bumps Version so concurrent writers on the same
//     topic always touch this document.
type Topic struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssignmentID primitive.ObjectID `bson:"assignment_id" json:"assignment_id"`
	Identifier   string             `bson:"identifier" json:"identifier"` // short code, unique per assignment
	Name         string             `bson:"name" json:"name"`
	NameCI       string             `bson:"name_ci" json:"-"`
	Category     string             `bson:"category" json:"category"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"` // sanitized HTML
	Link         string             `bson:"link,omitempty" json:"link,omitempty"`

	Capacity           int                 `bson:"capacity" json:"capacity"` // 0 = waitlist only
	RestrictedToTeamID *primitive.ObjectID `bson:"restricted_to_team_id,omitempty" json:"restricted_to_team_id,omitempty"`

	Confirmed int   `bson:"confirmed" json:"-"`
	NextSeq   int64 `bson:"next_seq" json:"-"`
	Version   int64 `bson:"version" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsRestricted reports whether only one team may hold this topic.
func (t Topic) IsRestricted() bool {
	return t.RestrictedToTeamID != nil && !t.RestrictedToTeamID.IsZero()
}

// AllowsTeam reports whether teamID may sign up for the topic.
func (t Topic) AllowsTeam(teamID primitive.ObjectID) bool {
	return !t.IsRestricted() || *t.RestrictedToTeamID == teamID
}
