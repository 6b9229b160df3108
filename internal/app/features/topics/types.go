// internal/app/features/topics/types.go
package topics

import (
	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createTopicRequest struct {
	AssignmentID       string `json:"assignment_id" validate:"required,objectid" label:"Assignment"`
	Identifier         string `json:"identifier" validate:"required,max=32" label:"Identifier"`
	Name               string `json:"name" validate:"required,max=200" label:"Name"`
	Category           string `json:"category" validate:"required,max=100" label:"Category"`
	Description        string `json:"description" validate:"max=20000" label:"Description"`
	Link               string `json:"link" validate:"omitempty,httpurl" label:"Link"`
	Capacity           *int   `json:"capacity" validate:"required,lte=10000" label:"Capacity"`
	RestrictedToTeamID string `json:"restricted_to_team_id" validate:"omitempty,objectid" label:"Restricted team"`
}

// updateTopicRequest carries only the fields being changed. The merged
// result is checked as topicInfo.
type updateTopicRequest struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	Link        *string `json:"link"`
}

type topicInfo struct {
	Name        string `json:"name" validate:"required,max=200" label:"Name"`
	Category    string `json:"category" validate:"required,max=100" label:"Category"`
	Description string `json:"description" validate:"max=20000" label:"Description"`
	Link        string `json:"link" validate:"omitempty,httpurl" label:"Link"`
}

type capacityRequest struct {
	Capacity *int `json:"capacity" validate:"required,lte=10000" label:"Capacity"`
}

type signupRequest struct {
	TeamID string `json:"team_id" validate:"required,objectid" label:"Team"`
}

type topicView struct {
	models.Topic
	AvailableSlots int `json:"available_slots"`
}

func newTopicView(t models.Topic) topicView {
	return topicView{Topic: t, AvailableSlots: allocation.Slots(t)}
}

type topicListResponse struct {
	AssignmentID primitive.ObjectID `json:"assignment_id"`
	Topics       []topicView        `json:"topics"`
}

type rosterResponse struct {
	Topic          models.Topic         `json:"topic"`
	Confirmed      []models.SignupEntry `json:"confirmed"`
	Waitlist       []models.SignupEntry `json:"waitlist"`
	AvailableSlots int                  `json:"available_slots"`
}

type signupResponse struct {
	Outcome allocation.Outcome `json:"outcome"`
	Entry   models.SignupEntry `json:"entry"`
	Purged  int64              `json:"purged_waitlist_entries"`
	// Promoted is an older waitlisted team that took a slot freed while
	// this signup was queueing.
	Promoted *models.SignupEntry `json:"promoted,omitempty"`
}

type dropResponse struct {
	Dropped  models.SignupEntry  `json:"dropped"`
	Promoted *models.SignupEntry `json:"promoted,omitempty"`
}

type capacityResponse struct {
	Topic    topicView            `json:"topic"`
	Previous int                  `json:"previous_capacity"`
	Promoted []models.SignupEntry `json:"promoted"`
}

type deleteResponse struct {
	TopicID primitive.ObjectID   `json:"topic_id"`
	TeamIDs []primitive.ObjectID `json:"released_team_ids"`
}

type teamsResponse struct {
	TopicID primitive.ObjectID   `json:"topic_id"`
	TeamIDs []primitive.ObjectID `json:"team_ids"`
}

type slotsResponse struct {
	TopicID        primitive.ObjectID `json:"topic_id"`
	AvailableSlots int                `json:"available_slots"`
}
