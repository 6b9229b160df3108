// internal/app/features/topics/admin.go
package topics

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	errorsfeature "github.com/dalemusser/stratatopics/internal/app/features/errors"
	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"github.com/dalemusser/stratatopics/internal/app/system/events"
	"github.com/dalemusser/stratatopics/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratatopics/internal/app/system/limits"
	"github.com/dalemusser/stratatopics/internal/app/system/timeouts"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ServeList handles GET /topics?assignment_id=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := primitive.ObjectIDFromHex(strings.TrimSpace(r.URL.Query().Get("assignment_id")))
	if err != nil {
		errorsfeature.Write(w, http.StatusBadRequest, "invalid_request", "assignment_id is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Topics.ListByAssignment(ctx, assignmentID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	views := make([]topicView, 0, len(list))
	for _, t := range list {
		views = append(views, newTopicView(t))
	}
	errorsfeature.JSON(w, http.StatusOK, topicListResponse{AssignmentID: assignmentID, Topics: views})
}

// HandleCreate handles POST /topics.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if !decode(w, r, limits.MaxTopicBody, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	req.Name = htmlsanitize.PlainText(req.Name)
	req.Category = htmlsanitize.PlainText(req.Category)
	req.Link = strings.TrimSpace(req.Link)
	if !valid(w, req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	assignmentID, _ := primitive.ObjectIDFromHex(req.AssignmentID)
	topic := models.Topic{
		AssignmentID: assignmentID,
		Identifier:   req.Identifier,
		Name:         req.Name,
		Category:     req.Category,
		Description:  htmlsanitize.Sanitize(req.Description),
		Link:         req.Link,
		Capacity:     *req.Capacity,
	}
	if req.RestrictedToTeamID != "" {
		teamID, _ := primitive.ObjectIDFromHex(req.RestrictedToTeamID)
		ok, err := h.Teams.TeamExists(ctx, teamID)
		if err != nil {
			errorsfeature.WriteError(w, r, h.Log, err)
			return
		}
		if !ok {
			errorsfeature.WriteError(w, r, h.Log, allocation.ErrTeamNotFound)
			return
		}
		topic.RestrictedToTeamID = &teamID
	}

	created, err := h.Topics.Create(ctx, topic)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	actorID, _ := actor(r)
	h.Audit.TopicCreated(ctx, r, actorID, created)
	errorsfeature.JSON(w, http.StatusCreated, newTopicView(created))
}

// ServeRoster handles GET /topics/{id}.
func (h *Handler) ServeRoster(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	roster, err := h.Engine.Roster(ctx, topicID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, rosterResponse{
		Topic:          roster.Topic,
		Confirmed:      roster.Confirmed,
		Waitlist:       roster.Waitlist,
		AvailableSlots: roster.AvailableSlots,
	})
}

// HandleUpdate handles PATCH /topics/{id}. Capacity has its own endpoint.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	var req updateTopicRequest
	if !decode(w, r, limits.MaxTopicBody, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	topic, err := h.Engine.Topic(ctx, topicID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	info := topicInfo{
		Name:        topic.Name,
		Category:    topic.Category,
		Description: topic.Description,
		Link:        topic.Link,
	}
	if req.Name != nil {
		info.Name = htmlsanitize.PlainText(*req.Name)
	}
	if req.Category != nil {
		info.Category = htmlsanitize.PlainText(*req.Category)
	}
	if req.Description != nil {
		info.Description = htmlsanitize.Sanitize(*req.Description)
	}
	if req.Link != nil {
		info.Link = strings.TrimSpace(*req.Link)
	}
	if !valid(w, info) {
		return
	}

	err = h.Topics.UpdateInfo(ctx, topicID, topicstore.Info{
		Name:        info.Name,
		Category:    info.Category,
		Description: info.Description,
		Link:        info.Link,
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = allocation.ErrTopicNotFound
	}
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	topic.Name, topic.Category, topic.Description, topic.Link = info.Name, info.Category, info.Description, info.Link
	actorID, _ := actor(r)
	h.Audit.TopicUpdated(ctx, r, actorID, topic)
	errorsfeature.JSON(w, http.StatusOK, newTopicView(topic))
}

// HandleCapacity handles POST /topics/{id}/capacity.
func (h *Handler) HandleCapacity(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	var req capacityRequest
	if !decode(w, r, limits.MaxJSONBody, &req) || !valid(w, req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Engine.UpdateCapacity(ctx, topicID, *req.Capacity)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	actorStr, actorOID := actor(r)
	h.Audit.CapacityChanged(ctx, r, actorStr, res.Topic, res.Previous, len(res.Promoted))
	for _, p := range res.Promoted {
		h.Audit.Promoted(ctx, r, actorStr, res.Topic, p.TeamID, "capacity")
		h.publish(ctx, events.New(events.TypeSignupPromoted, res.Topic, p.TeamID).WithActor(actorOID))
	}

	promoted := res.Promoted
	if promoted == nil {
		promoted = []models.SignupEntry{}
	}
	errorsfeature.JSON(w, http.StatusOK, capacityResponse{
		Topic:    newTopicView(res.Topic),
		Previous: res.Previous,
		Promoted: promoted,
	})
}

// HandleDelete handles DELETE /topics/{id}. Every team that held or waited
// for the topic is named in the topic.deleted event.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Engine.DeleteTopic(ctx, topicID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	teamIDs := make([]primitive.ObjectID, 0, len(res.Entries))
	for _, en := range res.Entries {
		teamIDs = append(teamIDs, en.TeamID)
	}

	actorStr, actorOID := actor(r)
	h.Audit.TopicDeleted(ctx, r, actorStr, res.Topic, len(res.Entries))
	ev := events.New(events.TypeTopicDeleted, res.Topic, primitive.NilObjectID).WithActor(actorOID)
	ev.TeamIDs = teamIDs
	h.publish(ctx, ev)

	errorsfeature.JSON(w, http.StatusOK, deleteResponse{TopicID: topicID, TeamIDs: teamIDs})
}
