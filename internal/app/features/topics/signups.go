// internal/app/features/topics/signups.go
package topics

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	errorsfeature "github.com/dalemusser/stratatopics/internal/app/features/errors"
	"github.com/dalemusser/stratatopics/internal/app/policy/teampolicy"
	"github.com/dalemusser/stratatopics/internal/app/system/events"
	"github.com/dalemusser/stratatopics/internal/app/system/limits"
	"github.com/dalemusser/stratatopics/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// mayActFor writes a 403 (or 500) and returns false when the user may not
// act for teamID.
func (h *Handler) mayActFor(ctx context.Context, w http.ResponseWriter, r *http.Request, teamID primitive.ObjectID) bool {
	ok, err := teampolicy.CanActForTeam(ctx, h.Teams, r, teamID)
	if err != nil {
		h.Log.Error("team membership check failed", zap.String("team_id", teamID.Hex()), zap.Error(err))
		errorsfeature.Write(w, http.StatusInternalServerError, "internal", "Something went wrong. Please try again.")
		return false
	}
	if !ok {
		errorsfeature.Write(w, http.StatusForbidden, "forbidden", "You may only act for a team you belong to.")
		return false
	}
	return true
}

// HandleSignup handles POST /topics/{id}/signups.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	var req signupRequest
	if !decode(w, r, limits.MaxJSONBody, &req) || !valid(w, req) {
		return
	}
	teamID, _ := primitive.ObjectIDFromHex(req.TeamID)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if !h.mayActFor(ctx, w, r, teamID) {
		return
	}

	actorStr, actorOID := actor(r)
	res, err := h.Engine.SignUp(ctx, topicID, teamID)
	if err != nil {
		if allocation.KindOf(err) != allocation.KindUnknown {
			h.Audit.SignupRejected(ctx, r, actorStr, topicID, teamID, errorsfeature.Code(err))
		}
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	body := signupResponse{Outcome: res.Outcome, Entry: res.Entry, Purged: res.Purged, Promoted: res.Promoted}
	if res.Outcome == allocation.OutcomeAlreadySignedUp {
		errorsfeature.JSON(w, http.StatusOK, body)
		return
	}

	h.Audit.SignupDecided(ctx, r, actorStr, res.Topic, teamID, res.Entry)
	h.Audit.WaitlistPurged(ctx, r, actorStr, res.Topic, teamID, res.Purged)

	typ := events.TypeSignupWaitlisted
	if res.Outcome == allocation.OutcomeConfirmed {
		typ = events.TypeSignupConfirmed
	}
	h.publish(ctx, events.New(typ, res.Topic, teamID).WithActor(actorOID))
	if p := res.Promoted; p != nil {
		h.Audit.Promoted(ctx, r, actorStr, res.Topic, p.TeamID, "signup")
		h.publish(ctx, events.New(events.TypeSignupPromoted, res.Topic, p.TeamID).WithActor(actorOID))
	}

	errorsfeature.JSON(w, http.StatusCreated, body)
}

// HandleDrop handles DELETE /topics/{id}/signups/{teamID}. The drop guard
// runs first whoever asks; a denial answers 403 with the reason as code.
func (h *Handler) HandleDrop(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	teamID, ok := objectIDParam(w, r, "teamID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if !h.mayActFor(ctx, w, r, teamID) {
		return
	}

	topic, err := h.Engine.Topic(ctx, topicID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	actorStr, actorOID := actor(r)
	decision, err := h.Guard.CanDrop(ctx, teamID, topic.AssignmentID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	if !decision.Allowed {
		h.Audit.DropDenied(ctx, r, actorStr, topic, teamID, string(decision.Reason))
		errorsfeature.Write(w, http.StatusForbidden, string(decision.Reason), decision.Reason.Message())
		return
	}

	res, err := h.Engine.DropTeam(ctx, topicID, teamID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}

	h.Audit.Dropped(ctx, r, actorStr, res.Topic, res.Dropped)
	h.publish(ctx, events.New(events.TypeSignupDropped, res.Topic, teamID).WithActor(actorOID))
	if p := res.Promoted; p != nil {
		h.Audit.Promoted(ctx, r, actorStr, res.Topic, p.TeamID, "drop")
		h.Audit.WaitlistPurged(ctx, r, actorStr, res.Topic, p.TeamID, res.Purged)
		h.publish(ctx, events.New(events.TypeSignupPromoted, res.Topic, p.TeamID).WithActor(actorOID))
	}

	errorsfeature.JSON(w, http.StatusOK, dropResponse{Dropped: res.Dropped, Promoted: res.Promoted})
}

// ServeConfirmed handles GET /topics/{id}/signups/confirmed.
func (h *Handler) ServeConfirmed(w http.ResponseWriter, r *http.Request) {
	h.serveTeams(w, r, h.Engine.ConfirmedTeams)
}

// ServeWaitlist handles GET /topics/{id}/signups/waitlist.
func (h *Handler) ServeWaitlist(w http.ResponseWriter, r *http.Request) {
	h.serveTeams(w, r, h.Engine.WaitlistedTeams)
}

func (h *Handler) serveTeams(w http.ResponseWriter, r *http.Request, list func(context.Context, primitive.ObjectID) ([]primitive.ObjectID, error)) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ids, err := list(ctx, topicID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, teamsResponse{TopicID: topicID, TeamIDs: ids})
}

// ServeSlots handles GET /topics/{id}/slots.
func (h *Handler) ServeSlots(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Engine.AvailableSlots(ctx, topicID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, slotsResponse{TopicID: topicID, AvailableSlots: n})
}
