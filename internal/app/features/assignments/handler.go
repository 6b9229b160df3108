// internal/app/features/assignments/handler.go
package assignments

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	errorsfeature "github.com/dalemusser/stratatopics/internal/app/features/errors"
	"github.com/dalemusser/stratatopics/internal/app/policy/teampolicy"
	teamstore "github.com/dalemusser/stratatopics/internal/app/store/teams"
	"github.com/dalemusser/stratatopics/internal/app/system/timeouts"
	"github.com/dalemusser/stratatopics/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves a team's view of its signups in one assignment.
type Handler struct {
	Engine *allocation.Engine
	Teams  *teamstore.Store
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, engine *allocation.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		Engine: engine,
		Teams:  teamstore.New(db),
		Log:    logger,
	}
}

type signupView struct {
	models.SignupEntry
	// WaitlistPosition is 1-based; zero for confirmed entries.
	WaitlistPosition int64 `json:"waitlist_position,omitempty"`
}

type teamSignupsResponse struct {
	AssignmentID primitive.ObjectID `json:"assignment_id"`
	TeamID       primitive.ObjectID `json:"team_id"`
	Signups      []signupView       `json:"signups"`
}

// ServeTeamSignups handles GET /assignments/{id}/teams/{teamID}/signups.
func (h *Handler) ServeTeamSignups(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		errorsfeature.Write(w, http.StatusBadRequest, "invalid_id", "Invalid assignment id.")
		return
	}
	teamID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "teamID"))
	if err != nil {
		errorsfeature.Write(w, http.StatusBadRequest, "invalid_id", "Invalid team id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ok, err := teampolicy.CanActForTeam(ctx, h.Teams, r, teamID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	if !ok {
		errorsfeature.Write(w, http.StatusForbidden, "forbidden", "You may only view a team you belong to.")
		return
	}

	list, err := h.Engine.TeamSignups(ctx, assignmentID, teamID)
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	views := make([]signupView, 0, len(list))
	for _, s := range list {
		views = append(views, signupView{SignupEntry: s.Entry, WaitlistPosition: s.Position})
	}
	errorsfeature.JSON(w, http.StatusOK, teamSignupsResponse{
		AssignmentID: assignmentID,
		TeamID:       teamID,
		Signups:      views,
	})
}
