// internal/app/features/topics/handler.go
package topics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	errorsfeature "github.com/dalemusser/stratatopics/internal/app/features/errors"
	"github.com/dalemusser/stratatopics/internal/app/policy/droppolicy"
	"github.com/dalemusser/stratatopics/internal/app/store/audit"
	teamstore "github.com/dalemusser/stratatopics/internal/app/store/teams"
	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"github.com/dalemusser/stratatopics/internal/app/system/auditlog"
	"github.com/dalemusser/stratatopics/internal/app/system/auth"
	"github.com/dalemusser/stratatopics/internal/app/system/events"
	"github.com/dalemusser/stratatopics/internal/app/system/inputval"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DropGuard decides whether a team may still leave its topic.
type DropGuard interface {
	CanDrop(ctx context.Context, teamID, assignmentID primitive.ObjectID) (droppolicy.Decision, error)
}

// Handler serves the topic and signup endpoints.
type Handler struct {
	Engine  *allocation.Engine
	Topics  *topicstore.Store
	Teams   *teamstore.Store
	Guard   DropGuard
	Audit   *auditlog.Logger
	History *audit.Store
	Events  events.Publisher
	Log     *zap.Logger
}

// NewHandler constructs the topics Handler. A nil publisher disables events.
func NewHandler(db *mongo.Database, engine *allocation.Engine, guard DropGuard, auditLog *auditlog.Logger, pub events.Publisher, logger *zap.Logger) *Handler {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Handler{
		Engine:  engine,
		Topics:  topicstore.New(db),
		Teams:   teamstore.New(db),
		Guard:   guard,
		Audit:   auditLog,
		History: audit.New(db),
		Events:  pub,
		Log:     logger,
	}
}

// actor returns the signed-in user's ID in both forms used downstream.
func actor(r *http.Request) (string, primitive.ObjectID) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return "", primitive.NilObjectID
	}
	oid, _ := primitive.ObjectIDFromHex(u.ID)
	return u.ID, oid
}

// objectIDParam parses a chi URL parameter. On failure it writes a 400.
func objectIDParam(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		errorsfeature.Write(w, http.StatusBadRequest, "invalid_id", "Invalid "+name+".")
		return primitive.NilObjectID, false
	}
	return oid, true
}

// decode reads a JSON body of at most limit bytes into v. On failure it
// writes a 400.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "Request body must be valid JSON."
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			msg = "Request body is too large."
		case errors.Is(err, io.EOF):
			msg = "Request body is empty."
		}
		errorsfeature.Write(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}

// valid runs the struct rules on v. On failure it writes a 400 with the
// per-field messages.
func valid(w http.ResponseWriter, v any) bool {
	res := inputval.Validate(v)
	if !res.HasErrors() {
		return true
	}
	fields := make(map[string]string, len(res.Errors))
	for _, fe := range res.Errors {
		if _, seen := fields[fe.Field]; !seen {
			fields[fe.Field] = fe.Message
		}
	}
	errorsfeature.WriteFields(w, res.First(), fields)
	return false
}

// publish sends ev without failing the request; the decision has committed.
func (h *Handler) publish(ctx context.Context, ev events.Event) {
	if err := h.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		h.Log.Warn("publish allocation event failed",
			zap.String("type", ev.Type),
			zap.String("topic_id", ev.TopicID.Hex()),
			zap.Error(err))
	}
}
