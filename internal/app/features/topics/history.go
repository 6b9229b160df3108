// internal/app/features/topics/history.go
package topics

import (
	"context"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratatopics/internal/app/features/errors"
	"github.com/dalemusser/stratatopics/internal/app/store/audit"
	"github.com/dalemusser/stratatopics/internal/app/system/paging"
	"github.com/dalemusser/stratatopics/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type historyEntry struct {
	ID            primitive.ObjectID  `json:"id"`
	CreatedAt     time.Time           `json:"created_at"`
	Category      string              `json:"category"`
	EventType     string              `json:"event_type"`
	TeamID        *primitive.ObjectID `json:"team_id,omitempty"`
	ActorID       *primitive.ObjectID `json:"actor_id,omitempty"`
	Success       bool                `json:"success"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Details       map[string]string   `json:"details,omitempty"`
}

type historyResponse struct {
	TopicID primitive.ObjectID `json:"topic_id"`
	Events  []historyEntry     `json:"events"`
	paging.Range
}

// ServeHistory handles GET /topics/{id}/history?start=. Events come newest
// first, one page at a time. Events outlive their topic, so a deleted topic
// still answers.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	topicID, ok := objectIDParam(w, r, "id")
	if !ok {
		return
	}
	start := paging.ParseStart(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.History.Query(ctx, audit.QueryFilter{
		TopicID: &topicID,
		Limit:   paging.LimitPlusOne(),
		Offset:  paging.Offset(start),
	})
	if err != nil {
		errorsfeature.WriteError(w, r, h.Log, err)
		return
	}
	hasNext := paging.TrimPage(&rows)

	out := make([]historyEntry, 0, len(rows))
	for _, ev := range rows {
		out = append(out, historyEntry{
			ID:            ev.ID,
			CreatedAt:     ev.CreatedAt,
			Category:      ev.Category,
			EventType:     ev.EventType,
			TeamID:        ev.TeamID,
			ActorID:       ev.ActorID,
			Success:       ev.Success,
			FailureReason: ev.FailureReason,
			Details:       ev.Details,
		})
	}
	errorsfeature.JSON(w, http.StatusOK, historyResponse{
		TopicID: topicID,
		Events:  out,
		Range:   paging.ComputeRange(start, len(out), hasNext),
	})
}
