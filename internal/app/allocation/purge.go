package allocation

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PurgeOtherWaitlistEntries removes the team's waitlisted entries on every
// topic of the assignment except keepTopicID. Confirmed entries and other
// teams' entries are never touched. Running it twice is harmless.
func (e *Engine) PurgeOtherWaitlistEntries(ctx context.Context, assignmentID, teamID, keepTopicID primitive.ObjectID) (int64, error) {
	n, err := e.signups.DeleteWaitlistedExcept(ctx, assignmentID, teamID, keepTopicID)
	if err != nil {
		return 0, fmt.Errorf("purge waitlist: %w", err)
	}
	e.metrics.RecordPurge(n)
	if n > 0 {
		e.log.Info("waitlist entries purged",
			zap.String("team_id", teamID.Hex()),
			zap.String("kept_topic_id", keepTopicID.Hex()),
			zap.Int64("deleted", n))
	}
	return n, nil
}
