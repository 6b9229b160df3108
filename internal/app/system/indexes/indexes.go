// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Names of the indexes that carry allocation invariants. Stores match
// duplicate-key errors against these.
const (
	SignupsTopicTeam             = "uniq_signups_topic_team"
	SignupsAssignmentTeamConfirm = "uniq_signups_assignment_team_confirmed"
	TopicsAssignmentIdentifier   = "uniq_topics_assignment_identifier"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureTopics(ctx, db); err != nil {
		problems = append(problems, "topics: "+err.Error())
	}
	if err := ensureSignups(ctx, db); err != nil {
		problems = append(problems, "topic_signups: "+err.Error())
	}
	if err := ensureTeams(ctx, db); err != nil {
		problems = append(problems, "teams: "+err.Error())
	}
	if err := ensureSubmissions(ctx, db); err != nil {
		problems = append(problems, "team_submissions: "+err.Error())
	}
	if err := ensureDueDates(ctx, db); err != nil {
		problems = append(problems, "due_dates: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Per-collection index sets                                                   */
/* -------------------------------------------------------------------------- */

func ensureTopics(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("topics"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignment_id", Value: 1}, {Key: "identifier", Value: 1}},
			Options: options.Index().SetName(TopicsAssignmentIdentifier).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "assignment_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_topics_assignment_nameci"),
		},
	})
}

func ensureSignups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("topic_signups"), []mongo.IndexModel{
		{
			// at most one entry per (topic, team)
			Keys:    bson.D{{Key: "topic_id", Value: 1}, {Key: "team_id", Value: 1}},
			Options: options.Index().SetName(SignupsTopicTeam).SetUnique(true),
		},
		{
			// at most one confirmed entry per (assignment, team)
			Keys: bson.D{{Key: "assignment_id", Value: 1}, {Key: "team_id", Value: 1}},
			Options: options.Index().
				SetName(SignupsAssignmentTeamConfirm).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: "confirmed"}}),
		},
		{
			// FIFO waitlist scans and roster listings
			Keys:    bson.D{{Key: "topic_id", Value: 1}, {Key: "status", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetName("idx_signups_topic_status_seq"),
		},
		{
			// cross-topic purge and team views
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "assignment_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_signups_team_assignment_status"),
		},
	})
}

func ensureTeams(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("teams"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignment_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_teams_assignment_nameci"),
		},
		{
			Keys:    bson.D{{Key: "member_ids", Value: 1}},
			Options: options.Index().SetName("idx_teams_members"),
		},
	})
}

func ensureSubmissions(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("team_submissions"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "assignment_id", Value: 1}},
			Options: options.Index().SetName("uniq_submissions_team_assignment").SetUnique(true),
		},
	})
}

func ensureDueDates(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("due_dates"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignment_id", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().SetName("uniq_duedates_assignment_kind").SetUnique(true),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "topic_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_topic_created"),
		},
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_team_created"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_created"),
		},
	})
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  *bool  `bson:"unique,omitempty"`
	Partial bson.D `bson:"partialFilterExpression,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(p *bool) bool { return p != nil && *p }

// sameOptions compares the options that change index semantics.
func sameOptions(m mongo.IndexModel, ex existingIndex) bool {
	var unique *bool
	var partial bson.D
	if m.Options != nil {
		unique = m.Options.Unique
		if d, ok := m.Options.PartialFilterExpression.(bson.D); ok {
			partial = d
		}
	}
	if boolVal(unique) != boolVal(ex.Unique) {
		return false
	}
	if len(partial) == 0 && len(ex.Partial) == 0 {
		return true
	}
	return keySig(partial) == keySig(ex.Partial)
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// ensureIndexSet creates missing indexes, reuses matching ones, and drops and
// recreates indexes whose name or options drifted from the desired model.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listIndexes(ctx, coll)

	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		ex, found := existing[sig]
		switch {
		case found && sameOptions(m, ex) && (name == "" || ex.Name == name):
			zap.L().Debug("reusing existing index",
				zap.String("collection", coll.Name()),
				zap.String("name", ex.Name),
				zap.String("keys", sig))
			continue

		case found:
			zap.L().Info("replacing index",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("to", name),
				zap.String("keys", sig))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if mongo.IsDuplicateKeyError(err) && m.Options != nil && boolVal(m.Options.Unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
				continue
			}
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", m.Options != nil && boolVal(m.Options.Unique)),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
