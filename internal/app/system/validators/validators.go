// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/stratatopics/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
//
// Collections must exist before the first transaction touches them: MongoDB
// refuses implicit collection creation inside some multi-document transactions.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Allocation ledger
	ensure("topics", topicsSchema())
	ensure("topic_signups", signupsSchema())

	// Collaborator collections read by the allocation engine and drop guard
	ensure("teams", teamsSchema())
	ensure("team_submissions", nil)
	ensure("due_dates", dueDatesSchema())

	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func topicsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"assignment_id", "identifier", "name", "category", "capacity", "confirmed", "next_seq"},
			"properties": bson.M{
				"assignment_id":         bson.M{"bsonType": "objectId"},
				"identifier":            bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name":                  bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"category":              bson.M{"bsonType": "string"},
				"capacity":              bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"confirmed":             bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"next_seq":              bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"restricted_to_team_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
			},
		},
	}
}

func signupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"topic_id", "assignment_id", "team_id", "status", "sequence"},
			"properties": bson.M{
				"topic_id":      bson.M{"bsonType": "objectId"},
				"assignment_id": bson.M{"bsonType": "objectId"},
				"team_id":       bson.M{"bsonType": "objectId"},
				"status":        bson.M{"enum": bson.A{models.SignupConfirmed, models.SignupWaitlisted}},
				"sequence":      bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"created_at":    bson.M{"bsonType": "date"},
				"updated_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}

func teamsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"assignment_id", "name"},
			"properties": bson.M{
				"assignment_id": bson.M{"bsonType": "objectId"},
				"name":          bson.M{"bsonType": "string", "minLength": 1},
				"member_ids":    bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
			},
		},
	}
}

func dueDatesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"assignment_id", "kind", "due_at"},
			"properties": bson.M{
				"assignment_id": bson.M{"bsonType": "objectId"},
				"kind":          bson.M{"enum": bson.A{models.DueDropTopic, models.DueSubmission, models.DueReview}},
				"due_at":        bson.M{"bsonType": "date"},
			},
		},
	}
}
