// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
	"github.com/dalemusser/stratatopics/internal/app/system/events"
	"github.com/dalemusser/stratatopics/internal/app/system/indexes"
	"github.com/dalemusser/stratatopics/internal/app/system/metrics"
	"github.com/dalemusser/stratatopics/internal/app/system/ratelimit"
	"github.com/dalemusser/stratatopics/internal/app/system/timeouts"
	"github.com/dalemusser/stratatopics/internal/app/system/validators"
	"github.com/dalemusser/stratatopics/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects MongoDB and builds the back-end services that hang off
// it. A failed NATS connection is not fatal; events are dropped instead.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize).
		SetAppName("stratatopics"))
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping MongoDB: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}
	wireServices(&deps, appCfg, logger)
	return deps, nil
}

// wireServices builds everything that only needs the database handle.
func wireServices(deps *DBDeps, appCfg AppConfig, logger *zap.Logger) {
	if appCfg.MetricsEnabled {
		deps.Registry = metrics.NewRegistry()
		deps.Metrics = metrics.NewPrometheus(deps.Registry, "stratatopics")
	} else {
		deps.Metrics = metrics.NewNop()
	}

	deps.Events = events.NopPublisher{}
	if appCfg.NATSURL != "" {
		pub, err := events.Connect(appCfg.NATSURL, appCfg.NATSSubjectPrefix, logger)
		if err != nil {
			logger.Warn("NATS unavailable; allocation events will not be published",
				zap.String("url", appCfg.NATSURL), zap.Error(err))
		} else {
			deps.Events = pub
		}
	}

	deps.Engine = allocation.New(deps.MongoDatabase,
		allocation.WithLogger(logger),
		allocation.WithMetrics(deps.Metrics),
		allocation.WithMaxAttempts(appCfg.SignupMaxAttempts))

	deps.Limiter = ratelimit.New(appCfg.SignupRatePerMinute, appCfg.SignupRateBurst)

	if appCfg.LedgerAuditInterval > 0 {
		deps.LedgerAudit = workers.NewLedgerAudit(deps.Engine, topicstore.New(deps.MongoDatabase),
			deps.Metrics, logger, appCfg.LedgerAuditInterval)
	}
}

// EnsureSchema creates collections with their validators and reconciles indexes.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
