// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/stratatopics/internal/app/system/events"
	"github.com/dalemusser/stratatopics/internal/app/system/ratelimit"
	"github.com/dalemusser/stratatopics/internal/app/system/workers"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
)

// Metrics is what the engine and the audit worker record into.
type Metrics interface {
	allocation.Metrics
	workers.SweepRecorder
}

// DBDeps holds database and back-end dependencies for the app.
// Everything here is built once in ConnectDB and torn down in Shutdown.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Engine      *allocation.Engine
	Events      events.Publisher
	Metrics     Metrics
	Registry    *prometheus.Registry // nil when metrics are disabled
	Limiter     *ratelimit.Limiter
	LedgerAudit *workers.LedgerAudit // nil when the worker is disabled
}
