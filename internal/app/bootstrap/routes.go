// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	assignmentsfeature "github.com/dalemusser/stratatopics/internal/app/features/assignments"
	errorsfeature "github.com/dalemusser/stratatopics/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratatopics/internal/app/features/health"
	topicsfeature "github.com/dalemusser/stratatopics/internal/app/features/topics"
	"github.com/dalemusser/stratatopics/internal/app/policy/droppolicy"
	"github.com/dalemusser/stratatopics/internal/app/store/audit"
	"github.com/dalemusser/stratatopics/internal/app/system/auditlog"
	"github.com/dalemusser/stratatopics/internal/app/system/auth"
	"github.com/dalemusser/stratatopics/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Every route answers JSON; the session
// cookie is issued by the course platform and only read here.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionKey := appCfg.SessionKey
	if sessionKey == "" {
		logger.Warn("no session_key configured; using a random development key")
		sessionKey = auth.GenerateDevKey()
	}
	sessionMgr, err := auth.NewSessionManager(sessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	auditLogger := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Signup: appCfg.AuditLogSignup,
		Admin:  appCfg.AuditLogAdmin,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if deps.Registry != nil {
		r.Handle("/metrics", metrics.Handler(deps.Registry))
	}

	// Topics, signups and drops
	topicsHandler := topicsfeature.NewHandler(deps.MongoDatabase, deps.Engine,
		droppolicy.NewFromDB(deps.MongoDatabase), auditLogger, deps.Events, logger)
	r.Mount("/topics", topicsfeature.Routes(topicsHandler, sessionMgr, deps.Limiter))

	// A team's own view of its signups
	assignmentsHandler := assignmentsfeature.NewHandler(deps.MongoDatabase, deps.Engine, logger)
	r.Mount("/assignments", assignmentsfeature.Routes(assignmentsHandler, sessionMgr))

	return r, nil
}
