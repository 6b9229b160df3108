// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for StrataTopics.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STRATATOPICS_MONGO_URI, STRATATOPICS_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "strata_topics", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "", Desc: "Key of the shared session cookie (required in production)"},
	{Name: "session_name", Default: "stratatopics-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime (e.g., 24h)"},

	// Allocation events
	{Name: "nats_url", Default: "", Desc: "NATS server URL for allocation events (blank disables publishing)"},
	{Name: "nats_subject_prefix", Default: "stratatopics", Desc: "Subject prefix for allocation events"},

	// Allocation engine
	{Name: "signup_max_attempts", Default: 5, Desc: "Transaction attempts per signup or drop before answering 503"},
	{Name: "signup_rate_per_minute", Default: 30, Desc: "Signup/drop requests allowed per user per minute"},
	{Name: "signup_rate_burst", Default: 10, Desc: "Signup/drop burst size per user"},
	{Name: "ledger_audit_interval", Default: "5m", Desc: "How often the ledger audit worker runs (0 disables it)"},

	// Audit logging settings
	{Name: "audit_log_signup", Default: "all", Desc: "Signup event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "metrics_enabled", Default: true, Desc: "Serve Prometheus metrics on /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATATOPICS_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STRATATOPICS", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		NATSURL:           appValues.String("nats_url"),
		NATSSubjectPrefix: appValues.String("nats_subject_prefix"),

		SignupMaxAttempts:   appValues.Int("signup_max_attempts"),
		SignupRatePerMinute: appValues.Int("signup_rate_per_minute"),
		SignupRateBurst:     appValues.Int("signup_rate_burst"),
		LedgerAuditInterval: appValues.Duration("ledger_audit_interval", 5*time.Minute),

		AuditLogSignup: appValues.String("audit_log_signup"),
		AuditLogAdmin:  appValues.String("audit_log_admin"),

		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here so a typo fails before any connection
// attempt.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must not be empty")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}

	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 characters in production")
	}
	if appCfg.SessionMaxAge <= 0 {
		return fmt.Errorf("session_max_age must be positive")
	}

	if appCfg.SignupMaxAttempts < 1 || appCfg.SignupMaxAttempts > 50 {
		return fmt.Errorf("signup_max_attempts must be between 1 and 50, got %d", appCfg.SignupMaxAttempts)
	}
	if appCfg.SignupRatePerMinute < 1 {
		return fmt.Errorf("signup_rate_per_minute must be at least 1, got %d", appCfg.SignupRatePerMinute)
	}
	if appCfg.SignupRateBurst < 1 {
		return fmt.Errorf("signup_rate_burst must be at least 1, got %d", appCfg.SignupRateBurst)
	}
	if appCfg.LedgerAuditInterval < 0 {
		return fmt.Errorf("ledger_audit_interval must not be negative")
	}

	for name, v := range map[string]string{
		"audit_log_signup": appCfg.AuditLogSignup,
		"audit_log_admin":  appCfg.AuditLogAdmin,
	} {
		switch v {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", name, v)
		}
	}

	return nil
}
