// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS, body limits).
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Shared session cookie issued by the course platform
	SessionKey    string // Secret key used to verify session cookies
	SessionName   string // Cookie name (default: stratatopics-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// Allocation events
	NATSURL           string // blank disables publishing
	NATSSubjectPrefix string

	// Allocation engine
	SignupMaxAttempts   int // transaction attempts per signup/drop before giving up
	SignupRatePerMinute int // per-user signup/drop requests per minute
	SignupRateBurst     int
	LedgerAuditInterval time.Duration // 0 disables the ledger audit worker

	// Audit logging: "all", "db", "log" or "off"
	AuditLogSignup string
	AuditLogAdmin  string

	MetricsEnabled bool
}
