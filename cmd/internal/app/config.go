package app

import "time"

// Config contains the runtime configuration loaded from environment variables.
// Auth, session, and password settings are loaded by their own packages.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// DatabaseURL is the elevated connection used for credential checks.
	// Empty selects the in-memory subject store.
	DatabaseURL string
	// AuthDatabaseURL is the least-privilege connection for subject lookups.
	// Empty falls back to DatabaseURL.
	AuthDatabaseURL string
	DBMaxConns      int32
	DBMinConns      int32
	DBPublicSchema  string
	DBPrivateSchema string

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool

	MetricsEnabled bool
	MetricsPath    string

	// Optional subject created at startup, for local development.
	DevSubjectEmail    string
	DevSubjectPassword string
	DevSubjectRole     string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("AUTHD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("AUTHD_LOG_LEVEL", "info"),
		LogFormat: EnvString("AUTHD_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("AUTHD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("AUTHD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("AUTHD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("AUTHD_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("AUTHD_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    EnvInt("AUTHD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:     EnvString("AUTHD_DATABASE_URL", ""),
		AuthDatabaseURL: EnvString("AUTHD_AUTH_DATABASE_URL", ""),
		DBMaxConns:      EnvInt32("AUTHD_DB_MAX_CONNS", 10),
		DBMinConns:      EnvInt32("AUTHD_DB_MIN_CONNS", 0),
		DBPublicSchema:  EnvString("AUTHD_DB_PUBLIC_SCHEMA", "public"),
		DBPrivateSchema: EnvString("AUTHD_DB_PRIVATE_SCHEMA", "private"),

		ReadinessRequireDB: EnvBool("AUTHD_READINESS_REQUIRE_DB", false),

		MetricsEnabled: EnvBool("AUTHD_METRICS_ENABLED", true),
		MetricsPath:    EnvString("AUTHD_METRICS_PATH", "/metrics"),

		DevSubjectEmail:    EnvString("AUTHD_DEV_SUBJECT_EMAIL", ""),
		DevSubjectPassword: EnvString("AUTHD_DEV_SUBJECT_PASSWORD", ""),
		DevSubjectRole:     EnvString("AUTHD_DEV_SUBJECT_ROLE", ""),
	}
}
