// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, database connection parameters, rate limiting, observability, and
// the moderation policy tables (SLA windows, retention periods, claim TTL,
// appeal and ODS deadlines) that the rest of the engine consumes.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-moderation-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SLAPolicy is the resolution-deadline policy table for incoming reports.
// Windows are keyed by report type; trusted-flagger notices divide their
// window by TrustedFlaggerFactor (DSA Art.22 priority handling).
type SLAPolicy struct {
	IllegalWindow        time.Duration // SLA_WINDOW_ILLEGAL
	PolicyWindow         time.Duration // SLA_WINDOW_POLICY
	TrustedFlaggerFactor int           // SLA_TRUSTED_FACTOR (window divisor, >= 1)
}

// Window returns the SLA window for a report of the given type, applying the
// trusted-flagger reduction when applicable.
func (p SLAPolicy) Window(reportType string, trustedFlagger bool) time.Duration {
	w := p.PolicyWindow
	if reportType == "illegal" {
		w = p.IllegalWindow
	}
	if trustedFlagger && p.TrustedFlaggerFactor > 1 {
		w /= time.Duration(p.TrustedFlaggerFactor)
	}
	return w
}

// RetentionPolicy maps audit event classes to retention periods in years.
// The mapping is configuration, not code: a new event class lands in the
// default bucket without touching the ledger.
type RetentionPolicy struct {
	DefaultYears   int // RETENTION_YEARS_DEFAULT
	IntegrityYears int // RETENTION_YEARS_INTEGRITY (seal/verify/rotate events)
	LegalHoldYears int // RETENTION_YEARS_LEGAL_HOLD
}

// Years returns the retention period for the given event class.
// Recognized classes: "integrity", "legal_hold"; everything else uses the
// default period.
func (p RetentionPolicy) Years(eventClass string) int {
	switch eventClass {
	case "integrity":
		return p.IntegrityYears
	case "legal_hold":
		return p.LegalHoldYears
	default:
		return p.DefaultYears
	}
}

// ModerationConfig groups the workflow policy knobs of the moderation engine.
type ModerationConfig struct {
	ClaimTTL          time.Duration // CLAIM_TTL: exclusive review lock duration
	AppealMinWindow   time.Duration // APPEAL_MIN_WINDOW: floor for appeal deadlines (>= 7d)
	ODSTargetWindow   time.Duration // ODS_TARGET_WINDOW: target resolution for escalations
	SnapshotRecency   time.Duration // SNAPSHOT_RECENCY: reuse content snapshots younger than this
	DuplicateWindow   time.Duration // DUPLICATE_WINDOW: same reporter + content dedupe window
	BasePriority      int           // PRIORITY_BASE for ordinary reports
	TrustedPriority   int           // PRIORITY_TRUSTED for trusted-flagger reports
	IllegalPriorityUp int           // PRIORITY_ILLEGAL_BOOST added for illegal-content notices
}

// AuditConfig groups the audit-ledger settings. HMACKey has no default: the
// ledger refuses to start unsigned rather than fall back to a well-known key.
type AuditConfig struct {
	HMACKey       string          // AUDIT_HMAC_KEY (required)
	KeyOverlap    time.Duration   // AUDIT_KEY_OVERLAP: dual-key verification window after rotation
	Retention     RetentionPolicy //
	SealBatchSize int             // AUDIT_SEAL_BATCH: rows loaded per page while sealing
}

// TransparencyConfig configures the DSA Art.24(5) Transparency Database
// export queue.
type TransparencyConfig struct {
	Endpoint    string        // TRANSPARENCY_ENDPOINT (empty disables submission)
	APIKey      string        // TRANSPARENCY_API_KEY
	MaxAttempts int           // TRANSPARENCY_MAX_ATTEMPTS before dead-letter
	Timeout     time.Duration // TRANSPARENCY_TIMEOUT per request
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Database
	DBDriver    string // postgres|sqlite
	DatabaseURL string // postgres DSN
	DBPath      string // sqlite path (dev/test)

	// Auth
	JWTSecret string // JWT_SECRET: HS256 key for bearer tokens

	// Redis (optional notification fan-out)
	RedisAddr     string // REDIS_ADDR (empty disables the publisher)
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Moderation policy tables
	SLA          SLAPolicy
	Moderation   ModerationConfig
	Audit        AuditConfig
	Transparency TransparencyConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Database
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "postgres")),
		DatabaseURL: getenv("DATABASE_URL", ""),
		DBPath:      getenv("DB_PATH", "moderation.db"),

		// Auth
		JWTSecret: getenv("JWT_SECRET", ""),

		// Redis
		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getint("REDIS_DB", 0),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Policy tables
		SLA: SLAPolicy{
			IllegalWindow:        getdur("SLA_WINDOW_ILLEGAL", 24*time.Hour),
			PolicyWindow:         getdur("SLA_WINDOW_POLICY", 72*time.Hour),
			TrustedFlaggerFactor: getint("SLA_TRUSTED_FACTOR", 2),
		},
		Moderation: ModerationConfig{
			ClaimTTL:          getdur("CLAIM_TTL", 30*time.Minute),
			AppealMinWindow:   getdur("APPEAL_MIN_WINDOW", 7*24*time.Hour),
			ODSTargetWindow:   getdur("ODS_TARGET_WINDOW", 90*24*time.Hour),
			SnapshotRecency:   getdur("SNAPSHOT_RECENCY", time.Hour),
			DuplicateWindow:   getdur("DUPLICATE_WINDOW", 24*time.Hour),
			BasePriority:      getint("PRIORITY_BASE", 50),
			TrustedPriority:   getint("PRIORITY_TRUSTED", 80),
			IllegalPriorityUp: getint("PRIORITY_ILLEGAL_BOOST", 10),
		},
		Audit: AuditConfig{
			HMACKey:    getenv("AUDIT_HMAC_KEY", ""),
			KeyOverlap: getdur("AUDIT_KEY_OVERLAP", 48*time.Hour),
			Retention: RetentionPolicy{
				DefaultYears:   getint("RETENTION_YEARS_DEFAULT", 5),
				IntegrityYears: getint("RETENTION_YEARS_INTEGRITY", 7),
				LegalHoldYears: getint("RETENTION_YEARS_LEGAL_HOLD", 10),
			},
			SealBatchSize: getint("AUDIT_SEAL_BATCH", 1000),
		},
		Transparency: TransparencyConfig{
			Endpoint:    getenv("TRANSPARENCY_ENDPOINT", ""),
			APIKey:      getenv("TRANSPARENCY_API_KEY", ""),
			MaxAttempts: getint("TRANSPARENCY_MAX_ATTEMPTS", 5),
			Timeout:     getdur("TRANSPARENCY_TIMEOUT", 10*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-moderation-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.SLA.TrustedFlaggerFactor < 1 {
		cfg.SLA.TrustedFlaggerFactor = 1
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL must not be empty when DB_DRIVER=postgres")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty when DB_DRIVER=sqlite")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be postgres or sqlite")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return cfg, errors.New("JWT_SECRET must not be empty")
	}
	// Fail closed: a ledger signing with a well-known default key is worse
	// than one that refuses to start.
	if strings.TrimSpace(cfg.Audit.HMACKey) == "" {
		return cfg, errors.New("AUDIT_HMAC_KEY must be configured; refusing to run with an unsigned audit ledger")
	}
	if len(cfg.Audit.HMACKey) < 32 {
		return cfg, errors.New("AUDIT_HMAC_KEY must be at least 32 bytes")
	}
	if cfg.Audit.KeyOverlap < 0 {
		return cfg, errors.New("AUDIT_KEY_OVERLAP must be >= 0")
	}
	if cfg.Audit.SealBatchSize < 1 {
		return cfg, errors.New("AUDIT_SEAL_BATCH must be >= 1")
	}
	if cfg.Audit.Retention.DefaultYears < 1 || cfg.Audit.Retention.IntegrityYears < 1 || cfg.Audit.Retention.LegalHoldYears < 1 {
		return cfg, errors.New("retention years must be >= 1")
	}
	if cfg.SLA.IllegalWindow <= 0 || cfg.SLA.PolicyWindow <= 0 {
		return cfg, errors.New("SLA windows must be positive durations")
	}
	if cfg.Moderation.ClaimTTL <= 0 {
		return cfg, errors.New("CLAIM_TTL must be > 0")
	}
	if cfg.Moderation.AppealMinWindow < 7*24*time.Hour {
		return cfg, errors.New("APPEAL_MIN_WINDOW must be at least 168h (7 days)")
	}
	if cfg.Moderation.ODSTargetWindow <= 0 {
		return cfg, errors.New("ODS_TARGET_WINDOW must be > 0")
	}
	if cfg.Transparency.MaxAttempts < 1 {
		return cfg, errors.New("TRANSPARENCY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
