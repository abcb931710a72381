package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"examguard"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"examguard"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"examguard"`
	PGMaxConns  int    `env:"PG_MAX_CONNS" envDefault:"20"`

	// JWT
	JWTSecret          string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTCandidateExpiry string `env:"JWT_CANDIDATE_EXPIRY" envDefault:"6h"`
	JWTProctorExpiry   string `env:"JWT_PROCTOR_EXPIRY" envDefault:"12h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" envDefault:"examguard-consumer"`

	// Termination policy ceilings. Zero disables a ceiling.
	TerminationRiskScoreMax      int `env:"TERMINATION_RISK_SCORE_MAX" envDefault:"85"`
	TerminationCriticalCountMax  int `env:"TERMINATION_CRITICAL_COUNT_MAX" envDefault:"5"`
	TerminationViolationCountMax int `env:"TERMINATION_VIOLATION_COUNT_MAX" envDefault:"25"`

	// Ingestion rate limit per session (sliding one-minute window)
	IngestRateLimit int `env:"INGEST_RATE_LIMIT" envDefault:"120"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
