package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-import"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Database Database
	Postgres Postgres
	SQLite   SQLite
	Redis    Redis
	Security Security
	Storage  Storage
	Import   Import
	Sweeper  Sweeper
}

// Database selects the relational backend.
type Database struct {
	Driver        string `env:"DB_DRIVER" envDefault:"postgres"`
	AutoMigrate   bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	Transactional bool   `env:"DB_TRANSACTIONAL_IMPORTS" envDefault:"true"`
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the connection string for a single connection (database/sql, goose).
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// PoolDSN adds pgxpool settings to DSN. Only pgxpool understands them; plain
// pgx forwards unknown keys to the server as startup parameters.
func (p Postgres) PoolDSN() string {
	return fmt.Sprintf("%s pool_max_conns=%d", p.DSN(), p.MaxConns)
}

// SQLite is used when DB_DRIVER=sqlite.
type SQLite struct {
	DSN string `env:"SQLITE_DSN" envDefault:"file:quiz-import.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"`
}

// Redis backs the preview cache. An empty address disables caching.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"lms"`
}

// Storage configures the image object store.
type Storage struct {
	BasePath      string `env:"STORAGE_BASE_PATH" envDefault:"./data/media"`
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/media"`
}

// Import tunes the import pipeline.
type Import struct {
	StrictImages      bool          `env:"IMPORT_STRICT_IMAGES" envDefault:"false"`
	MaxUploadBytes    int64         `env:"IMPORT_MAX_UPLOAD_BYTES" envDefault:"52428800"`
	MaxImageBytes     int64         `env:"IMPORT_MAX_IMAGE_BYTES" envDefault:"2097152"`
	MaxEntryBytes     int64         `env:"IMPORT_MAX_ENTRY_BYTES" envDefault:"33554432"`
	PreviewQuestions  int           `env:"IMPORT_PREVIEW_QUESTIONS" envDefault:"3"`
	PreviewCacheTTL   time.Duration `env:"IMPORT_PREVIEW_CACHE_TTL" envDefault:"10m"`
	UploadConcurrency int           `env:"IMPORT_UPLOAD_CONCURRENCY" envDefault:"4"`
	ImagePathPrefix   string        `env:"IMPORT_IMAGE_PATH_PREFIX" envDefault:"quiz-images"`
}

// Sweeper governs the orphaned quiz set cleanup.
type Sweeper struct {
	Interval time.Duration `env:"SWEEPER_INTERVAL" envDefault:"10m"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabaseOnly is the subset of App read by cmd/migrator, which has no use
// for secrets.
type DatabaseOnly struct {
	Database Database
	Postgres Postgres
	SQLite   SQLite
}

// LoadDatabase parses only the database settings.
func LoadDatabase() (*DatabaseOnly, error) {
	cfg := &DatabaseOnly{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validateDatabase(cfg.Database, cfg.Postgres); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	return validateDatabase(c.Database, c.Postgres)
}

func validateDatabase(d Database, p Postgres) error {
	switch d.Driver {
	case "postgres":
		if p.User == "" || p.Database == "" {
			return fmt.Errorf("parse config: PG_USER and PG_DATABASE are required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("parse config: unsupported DB_DRIVER %q", d.Driver)
	}
	return nil
}
