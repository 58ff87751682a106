package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/project-files/pkg/projectfiles"
	"github.com/tendant/project-files/pkg/projectfiles/api"
	memorystorage "github.com/tendant/project-files/pkg/projectfiles/storage/memory"
	s3storage "github.com/tendant/project-files/pkg/projectfiles/storage/s3"
	dynamotable "github.com/tendant/project-files/pkg/projectfiles/table/dynamodb"
	memorytable "github.com/tendant/project-files/pkg/projectfiles/table/memory"
	pgtable "github.com/tendant/project-files/pkg/projectfiles/table/postgres"
)

// MaxPresignTTL is the longest lifetime S3 accepts for a SigV4 signed URL.
const MaxPresignTTL = 7 * 24 * time.Hour

// Config is the environment configuration of the project-files server
type Config struct {
	Environment  string        `env:"ENVIRONMENT" env-default:"production" env-description:"development, production or testing"`
	LogLevel     string        `env:"LOG_LEVEL" env-default:"info"`
	PresignTTL   time.Duration `env:"PRESIGN_TTL" env-default:"1h"`
	EventLogging bool          `env:"EVENT_LOGGING" env-default:"true"`

	Table   TableConfig
	Storage StorageConfig
	Auth    AuthConfig
	Upload  UploadConfig
}

// TableConfig selects and configures the metadata table
type TableConfig struct {
	Backend string `env:"TABLE_BACKEND" env-default:"memory" env-description:"memory, dynamodb or postgres"`
	Name    string `env:"TABLE_NAME" env-default:"project-files"`

	Region          string `env:"DYNAMODB_REGION" env-default:"us-east-1"`
	Endpoint        string `env:"DYNAMODB_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	CreateTable     bool   `env:"DYNAMODB_CREATE_TABLE" env-default:"false"`

	DatabaseURL  string `env:"DATABASE_URL"`
	EnsureSchema bool   `env:"DATABASE_ENSURE_SCHEMA" env-default:"true"`
}

// StorageConfig selects and configures the object store
type StorageConfig struct {
	Backend         string `env:"STORAGE_BACKEND" env-default:"memory" env-description:"memory or s3"`
	Bucket          string `env:"AWS_S3_BUCKET" env-default:"project-files"`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	SSEAlgorithm    string `env:"AWS_S3_SSE_ALGORITHM"`
	SSEKMSKeyID     string `env:"AWS_S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// AuthConfig selects how callers are identified
type AuthConfig struct {
	Mode      string `env:"AUTH_MODE" env-default:"header" env-description:"header or jwt"`
	Header    string `env:"AUTH_HEADER" env-default:"X-User-Id"`
	JWTSecret string `env:"AUTH_JWT_SECRET"`
}

// UploadConfig bounds what clients may upload
type UploadConfig struct {
	MaxFileSize      int64    `env:"UPLOAD_MAX_FILE_SIZE" env-default:"5368709120"`
	AllowedMimeTypes []string `env:"UPLOAD_ALLOWED_MIME_TYPES" env-separator:","`
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether internal error details may reach clients
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Table.Backend {
	case "memory":
	case "dynamodb":
		if c.Table.Name == "" {
			return errors.New("TABLE_NAME is required when using dynamodb")
		}
	case "postgres":
		if c.Table.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when using postgres")
		}
	default:
		return fmt.Errorf("unsupported TABLE_BACKEND %q (use memory, dynamodb or postgres)", c.Table.Backend)
	}

	switch c.Storage.Backend {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required when using s3")
		}
		if c.Storage.SSEAlgorithm != "" && c.Storage.SSEAlgorithm != "AES256" && c.Storage.SSEAlgorithm != "aws:kms" {
			return fmt.Errorf("unsupported AWS_S3_SSE_ALGORITHM %q (use AES256 or aws:kms)", c.Storage.SSEAlgorithm)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (use memory or s3)", c.Storage.Backend)
	}

	switch c.Auth.Mode {
	case "header":
		if c.Auth.Header == "" {
			return errors.New("AUTH_HEADER is required when using header auth")
		}
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required when using jwt auth")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q (use header or jwt)", c.Auth.Mode)
	}

	if c.PresignTTL <= 0 || c.PresignTTL > MaxPresignTTL {
		return fmt.Errorf("PRESIGN_TTL must be between 1s and %s", MaxPresignTTL)
	}
	if c.Upload.MaxFileSize <= 0 {
		return errors.New("UPLOAD_MAX_FILE_SIZE must be positive")
	}

	return nil
}

// Logger returns a JSON logger, or a text logger in development
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// UploadPolicy returns the configured upload limits
func (c *Config) UploadPolicy() projectfiles.UploadPolicy {
	policy := projectfiles.DefaultUploadPolicy()
	policy.MaxFileSize = c.Upload.MaxFileSize
	if len(c.Upload.AllowedMimeTypes) > 0 {
		policy.AllowedMimeTypes = c.Upload.AllowedMimeTypes
	}
	return policy
}

// Runtime holds everything built from a Config
type Runtime struct {
	Service       *projectfiles.Service
	Authenticator api.Authenticator
	Logger        *slog.Logger

	closers []func()
}

// Close releases connections opened by Build
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Build creates the service and its collaborators from the configuration
func (c *Config) Build(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{Logger: c.Logger()}

	table, err := c.buildTable(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build table: %w", err)
	}

	store, err := c.buildObjectStore()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build object store: %w", err)
	}

	eventSink := projectfiles.NewNoopEventSink()
	if c.EventLogging {
		eventSink = projectfiles.NewLogEventSink(rt.Logger)
	}

	rt.Service, err = projectfiles.New(
		projectfiles.WithTable(table),
		projectfiles.WithObjectStore(store),
		projectfiles.WithPresignTTL(c.PresignTTL),
		projectfiles.WithUploadPolicy(c.UploadPolicy()),
		projectfiles.WithEventSink(eventSink),
		projectfiles.WithLogger(rt.Logger),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Authenticator = c.buildAuthenticator()
	return rt, nil
}

func (c *Config) buildTable(ctx context.Context, rt *Runtime) (projectfiles.Table, error) {
	switch c.Table.Backend {
	case "memory":
		return memorytable.New(), nil
	case "dynamodb":
		return dynamotable.New(dynamotable.Config{
			TableName:             c.Table.Name,
			Region:                c.Table.Region,
			AccessKeyID:           c.Table.AccessKeyID,
			SecretAccessKey:       c.Table.SecretAccessKey,
			Endpoint:              c.Table.Endpoint,
			CreateTableIfNotExist: c.Table.CreateTable,
		})
	case "postgres":
		pool, err := NewDbPool(ctx, c.Table.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		if c.Table.EnsureSchema {
			if err := pgtable.EnsureSchema(ctx, pool); err != nil {
				return nil, err
			}
		}
		return pgtable.NewWithPool(pool), nil
	}
	return nil, fmt.Errorf("unsupported table backend: %s", c.Table.Backend)
}

func (c *Config) buildObjectStore() (projectfiles.ObjectStore, error) {
	switch c.Storage.Backend {
	case "memory":
		return memorystorage.New(), nil
	case "s3":
		return s3storage.New(c.S3Config())
	}
	return nil, fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
}

// S3Config returns the S3 backend configuration
func (c *Config) S3Config() s3storage.Config {
	return s3storage.Config{
		Region:                 c.Storage.Region,
		Bucket:                 c.Storage.Bucket,
		AccessKeyID:            c.Storage.AccessKeyID,
		SecretAccessKey:        c.Storage.SecretAccessKey,
		Endpoint:               c.Storage.Endpoint,
		UsePathStyle:           c.Storage.UsePathStyle,
		PresignDuration:        int(c.PresignTTL / time.Second),
		EnableSSE:              c.Storage.SSEAlgorithm != "",
		SSEAlgorithm:           c.Storage.SSEAlgorithm,
		SSEKMSKeyID:            c.Storage.SSEKMSKeyID,
		CreateBucketIfNotExist: c.Storage.CreateBucket,
	}
}

func (c *Config) buildAuthenticator() api.Authenticator {
	if c.Auth.Mode == "jwt" {
		return api.NewJWTAuthenticator([]byte(c.Auth.JWTSecret))
	}
	return api.NewHeaderAuthenticator(c.Auth.Header)
}

// NewDbPool opens and pings a pgx connection pool
func NewDbPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
