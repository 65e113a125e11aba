package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

type DatabaseOptions struct {
	Host         string        `env:"DB_HOST" envDefault:"localhost"`
	Port         string        `env:"DB_PORT" envDefault:"5432"`
	User         string        `env:"DB_USER" envDefault:"postgres"`
	Password     string        `env:"DB_PASSWORD" envDefault:"postgres"`
	Name         string        `env:"DB_NAME" envDefault:"attendance_import"`
	SSLMode      string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

func (d DatabaseOptions) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type StorageOptions struct {
	Bucket          string `env:"S3_BUCKET" envDefault:"attendance-imports"`
	Region          string `env:"S3_REGION" envDefault:"ap-south-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	Prefix          string `env:"S3_PREFIX" envDefault:"attendance-imports"`
}

type RedisOptions struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	LockTTL  time.Duration `env:"BATCH_LOCK_TTL" envDefault:"2m"`
}

type OracleOptions struct {
	APIKey  string        `env:"OPENAI_API_KEY"`
	BaseURL string        `env:"OPENAI_BASE_URL"`
	Model   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Timeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"20s"`
}

// Enabled reports whether a suggestion oracle is configured at all.
func (o OracleOptions) Enabled() bool { return strings.TrimSpace(o.APIKey) != "" }

type ImportOptions struct {
	StageChunkSize int   `env:"STAGE_CHUNK_SIZE" envDefault:"1000"`
	SampleRows     int   `env:"DETECT_SAMPLE_ROWS" envDefault:"8"`
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"`
}

type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	AppEnv      string   `env:"APP_ENV" envDefault:"development"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string   `env:"LOG_FORMAT" envDefault:"json"`

	Database DatabaseOptions
	Storage  StorageOptions
	Redis    RedisOptions
	Oracle   OracleOptions
	Import   ImportOptions
}

// LoadEnv loads whichever of the given dotenv files exist. Missing files are
// not an error; the process environment still applies.
func LoadEnv(files ...string) int {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0
	}
	if err := godotenv.Load(existing...); err != nil {
		logrus.WithError(err).Warn("failed to load env files")
		return 0
	}
	return len(existing)
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Import.StageChunkSize <= 0 {
		return fmt.Errorf("STAGE_CHUNK_SIZE must be positive, got %d", c.Import.StageChunkSize)
	}
	if c.Import.SampleRows <= 0 {
		return fmt.Errorf("DETECT_SAMPLE_ROWS must be positive, got %d", c.Import.SampleRows)
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Import.MaxUploadBytes)
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("BATCH_LOCK_TTL must be positive")
	}
	if c.IsProduction() && c.Database.Password == "postgres" {
		return fmt.Errorf("DB_PASSWORD must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, Production)
}
