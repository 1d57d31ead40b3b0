package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"image-variants/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/wb-go/wbf/retry"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	DB       DBConfig       `yaml:"db"`
	Retry    RetryConfig    `yaml:"retry"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Upload   UploadConfig   `yaml:"upload"`
	Janitor  JanitorConfig  `yaml:"janitor"`
	Formats  []FormatConfig `yaml:"formats" validate:"required,min=1,dive"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxUploadSize   int64         `yaml:"max_upload_size" env:"SERVER_MAX_UPLOAD_SIZE" env-default:"33554432" validate:"gt=0"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" validate:"required"`
	AdminRole string `yaml:"admin_role" env:"AUTH_ADMIN_ROLE" env-default:"admin"`
	Issuer    string `yaml:"issuer" env:"AUTH_ISSUER"`
}

type StorageConfig struct {
	Backend  string      `yaml:"backend" env:"STORAGE_BACKEND" env-default:"fs" validate:"oneof=fs minio"`
	BasePath string      `yaml:"base_path" env:"STORAGE_BASE_PATH" env-default:"./data/images"`
	MinIO    MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"images"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
}

type DBConfig struct {
	Driver          string        `yaml:"driver" env:"DB_DRIVER" env-default:"postgres" validate:"oneof=postgres sqlite"`
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Name            string        `yaml:"name" env:"DB_NAME" env-default:"images"`
	SSLMode         string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	SQLitePath      string        `yaml:"sqlite_path" env:"SQLITE_DB_PATH" env-default:"./data/images.db"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3" validate:"gte=1"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"100ms"`
	Backoff  float64       `yaml:"backoff" env:"RETRY_BACKOFF" env-default:"2"`
}

type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled" env:"KAFKA_ENABLED"`
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	EventsTopic string   `yaml:"events_topic" env:"KAFKA_EVENTS_TOPIC" env-default:"image-events"`
}

type UploadConfig struct {
	EncodeConcurrency int `yaml:"encode_concurrency" env:"UPLOAD_ENCODE_CONCURRENCY" env-default:"1" validate:"gte=1"`
}

type JanitorConfig struct {
	Interval    time.Duration `yaml:"interval" env:"JANITOR_INTERVAL"`
	GracePeriod time.Duration `yaml:"grace_period" env:"JANITOR_GRACE_PERIOD" env-default:"1h"`
	Prune       bool          `yaml:"prune" env:"JANITOR_PRUNE"`
	Concurrency int           `yaml:"concurrency" env:"JANITOR_CONCURRENCY" env-default:"4" validate:"gte=1"`
}

// FormatConfig is one served output format. The order of Config.Formats is the
// server's preference order when negotiation scores tie.
type FormatConfig struct {
	Key         domain.ImageFormat `yaml:"key" validate:"required"`
	Enabled     bool               `yaml:"enabled"`
	MediaType   string             `yaml:"media_type"`
	Extension   string             `yaml:"extension"`
	Weight      float64            `yaml:"weight" validate:"gte=0,lte=1"`
	Quality     int                `yaml:"quality"`
	Compression string             `yaml:"compression"`
	Lossless    bool               `yaml:"lossless"`
}

func MustLoad() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	return Load(path)
}

func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyFormatDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[domain.ImageFormat]bool, len(c.Formats))
	for _, f := range c.Formats {
		if seen[f.Key] {
			return fmt.Errorf("invalid config: format %q declared twice", f.Key)
		}
		seen[f.Key] = true
	}

	return nil
}

func (c *Config) applyFormatDefaults() {
	for i := range c.Formats {
		f := &c.Formats[i]
		if f.MediaType == "" {
			f.MediaType = f.Key.DefaultMediaType()
		}
		if f.Extension == "" {
			f.Extension = string(f.Key)
		}
		if f.Quality == 0 {
			f.Quality = domain.DefaultQuality
		}
		if f.Compression == "" {
			f.Compression = domain.WebPCompressionLossy
		}
	}
}

// EnabledFormats returns the enabled formats in declaration order.
func (c *Config) EnabledFormats() []FormatConfig {
	enabled := make([]FormatConfig, 0, len(c.Formats))
	for _, f := range c.Formats {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}
	return enabled
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}

func (c *Config) DBDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
