package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppName string `envconfig:"APP_NAME" default:"travelmate realtime"`
	Env     string `envconfig:"APP_ENV" default:"development"`
	Host    string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port    int    `envconfig:"HTTP_PORT" default:"8000"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	PostgresHost   string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort   string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser   string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPass   string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB     string `envconfig:"POSTGRES_DB" default:"travelmate"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"travelmate.db"`

	JWTSecret     string `envconfig:"JWT_SECRET"`
	InternalToken string `envconfig:"INTERNAL_TOKEN"`
	DirectoryFile string `envconfig:"DIRECTORY_FILE"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	UploadDir   string   `envconfig:"UPLOAD_DIR" default:"uploads"`

	MaxMessageLength   int   `envconfig:"MAX_MESSAGE_LENGTH" default:"5000"`
	MaxAttachmentBytes int64 `envconfig:"MAX_ATTACHMENT_BYTES" default:"10485760"`

	WSAuthTimeout     time.Duration `envconfig:"WS_AUTH_TIMEOUT" default:"10s"`
	WSIdleTimeout     time.Duration `envconfig:"WS_IDLE_TIMEOUT" default:"60s"`
	WSWriteTimeout    time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	WSSendBuffer      int           `envconfig:"WS_SEND_BUFFER" default:"256"`
	WSMaxFrameBytes   int64         `envconfig:"WS_MAX_FRAME_BYTES" default:"65536"`
	WSEventsPerSecond float64       `envconfig:"WS_EVENTS_PER_SECOND" default:"20"`
	WSEventBurst      int           `envconfig:"WS_EVENT_BURST" default:"40"`

	StoreTimeout          time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	NotifyMaxAttempts     int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"4"`
	NotifyBackoff         time.Duration `envconfig:"NOTIFY_BACKOFF" default:"100ms"`
	NotifyOfflineMessages bool          `envconfig:"NOTIFY_OFFLINE_MESSAGES" default:"true"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive")
	}
	if c.WSAuthTimeout <= 0 || c.WSIdleTimeout <= 0 || c.WSWriteTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	if c.NotifyMaxAttempts <= 0 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// PostgresDSN returns DATABASE_URL when set, otherwise a URL composed from the
// POSTGRES_* variables.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPass),
		Host:     fmt.Sprintf("%s:%s", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
