package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvProduction is the APP_ENV value that turns off development conveniences.
const EnvProduction = "production"

// Config aggregates runtime configuration for the upload server.
type Config struct {
	Env     string
	Server  ServerConfig
	Session SessionConfig
	Mongo   MongoConfig
	Upload  UploadConfig
	MinIO   MinIOConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig holds cookie and session settings.
type SessionConfig struct {
	Name   string
	Secret string
}

// MongoConfig contains the document database connection details and the reconnect policy.
type MongoConfig struct {
	URI                      string
	Database                 string
	ConnectTimeout           time.Duration
	ReconnectMaxAttempts     int
	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration
	// Debug logs every command the driver sends.
	Debug bool
}

// UploadConfig describes where and how multipart uploads are persisted.
type UploadConfig struct {
	Dir         string
	Field       string
	MaxFiles    int
	MaxFileSize int64
	Backend     string
}

// Upload backends.
const (
	BackendDisk  = "disk"
	BackendMinIO = "minio"
)

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	Level string
	JSON  bool
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Production reports whether the server runs with APP_ENV=production.
func (c Config) Production() bool {
	return c.Env == EnvProduction
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	env := strings.ToLower(firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("NODE_ENV"), "development"))
	production := env == EnvProduction

	defaultLevel := "debug"
	if production {
		defaultLevel = "info"
	}

	cfg := Config{
		Env: env,
		Server: ServerConfig{
			Host:         getString("HOST", "0.0.0.0"),
			Port:         getInt("PORT", 3000),
			ReadTimeout:  getDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Name:   getString("SESSION_NAME", "session-cookie"),
			Secret: getString("COOKIE_SECRET", defaultSecret(production)),
		},
		Mongo: MongoConfig{
			URI:                      getString("MONGO_URI", "mongodb://localhost:27017"),
			Database:                 getString("MONGO_DB", "nodejs"),
			ConnectTimeout:           getDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
			ReconnectMaxAttempts:     getInt("MONGO_RECONNECT_MAX_ATTEMPTS", 10),
			ReconnectInitialInterval: getDuration("MONGO_RECONNECT_INITIAL_INTERVAL", 500*time.Millisecond),
			ReconnectMaxInterval:     getDuration("MONGO_RECONNECT_MAX_INTERVAL", 30*time.Second),
			Debug:                    !production,
		},
		Upload: UploadConfig{
			Dir:         getString("UPLOAD_DIR", "uploads"),
			Field:       getString("UPLOAD_FIELD", "many"),
			MaxFiles:    getInt("UPLOAD_MAX_FILES", 3),
			MaxFileSize: getInt64("UPLOAD_MAX_FILE_SIZE", 5*1024*1024),
			Backend:     strings.ToLower(getString("UPLOAD_BACKEND", BackendDisk)),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "uploads"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "uploads"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Log: LogConfig{
			Level: strings.ToLower(getString("LOG_LEVEL", defaultLevel)),
			JSON:  production,
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Server.Port))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("COOKIE_SECRET must be set"))
	}
	if c.Upload.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_FILES must be positive, got %d", c.Upload.MaxFiles))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_FILE_SIZE must be positive, got %d", c.Upload.MaxFileSize))
	}
	if c.Upload.Field == "" {
		errs = append(errs, errors.New("UPLOAD_FIELD must not be empty"))
	}
	switch c.Upload.Backend {
	case BackendDisk, BackendMinIO:
	default:
		errs = append(errs, fmt.Errorf("unknown UPLOAD_BACKEND %q", c.Upload.Backend))
	}
	if c.Mongo.ReconnectMaxAttempts < 0 {
		errs = append(errs, errors.New("MONGO_RECONNECT_MAX_ATTEMPTS must not be negative"))
	}
	if c.Mongo.ReconnectMaxInterval <= 0 {
		errs = append(errs, errors.New("MONGO_RECONNECT_MAX_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// production deployments must provide their own secret
func defaultSecret(production bool) string {
	if production {
		return ""
	}
	return "change-me"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
