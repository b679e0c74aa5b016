// README: Config loader with env defaults for HTTP, DB, Redis, Firebase, mail, logging and path selection.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingConfig = errors.New("missing required configuration")

// PathsConfig tunes the path selection engine.
type PathsConfig struct {
	CaptureRadiusMeters  float64
	MaxNearStops         int
	UnmatchedThreshold   float64
	Lookahead            time.Duration
	RouteConcurrency     int
	PassengerConcurrency int
	ClaimTTL             time.Duration
	// NotifyTimeout bounds each push and alert delivery.
	NotifyTimeout time.Duration
	// ScheduleInterval drives the in-process ticker of `serve`; zero disables it.
	ScheduleInterval time.Duration
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Timeout  time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Mail  MailConfig
	Log   LogConfig
	Paths PathsConfig
}

// Load reads configuration from the environment, after loading a .env file
// when one is present. Missing required keys are reported together.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("DRIVEIT_HTTP_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("DRIVEIT_DB_DSN")
	cfg.Redis.Addr = os.Getenv("DRIVEIT_REDIS_ADDR")
	cfg.Firebase.ProjectID = os.Getenv("DRIVEIT_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("DRIVEIT_FIREBASE_CREDENTIALS")

	cfg.Mail.Host = os.Getenv("DRIVEIT_SMTP_HOST")
	cfg.Mail.Port = envOrDefaultInt("DRIVEIT_SMTP_PORT", 587)
	cfg.Mail.Username = os.Getenv("DRIVEIT_SMTP_USERNAME")
	cfg.Mail.Password = os.Getenv("DRIVEIT_SMTP_PASSWORD")
	cfg.Mail.From = envOrDefault("DRIVEIT_ALERT_FROM", "info@lrdevteam.com")
	cfg.Mail.To = envOrDefault("DRIVEIT_ALERT_TO", "info@lrdevteam.com")
	cfg.Mail.Timeout = envOrDefaultDuration("DRIVEIT_SMTP_TIMEOUT", 10*time.Second)

	cfg.Log.Level = envOrDefault("DRIVEIT_LOG_LEVEL", "info")
	cfg.Log.File = envOrDefault("DRIVEIT_LOG_FILE", "./logs/driveit.log")

	cfg.Paths.CaptureRadiusMeters = envOrDefaultFloat("DRIVEIT_CAPTURE_RADIUS_M", 450)
	cfg.Paths.MaxNearStops = envOrDefaultInt("DRIVEIT_MAX_NEAR_STOPS", 3)
	cfg.Paths.UnmatchedThreshold = envOrDefaultFloat("DRIVEIT_UNMATCHED_THRESHOLD", 30)
	cfg.Paths.Lookahead = envOrDefaultDuration("DRIVEIT_LOOKAHEAD", time.Hour)
	cfg.Paths.RouteConcurrency = envOrDefaultInt("DRIVEIT_ROUTE_CONCURRENCY", 8)
	cfg.Paths.PassengerConcurrency = envOrDefaultInt("DRIVEIT_PASSENGER_CONCURRENCY", 4)
	cfg.Paths.ClaimTTL = envOrDefaultDuration("DRIVEIT_CLAIM_TTL", 5*time.Minute)
	cfg.Paths.NotifyTimeout = envOrDefaultDuration("DRIVEIT_NOTIFY_TIMEOUT", 15*time.Second)
	cfg.Paths.ScheduleInterval = envOrDefaultDuration("DRIVEIT_SCHEDULE_INTERVAL", 0)

	var missing []error
	if cfg.DB.DSN == "" {
		missing = append(missing, fmt.Errorf("%w: DRIVEIT_DB_DSN", ErrMissingConfig))
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, fmt.Errorf("%w: DRIVEIT_FIREBASE_PROJECT_ID", ErrMissingConfig))
	}
	if err := errors.Join(missing...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
