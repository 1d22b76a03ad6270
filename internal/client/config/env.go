package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/manisoft/subman/internal/flagx"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "SUBMAN"

// EnvConfig maps SUBMAN_* variables. Only variables that are set change the
// value copied in from Config.
type EnvConfig struct {
	APIBaseURL          string        `envconfig:"API_BASE_URL"`
	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT"`
	OnlineCheckInterval time.Duration `envconfig:"ONLINE_CHECK_INTERVAL"`
	DatabasePath        string        `envconfig:"DATABASE_PATH"`
	LogLevel            string        `envconfig:"LOG_LEVEL"`
	LogFormat           string        `envconfig:"LOG_FORMAT"`
	LogFile             string        `envconfig:"LOG_FILE"`
	MetricsAddr         string        `envconfig:"METRICS_ADDR"`
	ReminderWindow      time.Duration `envconfig:"REMINDER_WINDOW"`
}

// parseEnv loads a dotenv file (from -e/-env-file, else ./.env when present)
// without overriding variables already set, then overlays SUBMAN_* variables.
// Panics on a malformed file or value.
func parseEnv(cfg *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	ec := EnvConfig{
		APIBaseURL:          cfg.APIBaseURL,
		RequestTimeout:      cfg.RequestTimeout,
		OnlineCheckInterval: cfg.OnlineCheckInterval,
		DatabasePath:        cfg.DatabasePath,
		LogLevel:            cfg.LogLevel,
		LogFormat:           cfg.LogFormat,
		LogFile:             cfg.LogFile,
		MetricsAddr:         cfg.MetricsAddr,
		ReminderWindow:      cfg.ReminderWindow,
	}
	if err := envconfig.Process(EnvPrefix, &ec); err != nil {
		panic(err)
	}

	cfg.APIBaseURL = ec.APIBaseURL
	cfg.RequestTimeout = ec.RequestTimeout
	cfg.OnlineCheckInterval = ec.OnlineCheckInterval
	cfg.DatabasePath = ec.DatabasePath
	cfg.LogLevel = ec.LogLevel
	cfg.LogFormat = ec.LogFormat
	cfg.LogFile = ec.LogFile
	cfg.MetricsAddr = ec.MetricsAddr
	cfg.ReminderWindow = ec.ReminderWindow
}
