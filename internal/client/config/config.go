package config

import "time"

// Config holds runtime settings for the SubMan CLI.
//
// Units: durations are time.Duration values (e.g., 3*time.Second).
type Config struct {
	// APIBaseURL is the root of the REST API, e.g. http://localhost:3000/api.
	APIBaseURL          string
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
	DatabasePath        string
	LogLevel            string
	// LogFormat is json, text or console.
	LogFormat string
	// LogFile receives the logs; empty means stderr.
	LogFile string
	// MetricsAddr is the listen address of the /metrics endpoint; empty
	// disables it.
	MetricsAddr    string
	ReminderWindow time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:3000/api"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "subman.db"
	c.LogLevel = "info"
	c.LogFormat = "console"
	c.LogFile = ""
	c.MetricsAddr = ""
	c.ReminderWindow = 7 * 24 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment (including a .env file) and
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
