// Package config loads runtime configuration for the SubMan CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment: a dotenv file (-e/-env-file, or ./.env when present) and
//     SUBMAN_* variables, e.g. SUBMAN_API_BASE_URL, SUBMAN_REQUEST_TIMEOUT.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the REST API
//	-i int        online status check interval (seconds)
//	-t duration   request timeout
//	-d string     local database path
//	-l string     log level
//	-m string     metrics listen address
//
// # JSON schema
//
// Durations are timex.Duration values, either strings like "3s" or integer
// nanoseconds:
//
//	{
//	  "api_base_url": "http://localhost:3000/api",
//	  "request_timeout": "10s",
//	  "online_check_interval": "3s",
//	  "database_path": "subman.db",
//	  "log_level": "info",
//	  "log_format": "console",
//	  "metrics_addr": ":9100",
//	  "reminder_window": "168h"
//	}
package config
