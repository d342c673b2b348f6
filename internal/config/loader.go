package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database driver names accepted for OPSBOARD_DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures environment driven configuration values for the opsboard service.
type Config struct {
	HTTPPort        int
	DBDriver        string
	SQLiteDSN       string
	PostgresDSN     string
	DefaultTimezone *time.Location
	RetentionWindow time.Duration
	RetentionCron   string
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields while validating the rest
// and reporting every missing or invalid entry in one error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		DBDriver:        DriverSQLite,
		SQLiteDSN:       "file:opsboard.db?_foreign_keys=on",
		DefaultTimezone: time.UTC,
		RetentionWindow: 30 * 24 * time.Hour,
		RetentionCron:   "0 4 * * *",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("OPSBOARD_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "OPSBOARD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.TrimSpace(os.Getenv("OPSBOARD_DB_DRIVER")); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres:
			cfg.DBDriver = driver
		default:
			invalid = append(invalid, "OPSBOARD_DB_DRIVER")
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("OPSBOARD_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("OPSBOARD_POSTGRES_DSN"))
	if cfg.DBDriver == DriverPostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "OPSBOARD_POSTGRES_DSN")
	}

	if tz := strings.TrimSpace(os.Getenv("OPSBOARD_DEFAULT_TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "OPSBOARD_DEFAULT_TIMEZONE")
		} else {
			cfg.DefaultTimezone = loc
		}
	}

	if windowValue := strings.TrimSpace(os.Getenv("OPSBOARD_RETENTION_WINDOW")); windowValue != "" {
		window, err := time.ParseDuration(windowValue)
		if err != nil || window <= 0 {
			invalid = append(invalid, "OPSBOARD_RETENTION_WINDOW")
		} else {
			cfg.RetentionWindow = window
		}
	}

	if cronValue := strings.TrimSpace(os.Getenv("OPSBOARD_RETENTION_CRON")); cronValue != "" {
		cfg.RetentionCron = cronValue
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
