package runner

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sadewadee/email-extractor/mysql"
	"github.com/sadewadee/email-extractor/tlmt"
)

const (
	RunModeWorker = "worker"
	RunModeAPI    = "api"
	RunModeOnce   = "once"
)

// Runner is a process personality. Run blocks until the context is
// cancelled or the runner fails; Close releases whatever Run acquired.
type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

// Config is the process configuration, read from the environment. One
// Config serves every run mode; modes ignore what they do not use.
type Config struct {
	RunMode string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	Addr string

	// DashboardAddr, when set, serves the monitoring dashboard on its own
	// listener in the worker and api modes.
	DashboardAddr string

	MaxDepth      int
	Timeout       time.Duration
	MaxConcurrent int

	WorkerID     string
	PollInterval time.Duration
	SearchID     int64
}

// ParseConfig reads the run mode from args (the command line after the
// program name) and everything else from the environment.
func ParseConfig(args []string) (*Config, error) {
	cfg := Config{
		RunMode:       RunModeWorker,
		DBHost:        os.Getenv("DB_HOST"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		Addr:          envString("ADDR", ":8080"),
		DashboardAddr: os.Getenv("DASHBOARD_ADDR"),
		WorkerID:      envString("WORKER_ID", fmt.Sprintf("worker-%d", os.Getpid())),
	}

	if len(args) > 0 {
		cfg.RunMode = args[0]
	}

	switch cfg.RunMode {
	case RunModeWorker, RunModeAPI, RunModeOnce:
	default:
		return nil, fmt.Errorf("unknown run mode %q", cfg.RunMode)
	}

	var err error

	if cfg.DBPort, err = envInt("DB_PORT", 3306); err != nil {
		return nil, err
	}

	if cfg.MaxDepth, err = envInt("MAX_DEPTH", 3); err != nil {
		return nil, err
	}

	timeoutSeconds, err := envInt("TIMEOUT", 30)
	if err != nil {
		return nil, err
	}

	cfg.Timeout = time.Duration(timeoutSeconds) * time.Second

	if cfg.MaxConcurrent, err = envInt("MAX_CONCURRENT", 1000); err != nil {
		return nil, err
	}

	pollSeconds, err := envInt("POLL_INTERVAL", 5)
	if err != nil {
		return nil, err
	}

	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	searchID, err := envInt("SEARCH_ID", 0)
	if err != nil {
		return nil, err
	}

	cfg.SearchID = int64(searchID)

	if cfg.DBHost == "" || cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("missing database configuration: DB_HOST, DB_USER and DB_NAME are required")
	}

	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("MAX_DEPTH must not be negative")
	}

	if cfg.Timeout <= 0 || cfg.MaxConcurrent <= 0 || cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("TIMEOUT, MAX_CONCURRENT and POLL_INTERVAL must be positive")
	}

	return &cfg, nil
}

// DatabaseConfig shapes the connection settings for the mysql package.
func (c *Config) DatabaseConfig() mysql.Config {
	return mysql.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Database: c.DBName,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", key, v)
	}

	return n, nil
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

// Telemetry returns the process-wide telemetry sink. Without a PostHog key,
// or with DISABLE_TELEMETRY set, events are discarded.
func Telemetry() tlmt.Telemetry {
	telemetryOnce.Do(func() {
		if os.Getenv("DISABLE_TELEMETRY") != "" {
			telemetry = tlmt.NewNoop()
			return
		}

		apiKey := os.Getenv("POSTHOG_API_KEY")
		if apiKey == "" {
			telemetry = tlmt.NewNoop()
			return
		}

		t, err := tlmt.NewPosthog(apiKey, "https://eu.i.posthog.com")
		if err != nil {
			telemetry = tlmt.NewNoop()
			return
		}

		telemetry = t
	})

	return telemetry
}
