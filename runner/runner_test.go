package runner

import (
	"strings"
	"testing"
	"time"
)

func setDatabaseEnv(t *testing.T) {
	t.Helper()

	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "emails")
}

func clearTuningEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"ADDR", "DASHBOARD_ADDR", "WORKER_ID", "DB_PORT", "MAX_DEPTH",
		"TIMEOUT", "MAX_CONCURRENT", "POLL_INTERVAL", "SEARCH_ID",
	} {
		t.Setenv(key, "")
	}
}

func TestParseConfigDefaults(t *testing.T) {
	setDatabaseEnv(t)
	clearTuningEnv(t)

	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RunMode != RunModeWorker {
		t.Fatalf("expected worker mode by default, got %q", cfg.RunMode)
	}

	if cfg.DBPort != 3306 || cfg.Addr != ":8080" {
		t.Fatalf("unexpected defaults: port=%d addr=%q", cfg.DBPort, cfg.Addr)
	}

	if cfg.DashboardAddr != "" {
		t.Fatalf("expected dashboard disabled by default, got %q", cfg.DashboardAddr)
	}

	if cfg.MaxDepth != 3 || cfg.Timeout != 30*time.Second || cfg.MaxConcurrent != 1000 {
		t.Fatalf("unexpected crawl defaults: %+v", cfg)
	}

	if cfg.PollInterval != 5*time.Second || cfg.SearchID != 0 {
		t.Fatalf("unexpected worker defaults: %+v", cfg)
	}

	if !strings.HasPrefix(cfg.WorkerID, "worker-") {
		t.Fatalf("expected generated worker id, got %q", cfg.WorkerID)
	}
}

func TestParseConfigModes(t *testing.T) {
	setDatabaseEnv(t)
	clearTuningEnv(t)

	for _, mode := range []string{RunModeWorker, RunModeAPI, RunModeOnce} {
		cfg, err := ParseConfig([]string{mode})
		if err != nil {
			t.Fatalf("mode %s: unexpected error: %v", mode, err)
		}

		if cfg.RunMode != mode {
			t.Fatalf("expected mode %q, got %q", mode, cfg.RunMode)
		}
	}

	if _, err := ParseConfig([]string{"bogus"}); err == nil || !strings.Contains(err.Error(), `unknown run mode "bogus"`) {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}

func TestParseConfigMissingDatabase(t *testing.T) {
	clearTuningEnv(t)

	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_NAME", "")

	if _, err := ParseConfig(nil); err == nil || !strings.Contains(err.Error(), "missing database configuration") {
		t.Fatalf("expected missing database error, got %v", err)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	setDatabaseEnv(t)
	clearTuningEnv(t)

	t.Setenv("ADDR", ":9090")
	t.Setenv("DASHBOARD_ADDR", ":9091")
	t.Setenv("WORKER_ID", "w1")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("MAX_DEPTH", "1")
	t.Setenv("TIMEOUT", "10")
	t.Setenv("MAX_CONCURRENT", "50")
	t.Setenv("POLL_INTERVAL", "2")
	t.Setenv("SEARCH_ID", "9")

	cfg, err := ParseConfig([]string{"once"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != ":9090" || cfg.DashboardAddr != ":9091" || cfg.WorkerID != "w1" || cfg.DBPort != 3307 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}

	if cfg.MaxDepth != 1 || cfg.Timeout != 10*time.Second || cfg.MaxConcurrent != 50 {
		t.Fatalf("unexpected crawl overrides: %+v", cfg)
	}

	if cfg.PollInterval != 2*time.Second || cfg.SearchID != 9 {
		t.Fatalf("unexpected worker overrides: %+v", cfg)
	}
}

func TestParseConfigBadValues(t *testing.T) {
	setDatabaseEnv(t)

	tests := []struct {
		key     string
		value   string
		wantErr string
	}{
		{"MAX_DEPTH", "abc", `invalid MAX_DEPTH value "abc"`},
		{"MAX_DEPTH", "-1", "MAX_DEPTH must not be negative"},
		{"TIMEOUT", "0", "must be positive"},
		{"MAX_CONCURRENT", "-3", "must be positive"},
		{"POLL_INTERVAL", "0", "must be positive"},
		{"DB_PORT", "not-a-port", `invalid DB_PORT value "not-a-port"`},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearTuningEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := ParseConfig(nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDatabaseConfig(t *testing.T) {
	cfg := Config{
		DBHost:     "db",
		DBPort:     3307,
		DBUser:     "u",
		DBPassword: "p",
		DBName:     "n",
	}

	mc := cfg.DatabaseConfig()

	if mc.Host != "db" || mc.Port != 3307 || mc.User != "u" || mc.Password != "p" || mc.Database != "n" {
		t.Fatalf("unexpected mapping: %+v", mc)
	}
}
