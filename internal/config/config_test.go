package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"pagepass/internal/config"
)

const testSecret = "0123456789abcdef0123"

func TestLoadDefaultConfigUsesEnvSecretAndExpandsPaths(t *testing.T) {
	t.Setenv("PAGEPASS_JWT_SECRET", testSecret)
	t.Setenv("PAGEPASS_NTFY_URL", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "pagepass")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "pagepass.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Identity.JWTSecret != testSecret {
		t.Fatalf("expected secret from env, got %q", cfg.Identity.JWTSecret)
	}
	if cfg.LoanPeriod() != 14*24*time.Hour {
		t.Fatalf("unexpected loan period: %s", cfg.LoanPeriod())
	}
	if cfg.OfferWindow() != 48*time.Hour {
		t.Fatalf("unexpected offer window: %s", cfg.OfferWindow())
	}
	if cfg.Circulation.PassEscalationThreshold != 3 {
		t.Fatalf("unexpected escalation threshold: %d", cfg.Circulation.PassEscalationThreshold)
	}
	if cfg.Notifications.NtfyURL != "" {
		t.Fatalf("expected notifications disabled by default, got %q", cfg.Notifications.NtfyURL)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("PAGEPASS_JWT_SECRET", "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when jwt secret missing")
	}
	if !strings.Contains(err.Error(), "identity.jwt_secret") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCustomFile(t *testing.T) {
	t.Setenv("PAGEPASS_JWT_SECRET", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	custom := config.Default()
	custom.Paths.DataDir = "~/books"
	custom.Identity.JWTSecret = testSecret
	custom.Circulation.LoanDays = 21
	custom.Circulation.OfferWindowHours = 24
	custom.Notifications.NtfyURL = "https://ntfy.example.com/"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != cfgPath {
		t.Fatalf("expected custom file to be used, got %q (exists=%v)", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "books") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.LoanPeriod() != 21*24*time.Hour {
		t.Fatalf("unexpected loan period: %s", cfg.LoanPeriod())
	}
	if cfg.Notifications.NtfyURL != "https://ntfy.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Notifications.NtfyURL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"short secret", func(c *config.Config) { c.Identity.JWTSecret = "short" }, "at least"},
		{"zero loan days", func(c *config.Config) { c.Circulation.LoanDays = 0 }, "circulation.loan_days"},
		{"zero threshold", func(c *config.Config) { c.Circulation.PassEscalationThreshold = 0 }, "pass_escalation_threshold"},
		{"bad schedule", func(c *config.Config) { c.Circulation.SweepSchedule = "every so often" }, "sweep_schedule"},
		{"relative ntfy", func(c *config.Config) { c.Notifications.NtfyURL = "ntfy.sh" }, "ntfy_url"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"no attempts", func(c *config.Config) { c.History.AppendAttempts = 0 }, "append_attempts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Identity.JWTSecret = testSecret
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("PAGEPASS_JWT_SECRET", testSecret)
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Circulation.SweepSchedule != "@every 15m" {
		t.Fatalf("unexpected sweep schedule: %q", cfg.Circulation.SweepSchedule)
	}
}

func TestLoadReadsEnvFileBesideConfig(t *testing.T) {
	// Register restoration, then clear so the .env value can apply.
	t.Setenv("PAGEPASS_JWT_SECRET", "")
	os.Unsetenv("PAGEPASS_JWT_SECRET")
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[circulation]\nloan_days = 7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envBody := "PAGEPASS_JWT_SECRET=" + testSecret + "\n"
	if err := os.WriteFile(filepath.Join(dir, config.EnvFileName), []byte(envBody), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Identity.JWTSecret != testSecret {
		t.Fatalf("expected secret from env file, got %q", cfg.Identity.JWTSecret)
	}
	if cfg.Circulation.LoanDays != 7 {
		t.Fatalf("expected loan days from file, got %d", cfg.Circulation.LoanDays)
	}
}
