package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Identity contains bearer token settings for the HTTP API.
type Identity struct {
	JWTSecret     string `toml:"jwt_secret"`
	JWTIssuer     string `toml:"jwt_issuer"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// Circulation contains lending policy knobs.
type Circulation struct {
	LoanDays                int    `toml:"loan_days"`
	PassEscalationThreshold int    `toml:"pass_escalation_threshold"`
	OfferWindowHours        int    `toml:"offer_window_hours"`
	SweepSchedule           string `toml:"sweep_schedule"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyURL        string `toml:"ntfy_url"`
	TopicPrefix    string `toml:"topic_prefix"`
	RequestTimeout int    `toml:"request_timeout"`
	Handoffs       bool   `toml:"handoffs"`
	Queue          bool   `toml:"queue"`
	Gifts          bool   `toml:"gifts"`
	Shelf          bool   `toml:"shelf"`
}

// History contains configuration for the audit ledger.
type History struct {
	AppendAttempts    int `toml:"append_attempts"`
	AppendBaseDelayMS int `toml:"append_base_delay_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for PagePass.
//
// Configuration sections by subsystem:
//   - Paths: database directory, log directory, and API bind address
//   - Identity: JWT secret and issuer for API bearer tokens
//   - Circulation: loan length, pass escalation, and offer expiry sweep
//   - Notifications: ntfy push notification settings
//   - History: ledger append retry settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Identity      Identity      `toml:"identity"`
	Circulation   Circulation   `toml:"circulation"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFile(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pagepass.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the circulation database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "pagepass.db")
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "pagepass.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "pagepass.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "pagepass.pid")
}

// LoanPeriod is the length of a pagepass loan.
func (c *Config) LoanPeriod() time.Duration {
	return time.Duration(c.Circulation.LoanDays) * 24 * time.Hour
}

// OfferWindow is how long a queue head may sit on an offer before the sweep
// records a pass on their behalf.
func (c *Config) OfferWindow() time.Duration {
	return time.Duration(c.Circulation.OfferWindowHours) * time.Hour
}

// TokenTTL is the default lifetime of minted API tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Identity.TokenTTLHours) * time.Hour
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
