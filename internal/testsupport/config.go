package testsupport

import (
	"path/filepath"
	"testing"

	"pagepass/internal/config"
)

// TestJWTSecret is the identity secret seeded into generated configs.
const TestJWTSecret = "pagepass-test-secret-0123456789"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Identity.JWTSecret = TestJWTSecret
	cfg.History.AppendBaseDelayMS = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithNtfyURL points notifications at a test server.
func WithNtfyURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Notifications.NtfyURL = url
	}
}

// WithPassThreshold overrides the escalation threshold.
func WithPassThreshold(n int) ConfigOption {
	return func(c *config.Config) {
		c.Circulation.PassEscalationThreshold = n
	}
}
