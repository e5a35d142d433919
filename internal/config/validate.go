package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateCirculation(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateIdentity() error {
	if c.Identity.JWTSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("identity.jwt_secret is required. Set PAGEPASS_JWT_SECRET env var or edit %s (create with 'pagepass config init')", defaultPath)
	}
	if len(c.Identity.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("identity.jwt_secret must be at least %d characters", minJWTSecretLength)
	}
	if c.Identity.TokenTTLHours <= 0 {
		return errors.New("identity.token_ttl_hours must be positive")
	}
	return nil
}

func (c *Config) validateCirculation() error {
	if err := ensurePositiveMap(map[string]int{
		"circulation.loan_days":                 c.Circulation.LoanDays,
		"circulation.pass_escalation_threshold": c.Circulation.PassEscalationThreshold,
		"circulation.offer_window_hours":        c.Circulation.OfferWindowHours,
	}); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Circulation.SweepSchedule); err != nil {
		return fmt.Errorf("circulation.sweep_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.NtfyURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_url must be an absolute URL, got %q", c.Notifications.NtfyURL)
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.AppendAttempts <= 0 {
		return errors.New("history.append_attempts must be positive")
	}
	if c.History.AppendBaseDelayMS < 0 {
		return errors.New("history.append_base_delay_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
