package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIdentity()
	c.normalizeCirculation()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeIdentity() {
	c.Identity.JWTSecret = strings.TrimSpace(c.Identity.JWTSecret)
	if c.Identity.JWTSecret == "" {
		if value, ok := os.LookupEnv("PAGEPASS_JWT_SECRET"); ok {
			c.Identity.JWTSecret = strings.TrimSpace(value)
		}
	}
	c.Identity.JWTIssuer = strings.TrimSpace(c.Identity.JWTIssuer)
	if c.Identity.JWTIssuer == "" {
		c.Identity.JWTIssuer = defaultJWTIssuer
	}
}

func (c *Config) normalizeCirculation() {
	c.Circulation.SweepSchedule = strings.TrimSpace(c.Circulation.SweepSchedule)
	if c.Circulation.SweepSchedule == "" {
		c.Circulation.SweepSchedule = defaultSweepSchedule
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyURL = strings.TrimSpace(c.Notifications.NtfyURL)
	if c.Notifications.NtfyURL == "" {
		if value, ok := os.LookupEnv("PAGEPASS_NTFY_URL"); ok {
			c.Notifications.NtfyURL = strings.TrimSpace(value)
		}
	}
	c.Notifications.NtfyURL = strings.TrimRight(c.Notifications.NtfyURL, "/")
	c.Notifications.TopicPrefix = strings.TrimSpace(c.Notifications.TopicPrefix)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
