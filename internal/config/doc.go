// Package config loads, normalizes, and validates PagePass configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PAGEPASS_JWT_SECRET and PAGEPASS_NTFY_URL. The Config type centralizes every
// knob the daemon and CLI need: storage location, identity secrets, loan and
// queue policy, and notification delivery.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
