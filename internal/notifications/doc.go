// Package notifications delivers circulation notices to people.
//
// The default implementation publishes each notice to a per-user ntfy topic
// built from notifications.ntfy_url and notifications.topic_prefix, and falls
// back to a no-op when no URL is configured. Categories of notices can be
// switched off individually in config.toml.
package notifications
