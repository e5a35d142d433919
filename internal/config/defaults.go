package config

const (
	defaultConfigPath              = "~/.config/pagepass/config.toml"
	defaultDataDir                 = "~/.local/share/pagepass"
	defaultLogDir                  = "~/.local/share/pagepass/logs"
	defaultAPIBind                 = "127.0.0.1:7587"
	defaultJWTIssuer               = "pagepass"
	defaultTokenTTLHours           = 24 * 30
	defaultLoanDays                = 14
	defaultPassEscalationThreshold = 3
	defaultOfferWindowHours        = 48
	defaultSweepSchedule           = "@every 15m"
	defaultTopicPrefix             = "pagepass-"
	defaultNotifyRequestTimeout    = 10
	defaultHistoryAppendAttempts   = 4
	defaultHistoryAppendBaseDelay  = 50
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 60

	minJWTSecretLength = 16
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Identity: Identity{
			JWTIssuer:     defaultJWTIssuer,
			TokenTTLHours: defaultTokenTTLHours,
		},
		Circulation: Circulation{
			LoanDays:                defaultLoanDays,
			PassEscalationThreshold: defaultPassEscalationThreshold,
			OfferWindowHours:        defaultOfferWindowHours,
			SweepSchedule:           defaultSweepSchedule,
		},
		Notifications: Notifications{
			TopicPrefix:    defaultTopicPrefix,
			RequestTimeout: defaultNotifyRequestTimeout,
			Handoffs:       true,
			Queue:          true,
			Gifts:          true,
			Shelf:          true,
		},
		History: History{
			AppendAttempts:    defaultHistoryAppendAttempts,
			AppendBaseDelayMS: defaultHistoryAppendBaseDelay,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
