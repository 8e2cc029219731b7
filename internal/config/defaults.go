package config

const (
	defaultWorkDir           = "temp"
	defaultVoice             = "en-US-JennyNeural"
	defaultBatchSize         = 10
	defaultRetries           = 10
	defaultMaxSpeed          = 1.5
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNotifyTimeoutSecs = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
		},
		Speech: Speech{
			Voice:     defaultVoice,
			BatchSize: defaultBatchSize,
			Retries:   defaultRetries,
		},
		Timing: Timing{
			MaxSpeed: defaultMaxSpeed,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeoutSecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
