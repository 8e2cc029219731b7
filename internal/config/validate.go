package config

import (
	"errors"
	"fmt"
)

var knownFormats = map[string]struct{}{
	"":     {},
	"wav":  {},
	"m4a":  {},
	"opus": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSpeech() error {
	if c.Speech.BatchSize <= 0 {
		return errors.New("speech.batch_size must be positive")
	}
	if c.Speech.Retries < 0 {
		return errors.New("speech.retries must not be negative")
	}
	if c.Speech.RequestsPerMinute < 0 {
		return errors.New("speech.requests_per_minute must not be negative")
	}
	if c.Speech.Voice == "" {
		return errors.New("speech.voice must be set")
	}
	return nil
}

func (c *Config) validateTiming() error {
	if c.Timing.MaxSpeed < 1 {
		return fmt.Errorf("timing.max_speed must be at least 1.0, got %g", c.Timing.MaxSpeed)
	}
	return nil
}

func (c *Config) validateOutput() error {
	if _, ok := knownFormats[c.Output.Format]; !ok {
		return fmt.Errorf("output.format must be one of wav, m4a, opus; got %q", c.Output.Format)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be console, json, or auto; got %q", c.Logging.Format)
	}
	return nil
}
