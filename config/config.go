// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/attendance-engine/generic"
)

// Config is shared by the server and the batch binary. Every key can be set
// as an environment variable of the same name.
type Config struct {
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBDSN             string        `mapstructure:"DB_DSN"`
	ServerPort        string        `mapstructure:"SERVER_PORT"`
	IsLocalDev        bool          `mapstructure:"LOCAL_DEV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	ReconcileSince    string        `mapstructure:"RECONCILE_SINCE"`
	ReconcileCommit   bool          `mapstructure:"RECONCILE_COMMIT"`
	DefaultRulesetID  string        `mapstructure:"DEFAULT_RULESET_ID"`
	SchedulerInterval time.Duration `mapstructure:"SCHEDULER_INTERVAL"`
	OTelExporter      string        `mapstructure:"OTEL_EXPORTER"`
	OTelEndpoint      string        `mapstructure:"OTEL_ENDPOINT"`
	AWSRegion         string        `mapstructure:"AWS_REGION"`
	AWSEndpoint       string        `mapstructure:"AWS_ENDPOINT"`
	NotifySender      string        `mapstructure:"NOTIFY_SENDER"`
	NotifyRecipients  string        `mapstructure:"NOTIFY_RECIPIENTS"`
	CorrectionsQueue  string        `mapstructure:"CORRECTIONS_QUEUE_URL"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	v := viper.New()
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "attendance.db")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOCAL_DEV", false)
	v.SetDefault("LOG_LEVEL", "")
	// Start of the corrected period. Intervals before it predate the
	// overtime rules and are never reconciled.
	v.SetDefault("RECONCILE_SINCE", "2025-12-05")
	v.SetDefault("RECONCILE_COMMIT", false)
	v.SetDefault("DEFAULT_RULESET_ID", "")
	v.SetDefault("SCHEDULER_INTERVAL", "0s")
	v.SetDefault("OTEL_EXPORTER", "none")
	v.SetDefault("OTEL_ENDPOINT", "localhost:4317")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT", "")
	v.SetDefault("NOTIFY_SENDER", "")
	v.SetDefault("NOTIFY_RECIPIENTS", "")
	v.SetDefault("CORRECTIONS_QUEUE_URL", "")

	v.AutomaticEnv()

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err = config.Since(); err != nil {
		return config, err
	}
	return config, nil
}

// Since parses RECONCILE_SINCE as a UTC day.
func (c Config) Since() (time.Time, error) {
	tp, err := generic.ParseTimePoint(c.ReconcileSince)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid RECONCILE_SINCE %q: %w", c.ReconcileSince, err)
	}
	return tp.Time, nil
}

// Recipients splits NOTIFY_RECIPIENTS on commas.
func (c Config) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.NotifyRecipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
