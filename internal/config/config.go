// Package config loads and validates the hostsweep configuration file.
package config

import (
	"fmt"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/viper"
)

const (
	defaultPageSize       = 5000
	defaultChunks         = 1
	defaultAlertThreshold = 24
	defaultLogLevel       = "info"
	defaultSMTPPort       = 25
)

// Error reports an invalid or missing configuration value. It is always
// raised before the first network call.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Key, e.Reason)
}

// API configures access to the endpoint security management API.
type API struct {
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	PageSize     int    `mapstructure:"page_size"`
	Proxy        string `mapstructure:"proxy"`
	RPS          int    `mapstructure:"rps"`
}

// Report configures the output pipeline.
type Report struct {
	Chunks              int    `mapstructure:"chunks"`
	AlertThresholdHours int    `mapstructure:"alert_threshold_hours"`
	Output              string `mapstructure:"output"`
}

// SMTP configures report delivery. Leaving Host empty disables mail.
type SMTP struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	From       string `mapstructure:"from"`
	Subject    string `mapstructure:"subject"`
	Recipients string `mapstructure:"recipients"`
}

// RecipientList splits the comma-separated recipients value.
func (s SMTP) RecipientList() []string {
	var out []string
	for _, part := range strings.Split(s.Recipients, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Log configures logging.
type Log struct {
	Level string `mapstructure:"level"`
}

// Config is the whole configuration, built once at startup and passed
// explicitly to every component.
type Config struct {
	API    API    `mapstructure:"api"`
	Report Report `mapstructure:"report"`
	SMTP   SMTP   `mapstructure:"smtp"`
	Log    Log    `mapstructure:"log"`
}

// Load reads the YAML config at path, applies defaults and environment
// overrides (HOSTSWEEP_API_CLIENT_SECRET and friends), and validates the
// result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("api.page_size", defaultPageSize)
	v.SetDefault("report.chunks", defaultChunks)
	v.SetDefault("report.alert_threshold_hours", defaultAlertThreshold)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("smtp.port", defaultSMTPPort)

	v.SetEnvPrefix("hostsweep")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv alone does not surface keys absent from the file during
	// Unmarshal, so the secret is bound explicitly.
	_ = v.BindEnv("api.client_secret")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every value a run depends on before any network activity.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.API.BaseURL) == "":
		return &Error{Key: "api.base_url", Reason: "must be set"}
	case strings.TrimSpace(c.API.ClientID) == "":
		return &Error{Key: "api.client_id", Reason: "must be set"}
	case strings.TrimSpace(c.API.ClientSecret) == "":
		return &Error{Key: "api.client_secret", Reason: "must be set"}
	case c.API.PageSize < 1:
		return &Error{Key: "api.page_size", Reason: "must be at least 1"}
	case c.Report.Chunks < 1:
		return &Error{Key: "report.chunks", Reason: "must be at least 1"}
	case c.Report.AlertThresholdHours < 0:
		return &Error{Key: "report.alert_threshold_hours", Reason: "must not be negative"}
	case strings.TrimSpace(c.Report.Output) == "":
		return &Error{Key: "report.output", Reason: "must be set"}
	}
	if c.SMTP.Host != "" && len(c.SMTP.RecipientList()) == 0 {
		return &Error{Key: "smtp.recipients", Reason: "must be set when smtp.host is set"}
	}
	return nil
}

// MailEnabled reports whether a delivery target is configured.
func (c *Config) MailEnabled() bool { return c.SMTP.Host != "" }
