package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the complaint gateway.
type Config struct {
	ServerPort int    `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// Twilio webhook verification. An empty auth token disables signature
	// checks (local development only).
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioWebhookURL string `mapstructure:"TWILIO_WEBHOOK_URL"`

	// Google Maps Geocoding + Time Zone APIs. An empty key disables
	// localization; complaints are filed with UTC timestamps.
	GoogleMapsAPIKey string `mapstructure:"GOOGLE_MAPS_API_KEY"`

	// Google Analytics Measurement Protocol. An empty tracking ID disables
	// event posting.
	GATrackingID string `mapstructure:"GA_TRACKING_ID"`
	GAClientID   string `mapstructure:"GA_CLIENT_ID"`

	ComplaintFormURL string `mapstructure:"COMPLAINT_FORM_URL"`
	DiagnosticDir    string `mapstructure:"DIAGNOSTIC_DIR"`
	NavTimeoutMs     int    `mapstructure:"NAV_TIMEOUT_MS"`
	DedupTTLMs       int    `mapstructure:"DEDUP_TTL_MS"`

	BrowserHeadless    bool   `mapstructure:"BROWSER_HEADLESS"`
	BrowserBin         string `mapstructure:"BROWSER_BIN"`
	BrowserDebuggerURL string `mapstructure:"BROWSER_DEBUGGER_URL"`
}

// NavTimeout returns the per-navigation timeout for form automation.
func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutMs) * time.Millisecond
}

// DedupTTL returns the sender cooldown window.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLMs) * time.Millisecond
}

// Load reads configuration from config.defaults.yaml (if present) and the
// environment. Environment variables use the APP_ prefix, e.g. APP_LOG_LEVEL.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("APP")

	v.SetDefault("SERVER_PORT", 3000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_WEBHOOK_URL", "")
	v.SetDefault("GOOGLE_MAPS_API_KEY", "")
	v.SetDefault("GA_TRACKING_ID", "")
	v.SetDefault("GA_CLIENT_ID", "")
	v.SetDefault("COMPLAINT_FORM_URL", "https://complaints.donotcall.gov/complaint/complaintcheck.aspx")
	v.SetDefault("DIAGNOSTIC_DIR", "/var/log/donotcall")
	v.SetDefault("NAV_TIMEOUT_MS", 10000)
	v.SetDefault("DEDUP_TTL_MS", 60000)
	v.SetDefault("BROWSER_HEADLESS", true)
	v.SetDefault("BROWSER_BIN", "")
	v.SetDefault("BROWSER_DEBUGGER_URL", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Base configuration file ('config.defaults.yaml') not found; using defaults and environment variables.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
