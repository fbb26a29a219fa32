package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration.
// Variables may be given with the CHATCAL_ prefix or, thanks to the explicit
// envconfig tags, without it (e.g. GEMINI_API_KEY).
type Config struct {
	// Gemini
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Google Calendar OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:3000/auth/google/callback"`
	GoogleCalendarID   string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`

	PrimaryTimeZone string `envconfig:"PRIMARY_TIMEZONE" default:"UTC"`

	// HTTP
	HTTPPort  int    `envconfig:"HTTP_PORT" default:"3000"`
	StaticDir string `envconfig:"STATIC_DIR" default:"public"`

	TokenDir string `envconfig:"TOKEN_DIR" default:"tokens"`

	MaxRetries     int    `envconfig:"MAX_RETRIES" default:"3"`
	DefaultPersona string `envconfig:"DEFAULT_PERSONA" default:"Idea Generator"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Optional iCloud mirror; enabled when ICLOUD_USERNAME is set.
	ICloudUsername     string `envconfig:"ICLOUD_USERNAME"`
	ICloudPassword     string `envconfig:"ICLOUD_APP_SPECIFIC_PASSWORD"`
	ICloudCalendarName string `envconfig:"ICLOUD_CALENDAR_NAME"`
	MirrorStateFile    string `envconfig:"MIRROR_STATE_FILE" default:"mirror-state.json"`

	location *time.Location
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()
	return New()
}

// New parses the environment into a validated Config.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CHATCAL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	loc, err := time.LoadLocation(c.PrimaryTimeZone)
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.PrimaryTimeZone, err)
	}
	c.location = loc
	if c.ICloudUsername != "" && (c.ICloudPassword == "" || c.ICloudCalendarName == "") {
		return fmt.Errorf("ICLOUD_APP_SPECIFIC_PASSWORD and ICLOUD_CALENDAR_NAME are required when ICLOUD_USERNAME is set")
	}
	return nil
}

// Location is the parsed PrimaryTimeZone. Valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// MirrorEnabled reports whether events should be copied to iCloud.
func (c *Config) MirrorEnabled() bool {
	return c.ICloudUsername != ""
}
