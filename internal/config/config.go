// Package config loads cloudtran settings from flags, environment,
// an optional YAML file and .env files, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "CLOUDTRAN"

// Keys
const (
	KeyEndpoint          = "endpoint"
	KeyPollInterval      = "poll_interval"
	KeyMaxAttempts       = "max_attempts"
	KeyHTTPTimeout       = "http_timeout"
	KeyUploadTimeout     = "upload_timeout"
	KeyDB                = "db"
	KeyNoCache           = "no_cache"
	KeyLogLevel          = "log_level"
	KeyLogFormat         = "log_format"
	KeyAddr              = "addr"
	KeyBackend           = "backend"
	KeyGoogleCredentials = "google_credentials"
	KeyGoogleProject     = "google_project"
	KeyCORSOrigins       = "cors_origins"
)

type Config struct {
	Endpoint          string        `mapstructure:"endpoint"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	UploadTimeout     time.Duration `mapstructure:"upload_timeout"`
	DB                string        `mapstructure:"db"`
	NoCache           bool          `mapstructure:"no_cache"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	Addr              string        `mapstructure:"addr"`
	Backend           string        `mapstructure:"backend"`
	GoogleCredentials string        `mapstructure:"google_credentials"`
	GoogleProject     string        `mapstructure:"google_project"`
	CORSOrigins       string        `mapstructure:"cors_origins"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyEndpoint, "")
	v.SetDefault(KeyPollInterval, 10*time.Second)
	v.SetDefault(KeyMaxAttempts, 360)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyUploadTimeout, 5*time.Minute)
	v.SetDefault(KeyDB, "./data/cloudtran.db")
	v.SetDefault(KeyNoCache, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyBackend, "endpoint")
	v.SetDefault(KeyGoogleCredentials, "")
	v.SetDefault(KeyGoogleProject, "")
	v.SetDefault(KeyCORSOrigins, "")
}

// LoadDotEnv loads .env and .env.local from the working directory when they
// exist. Variables already set in the environment win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads configuration into v and decodes it. cfgFile overrides the
// default search for .cloudtran.yaml in the working and home directories.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".cloudtran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%s must be >= 1", KeyMaxAttempts)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyHTTPTimeout)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyUploadTimeout)
	}
	switch c.Backend {
	case "endpoint", "google":
	default:
		return fmt.Errorf("%s must be endpoint or google, got %q", KeyBackend, c.Backend)
	}
	if strings.TrimSpace(c.DB) == "" && !c.NoCache {
		return fmt.Errorf("%s is required unless %s is set", KeyDB, KeyNoCache)
	}
	return nil
}

// RequireEndpoint reports a missing endpoint with a hint on how to set it.
func (c *Config) RequireEndpoint() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("no translation endpoint configured: use --endpoint or %s_ENDPOINT", EnvPrefix)
	}
	return nil
}

// PollBudget describes the polling window for user-facing messages,
// e.g. "every 10s, up to 360 checks (1h0m0s)".
func (c *Config) PollBudget() string {
	return fmt.Sprintf("every %s, up to %d checks (%s)", c.PollInterval, c.MaxAttempts, c.PollInterval*time.Duration(c.MaxAttempts))
}

func (c *Config) CORSOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
