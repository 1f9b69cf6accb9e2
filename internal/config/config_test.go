package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("expected poll interval 10s, got %v", cfg.PollInterval)
	}
	if cfg.MaxAttempts != 360 {
		t.Errorf("expected 360 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.UploadTimeout != 5*time.Minute {
		t.Errorf("unexpected timeouts: %v, %v", cfg.HTTPTimeout, cfg.UploadTimeout)
	}
	if cfg.Backend != "endpoint" || cfg.Addr != ":8080" || cfg.DB != "./data/cloudtran.db" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLOUDTRAN_ENDPOINT", "https://api.example.test/translate")
	t.Setenv("CLOUDTRAN_POLL_INTERVAL", "15s")
	t.Setenv("CLOUDTRAN_MAX_ATTEMPTS", "240")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Endpoint != "https://api.example.test/translate" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("expected 15s, got %v", cfg.PollInterval)
	}
	if cfg.MaxAttempts != 240 {
		t.Errorf("expected 240, got %d", cfg.MaxAttempts)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "cloudtran.yaml")
	data := "endpoint: https://file.example.test\npoll_interval: 5s\nbackend: google\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Endpoint != "https://file.example.test" || cfg.PollInterval != 5*time.Second || cfg.Backend != "google" {
		t.Errorf("config file not applied: %+v", cfg)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for explicit missing config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLOUDTRAN_BACKEND", "deepl")

	_, err := Load(viper.New(), "")
	if err == nil || !strings.Contains(err.Error(), "backend") {
		t.Errorf("expected backend validation error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CLOUDTRAN_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLOUDTRAN_TEST_DOTENV", "")
	os.Unsetenv("CLOUDTRAN_TEST_DOTENV")

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("CLOUDTRAN_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		PollInterval:  10 * time.Second,
		MaxAttempts:   360,
		HTTPTimeout:   time.Second,
		UploadTimeout: time.Second,
		Backend:       "endpoint",
		DB:            "x.db",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero interval", func(c *Config) { c.PollInterval = 0 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"zero upload timeout", func(c *Config) { c.UploadTimeout = 0 }},
		{"unknown backend", func(c *Config) { c.Backend = "x" }},
		{"no db", func(c *Config) { c.DB = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRequireEndpoint(t *testing.T) {
	if err := (&Config{}).RequireEndpoint(); err == nil {
		t.Error("expected error for empty endpoint")
	}
	if err := (&Config{Endpoint: "https://x"}).RequireEndpoint(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPollBudget(t *testing.T) {
	c := Config{PollInterval: 10 * time.Second, MaxAttempts: 360}
	if got := c.PollBudget(); got != "every 10s, up to 360 checks (1h0m0s)" {
		t.Errorf("unexpected budget text %q", got)
	}
}

func TestCORSOriginsList(t *testing.T) {
	c := Config{CORSOrigins: " http://a.test, ,http://b.test,http://a.test"}
	want := []string{"http://a.test", "http://b.test"}
	if got := c.CORSOriginsList(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
