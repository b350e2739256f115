/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/budgetbase/database"
	"github.com/tomoncle/budgetbase/repository"
	"github.com/tomoncle/budgetbase/supabase"
	"github.com/tomoncle/budgetbase/utils"
)

// DefaultEnvFiles are loaded by Load when present. Variables already set in
// the process environment win over values from these files.
var DefaultEnvFiles = []string{".env", ".env.local"}

var (
	// ErrMissingCredentials is returned when the Supabase URL or anon key is
	// empty.
	ErrMissingCredentials = errors.New("supabase url and anon key are required")
	// ErrPlaceholderCredentials is returned when the Supabase URL or key
	// still holds the template value from the example env file.
	ErrPlaceholderCredentials = errors.New("supabase credentials are still placeholders")
)

// Config is the complete application configuration. Values come from the
// YAML file first, then from the environment.
type Config struct {
	Supabase SupabaseConfig            `yaml:"supabase"`
	Strategy repository.Strategy       `yaml:"strategy" env:"BUDGETBASE_STRATEGY"`
	Database database.ConnectionConfig `yaml:"database"`
	Log      LogConfig                 `yaml:"log"`
}

// SupabaseConfig holds the hosted backend connection settings.
type SupabaseConfig struct {
	URL         string        `yaml:"url" env:"SUPABASE_URL"`
	AnonKey     string        `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	AccessToken string        `yaml:"access_token" env:"SUPABASE_ACCESS_TOKEN"`
	Schema      string        `yaml:"schema" env:"SUPABASE_SCHEMA"`
	Timeout     time.Duration `yaml:"timeout" env:"SUPABASE_TIMEOUT"`
	MaxRetries  int           `yaml:"max_retries" env:"SUPABASE_MAX_RETRIES"`
	RateLimit   float64       `yaml:"rate_limit" env:"SUPABASE_RATE_LIMIT"`
	RateBurst   int           `yaml:"rate_burst" env:"SUPABASE_RATE_BURST"`
}

type LogConfig struct {
	Level   string `yaml:"level" env:"LOG_LEVEL"`
	Format  string `yaml:"format" env:"LOG_FORMAT"`
	NoColor bool   `yaml:"no_color" env:"LOG_NO_COLOR"`
}

// Default returns the configuration used before the file and environment
// are applied.
func Default() *Config {
	return &Config{
		Supabase: SupabaseConfig{
			Timeout:    30 * time.Second,
			MaxRetries: supabase.DefaultRetryConfig().MaxRetries,
		},
		Strategy: repository.StructuredQuery,
		Database: *database.DefaultConnectionConfig(),
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from path (optional), the DefaultEnvFiles and the
// process environment, then validates it.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(DefaultEnvFiles...); err != nil {
		return nil, err
	}
	cfg := Default()
	if path != "" {
		if err := cfg.ReadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads each existing file into the process environment.
// Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat env file %s: %w", f, err)
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// ReadFile merges the YAML file at path into c.
func (c *Config) ReadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with the environment variables named in the env
// struct tags. Malformed values are errors.
func (c *Config) ApplyEnv() error {
	err := envdecode.StrictDecode(c)
	// StrictDecode reports ErrInvalidTarget when no variable was set.
	if err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

// Validate checks the settings every command needs. Supabase credentials are
// only checked when present; use SupabaseConfig.Validate where a client is
// required.
func (c *Config) Validate() error {
	if !c.Strategy.IsValid() {
		return &repository.StrategyError{Tag: c.Strategy.Name()}
	}
	switch strings.ToLower(c.Database.Type) {
	case "", "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Supabase.URL != "" || c.Supabase.AnonKey != "" {
		return c.Supabase.Validate()
	}
	return nil
}

// Validate requires a URL and anon key that are not template values.
func (s SupabaseConfig) Validate() error {
	if s.URL == "" || s.AnonKey == "" {
		return ErrMissingCredentials
	}
	if strings.Contains(s.URL, "your-project") || strings.Contains(s.AnonKey, "your-") {
		return ErrPlaceholderCredentials
	}
	return nil
}

// ClientConfig converts s into a supabase.Config.
func (s SupabaseConfig) ClientConfig() supabase.Config {
	retry := supabase.DefaultRetryConfig()
	retry.MaxRetries = s.MaxRetries
	return supabase.Config{
		URL:         s.URL,
		APIKey:      s.AnonKey,
		AccessToken: s.AccessToken,
		Schema:      s.Schema,
		Timeout:     s.Timeout,
		Retry:       retry,
		RateLimit:   s.RateLimit,
		RateBurst:   s.RateBurst,
	}
}

// NewClient validates s and returns a client for it.
func (s SupabaseConfig) NewClient() (*supabase.Client, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return supabase.New(s.ClientConfig())
}

// Options converts l into logger options.
func (l LogConfig) Options() utils.LogOptions {
	return utils.LogOptions{Level: l.Level, Format: l.Format, NoColor: l.NoColor}
}

// Apply reconfigures every named logger.
func (l LogConfig) Apply() {
	utils.Configure(l.Options())
}
