// Package config loads crescent's settings.
//
// Sources, later ones winning: built-in defaults, a YAML file, a .env file,
// and CRESCENT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Gateway kinds. GatewayMemory has no backend of record: sessions stay
// signed out and every write stays queued in the local store.
const (
	GatewayMemory   = "memory"
	GatewayPostgres = "postgres"
)

// Config is the full application configuration.
type Config struct {
	// DataPath is the SQLite file holding the local snapshot.
	DataPath string `yaml:"data_path"`

	Gateway     GatewayConfig     `yaml:"gateway"`
	Sync        SyncConfig        `yaml:"sync"`
	Progression ProgressionConfig `yaml:"progression"`
}

// GatewayConfig selects and configures the backend of record.
type GatewayConfig struct {
	Kind string `yaml:"kind"`

	PostgresURL   string `yaml:"postgres_url"`
	Bootstrap     bool   `yaml:"bootstrap"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	ChannelPrefix string `yaml:"channel_prefix"`

	JWTSecret    string `yaml:"jwt_secret"`
	JWTIssuer    string `yaml:"jwt_issuer"`
	SessionToken string `yaml:"session_token"`
}

// SyncConfig tunes the sync coordinator.
type SyncConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	ClearOnSignOut  bool          `yaml:"clear_on_signout"`
	FlushTimeout    time.Duration `yaml:"flush_timeout"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	RetroactiveDays int           `yaml:"retroactive_days"`
}

// ProgressionConfig points at an optional CUE override of the progression
// tables.
type ProgressionConfig struct {
	ConfigPath string `yaml:"config_path"`

	// MaxAdults overrides the CUE max_adults when positive.
	MaxAdults int `yaml:"max_adults"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataPath: "crescent.db",
		Gateway: GatewayConfig{
			Kind:      GatewayMemory,
			JWTIssuer: "crescent",
		},
		Sync: SyncConfig{
			MaxRetries:      5,
			FlushTimeout:    10 * time.Second,
			CallTimeout:     15 * time.Second,
			RetroactiveDays: 3,
		},
	}
}

// Load builds the configuration from path (optional) and envFile
// (optional; a missing file is not an error), then the process environment.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read env file %s: %w", envFile, err)
		default:
			dotenv = m
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML over cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with CRESCENT_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("CRESCENT_DATA_PATH", &cfg.DataPath)
	e.str("CRESCENT_GATEWAY", &cfg.Gateway.Kind)
	e.str("CRESCENT_POSTGRES_URL", &cfg.Gateway.PostgresURL)
	e.boolean("CRESCENT_BOOTSTRAP", &cfg.Gateway.Bootstrap)
	e.str("CRESCENT_REDIS_ADDR", &cfg.Gateway.RedisAddr)
	e.str("CRESCENT_REDIS_PASSWORD", &cfg.Gateway.RedisPassword)
	e.integer("CRESCENT_REDIS_DB", &cfg.Gateway.RedisDB)
	e.str("CRESCENT_CHANNEL_PREFIX", &cfg.Gateway.ChannelPrefix)
	e.str("CRESCENT_JWT_SECRET", &cfg.Gateway.JWTSecret)
	e.str("CRESCENT_JWT_ISSUER", &cfg.Gateway.JWTIssuer)
	e.str("CRESCENT_SESSION_TOKEN", &cfg.Gateway.SessionToken)

	e.integer("CRESCENT_MAX_RETRIES", &cfg.Sync.MaxRetries)
	e.boolean("CRESCENT_CLEAR_ON_SIGNOUT", &cfg.Sync.ClearOnSignOut)
	e.duration("CRESCENT_FLUSH_TIMEOUT", &cfg.Sync.FlushTimeout)
	e.duration("CRESCENT_CALL_TIMEOUT", &cfg.Sync.CallTimeout)
	e.integer("CRESCENT_RETROACTIVE_DAYS", &cfg.Sync.RetroactiveDays)

	e.str("CRESCENT_PROGRESSION_CONFIG", &cfg.Progression.ConfigPath)
	e.integer("CRESCENT_MAX_ADULTS", &cfg.Progression.MaxAdults)

	return errors.Join(e.errs...)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.DataPath == "" {
		errs = append(errs, errors.New("data_path is required"))
	}
	switch c.Gateway.Kind {
	case GatewayMemory:
	case GatewayPostgres:
		if c.Gateway.PostgresURL == "" {
			errs = append(errs, errors.New("gateway.postgres_url is required for the postgres gateway"))
		}
	default:
		errs = append(errs, fmt.Errorf("gateway.kind %q: want %s or %s", c.Gateway.Kind, GatewayMemory, GatewayPostgres))
	}
	if c.Sync.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("sync.max_retries must be at least 1, got %d", c.Sync.MaxRetries))
	}
	if c.Sync.FlushTimeout <= 0 {
		errs = append(errs, errors.New("sync.flush_timeout must be positive"))
	}
	if c.Sync.CallTimeout <= 0 {
		errs = append(errs, errors.New("sync.call_timeout must be positive"))
	}
	if c.Sync.RetroactiveDays < 1 {
		errs = append(errs, fmt.Errorf("sync.retroactive_days must be at least 1, got %d", c.Sync.RetroactiveDays))
	}
	if c.Progression.MaxAdults < 0 {
		errs = append(errs, fmt.Errorf("progression.max_adults must not be negative, got %d", c.Progression.MaxAdults))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}
