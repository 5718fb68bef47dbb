// Package config resolves botflow settings from defaults, an optional YAML
// file, a .env file and BOTFLOW_* environment variables, in that order.
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "botflow.yaml"

// Storage backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Debug   DebugConfig   `yaml:"debug"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	// Backend persists breakpoints and archived runs: memory, file or redis.
	Backend  string        `yaml:"backend"`
	BotsDir  string        `yaml:"bots_dir"`
	RunsDir  string        `yaml:"runs_dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// Redact lists patterns of variable names masked in archived runs.
	Redact []string `yaml:"redact"`
	// EncryptionKey is a base64 AES-256 key sealing archived runs; empty disables it.
	EncryptionKey string `yaml:"encryption_key"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	RunTTL   time.Duration `yaml:"run_ttl"`
}

type DebugConfig struct {
	MaxSteps      int           `yaml:"max_steps"`
	ReapInterval  time.Duration `yaml:"reap_interval"`
	SessionMaxAge time.Duration `yaml:"session_max_age"`
	TruthyLabels  []string      `yaml:"truthy_labels"`
	FalsyLabels   []string      `yaml:"falsy_labels"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			Backend:  StoreFile,
			BotsDir:  "data/bots",
			RunsDir:  ".botflow/runs",
			CacheTTL: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "botflow:",
		},
		Debug: DebugConfig{
			MaxSteps:      10000,
			ReapInterval:  time.Minute,
			SessionMaxAge: 30 * time.Minute,
			TruthyLabels:  []string{"true", "yes", "then"},
			FalsyLabels:   []string{"false", "no", "else"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves the configuration. An explicit path must exist; without one,
// DefaultFile is used when present. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if p, ok := lookup("BOTFLOW_CONFIG"); ok && p != "" {
			path, explicit = p, true
		} else {
			path = DefaultFile
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			var out []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			*dst = out
		}
	}

	str("BOTFLOW_ADDR", &c.Server.Addr)
	str("BOTFLOW_STORE", &c.Storage.Backend)
	str("BOTFLOW_BOTS_DIR", &c.Storage.BotsDir)
	str("BOTFLOW_RUNS_DIR", &c.Storage.RunsDir)
	duration("BOTFLOW_CACHE_TTL", &c.Storage.CacheTTL)
	list("BOTFLOW_REDACT", &c.Storage.Redact)
	str("BOTFLOW_ENCRYPTION_KEY", &c.Storage.EncryptionKey)
	str("BOTFLOW_REDIS_ADDR", &c.Redis.Addr)
	str("BOTFLOW_REDIS_PASSWORD", &c.Redis.Password)
	integer("BOTFLOW_REDIS_DB", &c.Redis.DB)
	str("BOTFLOW_REDIS_PREFIX", &c.Redis.Prefix)
	duration("BOTFLOW_RUN_TTL", &c.Redis.RunTTL)
	integer("BOTFLOW_MAX_STEPS", &c.Debug.MaxSteps)
	duration("BOTFLOW_REAP_INTERVAL", &c.Debug.ReapInterval)
	duration("BOTFLOW_SESSION_MAX_AGE", &c.Debug.SessionMaxAge)
	list("BOTFLOW_TRUTHY_LABELS", &c.Debug.TruthyLabels)
	list("BOTFLOW_FALSY_LABELS", &c.Debug.FalsyLabels)
	str("BOTFLOW_LOG_LEVEL", &c.Log.Level)
	str("BOTFLOW_LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Debug.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("max_steps must be positive, got %d", c.Debug.MaxSteps))
	}
	if c.Storage.Backend == StoreRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis backend requires redis.addr"))
	}
	if len(c.Debug.TruthyLabels) == 0 || len(c.Debug.FalsyLabels) == 0 {
		errs = append(errs, errors.New("branch labels cannot be empty"))
	}
	return errors.Join(errs...)
}
