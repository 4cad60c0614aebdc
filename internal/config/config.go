package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"feedsim/internal/generate"
	"feedsim/internal/model"
)

// EnvPrefix namespaces environment overrides, e.g. FEEDSIM_DB_PATH.
const EnvPrefix = "FEEDSIM"

// Config is the application's configuration model.
type Config struct {
	Storage     StorageConfig         `yaml:"storage"`
	Generation  GenerationConfig      `yaml:"generation"`
	Credentials CredentialsConfig     `yaml:"credentials"`
	Feed        FeedConfig            `yaml:"feed"`
	Reactions   model.ReactionWeights `yaml:"reactions"`
	Logging     LoggingConfig         `yaml:"logging"`
	Metrics     MetricsConfig         `yaml:"metrics"`
}

type StorageConfig struct {
	// ":memory:" keeps everything in process
	DBPath string `yaml:"dbPath"`
}

type GenerationConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	Language       string        `yaml:"language"` // "ja" or "en"
	TimeoutSeconds int           `yaml:"timeoutSeconds"`
	FallbackDelay  time.Duration `yaml:"fallbackDelay"`
	// Backend pacing; FEEDSIM_GEN_RPS / FEEDSIM_GEN_BURST override.
	RequestsPerSecond float64                `yaml:"requestsPerSecond"`
	Burst             int                    `yaml:"burst"`
	Chain             []generate.ModelConfig `yaml:"chain"`
}

type CredentialsConfig struct {
	// Used when the user has not stored a key. If empty, read from env
	// FEEDSIM_GENERATION_API_KEY (a .env file is honoured).
	DefaultAPIKey string `yaml:"defaultAPIKey"`
	// Seals the stored key. If empty, read FEEDSIM_SECRET_PASSPHRASE.
	Passphrase string `yaml:"passphrase"`
}

type FeedConfig struct {
	// Stock below this triggers generation
	MinStock int `yaml:"minStock"`
	// Items requested per generation call
	BatchSize int `yaml:"batchSize"`
	// A refresh promotes a random count in [PromoteMin, PromoteMax]
	PromoteMin    int           `yaml:"promoteMin"`
	PromoteMax    int           `yaml:"promoteMax"`
	StockInterval time.Duration `yaml:"stockInterval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{DBPath: "./feedsim.db"},
		Generation: GenerationConfig{
			BaseURL:           generate.DefaultGeminiURL,
			Language:          "ja",
			TimeoutSeconds:    60,
			FallbackDelay:     time.Second,
			RequestsPerSecond: generate.DefaultRPS,
			Burst:             generate.DefaultBurst,
			Chain:             generate.DefaultChain(),
		},
		Feed:      FeedConfig{MinStock: 5, BatchSize: 10, PromoteMin: 1, PromoteMax: 5, StockInterval: 5 * time.Minute},
		Reactions: model.DefaultReactionWeights(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// env lists the overrides read with envconfig. Empty values leave the file
// setting alone.
type env struct {
	GenerationAPIKey string  `envconfig:"GENERATION_API_KEY"`
	SecretPassphrase string  `envconfig:"SECRET_PASSPHRASE"`
	DBPath           string  `envconfig:"DB_PATH"`
	BaseURL          string  `envconfig:"GENERATION_BASE_URL"`
	Language         string  `envconfig:"LANGUAGE"`
	LogLevel         string  `envconfig:"LOG_LEVEL"`
	MetricsAddr      string  `envconfig:"METRICS_ADDR"`
	GenRPS           float64 `envconfig:"GEN_RPS"`
	GenBurst         int     `envconfig:"GEN_BURST"`
}

// ResolveEnv loads .env (if present) and applies FEEDSIM_* overrides.
func (c *Config) ResolveEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	if c.Credentials.DefaultAPIKey == "" {
		c.Credentials.DefaultAPIKey = e.GenerationAPIKey
	}
	if c.Credentials.Passphrase == "" {
		c.Credentials.Passphrase = e.SecretPassphrase
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Storage.DBPath, e.DBPath)
	set(&c.Generation.BaseURL, e.BaseURL)
	set(&c.Generation.Language, e.Language)
	set(&c.Logging.Level, e.LogLevel)
	set(&c.Metrics.Addr, e.MetricsAddr)
	if e.GenRPS > 0 {
		c.Generation.RequestsPerSecond = e.GenRPS
	}
	if e.GenBurst > 0 {
		c.Generation.Burst = e.GenBurst
	}
	return nil
}

// Validate rejects settings the stores and generator cannot work with.
func (c Config) Validate() error {
	if err := c.Reactions.Validate(); err != nil {
		return err
	}
	if len(c.Generation.Chain) == 0 {
		return errors.New("generation: empty fallback chain")
	}
	for i, m := range c.Generation.Chain {
		if m.Model == "" {
			return fmt.Errorf("generation: chain[%d] has no model", i)
		}
		if m.DailyLimit < 0 {
			return fmt.Errorf("generation: chain[%d] negative dailyLimit", i)
		}
	}
	if c.Generation.RequestsPerSecond < 0 || c.Generation.Burst < 0 {
		return errors.New("generation: requestsPerSecond and burst must be >= 0")
	}
	switch c.Generation.Language {
	case "ja", "en":
	default:
		return fmt.Errorf("generation: unsupported language %q", c.Generation.Language)
	}
	f := c.Feed
	if f.MinStock < 0 || f.BatchSize <= 0 {
		return errors.New("feed: minStock must be >= 0 and batchSize > 0")
	}
	if f.PromoteMin <= 0 || f.PromoteMax < f.PromoteMin {
		return fmt.Errorf("feed: invalid promote range [%d, %d]", f.PromoteMin, f.PromoteMax)
	}
	return nil
}

// Load reads YAML config from path. Fields missing from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.ResolveEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when path does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		return cfg, cfg.ResolveEnv()
	}
	return cfg, err
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
