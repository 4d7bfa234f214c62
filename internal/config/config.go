package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the secoql API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Rerank   RerankConfig   `yaml:"rerank"`
	Embed    EmbedConfig    `yaml:"embedding"`
	Resolver ResolverConfig `yaml:"resolver"`
	Socrata  SocrataConfig  `yaml:"socrata"`
	History  HistoryConfig  `yaml:"history"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings. An empty address list is
// valid: the service then runs without the result cache and the entity index.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LLMConfig holds the intent model provider settings. An empty api_key
// disables the model path; parsing then always uses the heuristics.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RerankConfig holds reranker settings. Disabled unless a model is set.
type RerankConfig struct {
	Model string `yaml:"model"`
}

// EmbedConfig holds the embedding provider settings backing the entity index.
type EmbedConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// ResolverConfig holds entity resolution settings.
type ResolverConfig struct {
	TopK int `yaml:"top_k"`
}

// SocrataConfig holds settings for the SECOP open-data API.
type SocrataConfig struct {
	Domain         string            `yaml:"domain"`
	AppToken       string            `yaml:"app_token"`
	TimeoutSec     int               `yaml:"timeout_sec"`
	MaxRetries     int               `yaml:"max_retries"`
	RetryBackoffMS int               `yaml:"retry_backoff_ms"`
	CacheTTLSec    int               `yaml:"cache_ttl_sec"`
	Datasets       map[string]string `yaml:"datasets"` // entity category -> dataset id
}

// HistoryConfig holds the SQLite record storage settings.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Resolver.TopK <= 0 {
		c.Resolver.TopK = 5
	}
	if c.Embed.Dimensions <= 0 {
		c.Embed.Dimensions = 1536
	}
	if c.Socrata.Domain == "" {
		c.Socrata.Domain = "www.datos.gov.co"
	}
	if c.Socrata.TimeoutSec <= 0 {
		c.Socrata.TimeoutSec = 30
	}
	if c.Socrata.MaxRetries <= 0 {
		c.Socrata.MaxRetries = 3
	}
	if c.Socrata.RetryBackoffMS <= 0 {
		c.Socrata.RetryBackoffMS = 500
	}
	if c.Socrata.CacheTTLSec <= 0 {
		c.Socrata.CacheTTLSec = 300
	}
	if c.History.Path == "" {
		c.History.Path = "secoql.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Socrata.Domain == "" {
		return fmt.Errorf("socrata.domain is required")
	}
	if c.Rerank.Model != "" && c.LLM.APIKey == "" {
		return fmt.Errorf("rerank.model requires llm.api_key")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
