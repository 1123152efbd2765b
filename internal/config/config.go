package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	Neo4j     Neo4jConfig     `yaml:"neo4j" mapstructure:"neo4j"`
	GitHub    GitHubConfig    `yaml:"github" mapstructure:"github"`
	Slack     SlackConfig     `yaml:"slack" mapstructure:"slack"`
	Staging   StagingConfig   `yaml:"staging" mapstructure:"staging"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

type Neo4jConfig struct {
	URI          string        `yaml:"uri" mapstructure:"uri"`
	User         string        `yaml:"user" mapstructure:"user"`
	Password     string        `yaml:"password" mapstructure:"password"`
	Database     string        `yaml:"database" mapstructure:"database"`
	MaxPoolSize  int           `yaml:"max_pool_size" mapstructure:"max_pool_size"`
	QueryTimeout time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`
}

type GitHubConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
}

type SlackConfig struct {
	Token    string   `yaml:"token" mapstructure:"token"`
	Channels []string `yaml:"channels" mapstructure:"channels"`
}

type StagingConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "sqlite3", "postgres", "pgx"
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

type CacheConfig struct {
	Directory string        `yaml:"directory" mapstructure:"directory"`
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // "local", "openai", "gemini"
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // "openai", "gemini"
	Model       string  `yaml:"model" mapstructure:"model"`
	OpenAIKey   string  `yaml:"openai_key" mapstructure:"openai_key"`
	GeminiKey   string  `yaml:"gemini_key" mapstructure:"gemini_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TopK        int     `yaml:"top_k" mapstructure:"top_k"`
}

type IngestConfig struct {
	CrossReferencePath string `yaml:"cross_reference_path" mapstructure:"cross_reference_path"`
	IncludeAllMessages bool   `yaml:"include_all_messages" mapstructure:"include_all_messages"`
	NodeBatchSize      int    `yaml:"node_batch_size" mapstructure:"node_batch_size"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// HomeDir returns ~/.teamgraph
func HomeDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".teamgraph")
}

// Default returns default configuration
func Default() *Config {
	home := HomeDir()
	return &Config{
		Neo4j: Neo4jConfig{
			URI:          "bolt://localhost:7687",
			User:         "neo4j",
			Database:     "neo4j",
			MaxPoolSize:  50,
			QueryTimeout: 30 * time.Second,
		},
		GitHub: GitHubConfig{
			RateLimit: 1,
		},
		Staging: StagingConfig{
			Driver: "sqlite3",
			DSN:    filepath.Join(home, "staging.db"),
		},
		Cache: CacheConfig{
			Directory: filepath.Join(home, "cache"),
			TTL:       30 * 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Provider:   "local",
			Dimensions: 384,
			BatchSize:  64,
		},
		LLM: LLMConfig{
			TopK: 5,
		},
		Ingest: IngestConfig{
			NodeBatchSize: 1000,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load loads configuration from file. An empty path searches ./.teamgraph,
// the working directory and ~/.teamgraph for config.yaml; a missing file
// leaves defaults in place.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Unmarshal only overwrites keys present in the file
	cfg := Default()

	v.SetEnvPrefix("TEAMGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".teamgraph")
		v.AddConfigPath(".")
		v.AddConfigPath(HomeDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence; godotenv never
// overrides variables that are already set.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeEnvFile := filepath.Join(HomeDir(), ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
// Secrets not set in the environment or the file fall back to the keychain.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}

	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Cache.RedisURL = url
	}
	if dsn := os.Getenv("STAGING_DSN"); dsn != "" {
		cfg.Staging.DSN = expandPath(dsn)
	}
	if driver := os.Getenv("STAGING_DRIVER"); driver != "" {
		cfg.Staging.Driver = driver
	}
	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		cfg.Embedding.Provider = provider
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}

	creds := NewCredentialManager()
	cfg.GitHub.Token = creds.Resolve(ItemGitHubToken, cfg.GitHub.Token)
	cfg.Slack.Token = creds.Resolve(ItemSlackToken, cfg.Slack.Token)
	cfg.LLM.OpenAIKey = creds.Resolve(ItemOpenAIKey, cfg.LLM.OpenAIKey)
	cfg.LLM.GeminiKey = creds.Resolve(ItemGeminiKey, cfg.LLM.GeminiKey)

	cfg.Staging.DSN = expandPath(cfg.Staging.DSN)
	cfg.Cache.Directory = expandPath(cfg.Cache.Directory)
	cfg.Ingest.CrossReferencePath = expandPath(cfg.Ingest.CrossReferencePath)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file. Secrets are not written.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	neo := c.Neo4j
	neo.Password = ""
	v.Set("neo4j", neo)
	v.Set("github", GitHubConfig{RateLimit: c.GitHub.RateLimit, BaseURL: c.GitHub.BaseURL})
	v.Set("slack", SlackConfig{Channels: c.Slack.Channels})
	v.Set("staging", c.Staging)
	v.Set("cache", c.Cache)
	v.Set("embedding", c.Embedding)
	llm := c.LLM
	llm.OpenAIKey, llm.GeminiKey = "", ""
	v.Set("llm", llm)
	v.Set("ingest", c.Ingest)
	v.Set("metrics", c.Metrics)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
