// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.digitizerx/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model provider endpoint, chat/rewrite/embedding models, pricing
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: MMR weighting and relaxation tunables
//   - Server: listen address, CORS, rate limiting
//
// Security: the provider API key is only ever read from the environment and
// is masked in MarshalJSON. Validation uses sentinel errors checked with
// errors.Is (see validation.go).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default model identifiers for the OpenAI-compatible provider.
const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Default per-1k-token prices in USD. These match the published rates for the
// default models above; override in config when pointing at a gateway.
const (
	DefaultPriceChatIn  = 0.00015
	DefaultPriceChatOut = 0.0006
	DefaultPriceEmbed   = 0.00002
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider configuration. BaseURL empty means the official OpenAI
	// endpoint; set it to use an OpenAI-compatible gateway.
	BaseURL        string  `mapstructure:"base_url" json:"base_url"`
	APIKey         string  `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	ChatModel      string  `mapstructure:"chat_model" json:"chat_model"`
	RewriteModel   string  `mapstructure:"rewrite_model" json:"rewrite_model"`
	EmbeddingModel string  `mapstructure:"embedding_model" json:"embedding_model"`
	Temperature    float32 `mapstructure:"temperature" json:"temperature"`

	// Per-1k-token pricing used for cost estimates.
	PriceChatIn  float64 `mapstructure:"price_chat_in" json:"price_chat_in"`
	PriceChatOut float64 `mapstructure:"price_chat_out" json:"price_chat_out"`
	PriceEmbed   float64 `mapstructure:"price_embed" json:"price_embed"`

	// Retrieval tunables.
	MMRLambda  float64 `mapstructure:"mmr_lambda" json:"mmr_lambda"`
	RelaxDelta float64 `mapstructure:"relax_delta" json:"relax_delta"`

	// Resolver configuration.
	DefaultPlant string `mapstructure:"default_plant" json:"default_plant"`

	// Storage configuration (see storage.go for DSN builders).
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration.
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".digitizerx")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, if set, overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("rewrite_model", DefaultChatModel)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("temperature", 0.2)

	// Pricing defaults
	v.SetDefault("price_chat_in", DefaultPriceChatIn)
	v.SetDefault("price_chat_out", DefaultPriceChatOut)
	v.SetDefault("price_embed", DefaultPriceEmbed)

	// Retrieval defaults
	v.SetDefault("mmr_lambda", 0.75)
	v.SetDefault("relax_delta", 0.1)

	// Resolver defaults
	v.SetDefault("default_plant", "Plant1")

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "digitizerx")
	v.SetDefault("postgres_password", "digitizerx_dev_password")
	v.SetDefault("postgres_db_name", "digitizerx")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults. CORS is intentionally permissive: the endpoints are
	// consumed by scanner clients and the SPA from arbitrary plant hosts.
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_key", "OPENAI_API_KEY")
	mustBind("base_url", "DGX_BASE_URL")
	mustBind("chat_model", "DGX_CHAT_MODEL")
	mustBind("rewrite_model", "DGX_REWRITE_MODEL")
	mustBind("embedding_model", "DGX_EMBEDDING_MODEL")
	mustBind("default_plant", "DGX_DEFAULT_PLANT")
	mustBind("listen_addr", "DGX_LISTEN_ADDR")
	mustBind("cors_origins", "DGX_CORS_ORIGINS")
	mustBind("trust_proxy", "DGX_TRUST_PROXY")
	mustBind("rate_burst", "DGX_RATE_BURST")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON masks sensitive fields so Config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.APIKey != "" {
		masked.APIKey = maskedValue
	}
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = maskedValue
	}
	return json.Marshal(masked)
}
