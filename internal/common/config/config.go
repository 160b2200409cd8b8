package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Session  SessionConfig  `mapstructure:"session"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GenAIConfig holds settings for the external intent/extraction model API.
type GenAIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// EngineConfig holds the query engine policy knobs.
type EngineConfig struct {
	// DetailThreshold is the maximum result cardinality rendered in full
	// detail; larger result sets collapse to a date/supplier summary.
	DetailThreshold int `mapstructure:"detail_threshold"`

	// TierLimits maps caller tiers to the maximum records rendered per reply.
	TierLimits map[string]int `mapstructure:"tier_limits"`

	// UnknownTierPolicy is "permissive" (render all, the historical behavior)
	// or "strict" (apply the smallest configured tier cap).
	UnknownTierPolicy string `mapstructure:"unknown_tier_policy"`

	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// PipelineConfig holds the document-store search pipeline settings.
type PipelineConfig struct {
	MaxEdits           int     `mapstructure:"max_edits"`
	PrefixLength       int     `mapstructure:"prefix_length"`
	MaxExpansions      int     `mapstructure:"max_expansions"`
	ScoreThreshold     float64 `mapstructure:"score_threshold"`      // relative, fraction of top score
	PreFilterThreshold float64 `mapstructure:"pre_filter_threshold"` // absolute floor
	ResultLimit        int     `mapstructure:"result_limit"`
}

// SessionConfig holds settings for the per-session disambiguation cache.
type SessionConfig struct {
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
