package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "trade-assistant"
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "trade_declarations"
	}
	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 30000
	}
	if cfg.Engine.DetailThreshold == 0 {
		cfg.Engine.DetailThreshold = 20
	}
	if cfg.Engine.TierLimits == nil {
		cfg.Engine.TierLimits = map[string]int{
			"max":   5,
			"vip":   2,
			"trial": 2,
		}
	}
	if cfg.Engine.UnknownTierPolicy == "" {
		cfg.Engine.UnknownTierPolicy = "permissive"
	}
	if cfg.Engine.Pipeline.MaxEdits == 0 {
		cfg.Engine.Pipeline.MaxEdits = 2
	}
	if cfg.Engine.Pipeline.PrefixLength == 0 {
		cfg.Engine.Pipeline.PrefixLength = 3
	}
	if cfg.Engine.Pipeline.MaxExpansions == 0 {
		cfg.Engine.Pipeline.MaxExpansions = 20
	}
	if cfg.Engine.Pipeline.ScoreThreshold == 0 {
		cfg.Engine.Pipeline.ScoreThreshold = 0.5
	}
	if cfg.Engine.Pipeline.PreFilterThreshold == 0 {
		cfg.Engine.Pipeline.PreFilterThreshold = 0.1
	}
	if cfg.Engine.Pipeline.ResultLimit == 0 {
		cfg.Engine.Pipeline.ResultLimit = 20
	}
	if cfg.Session.TTLSeconds == 0 {
		cfg.Session.TTLSeconds = 1800
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "assistant:session:"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Engine.DetailThreshold < 1 {
		return fmt.Errorf("engine.detail_threshold must be positive")
	}
	switch cfg.Engine.UnknownTierPolicy {
	case "permissive", "strict":
	default:
		return fmt.Errorf("engine.unknown_tier_policy must be 'permissive' or 'strict', got %q", cfg.Engine.UnknownTierPolicy)
	}
	if cfg.Engine.Pipeline.ScoreThreshold < 0 || cfg.Engine.Pipeline.ScoreThreshold > 1 {
		return fmt.Errorf("engine.pipeline.score_threshold must be within [0,1]")
	}
	return nil
}
