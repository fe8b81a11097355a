package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLMProvider      string `yaml:"llm_provider"` // "openrouter" or "anthropic"
	LLMModel         string `yaml:"llm_model"`
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`

	BatchSize           int     `yaml:"batch_size"`
	BatchPauseSeconds   int     `yaml:"batch_pause_seconds"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	DataDir string `yaml:"data_dir"`

	SemrushAPIKey   string `yaml:"semrush_api_key"`
	SemrushDatabase string `yaml:"semrush_database"`
	PullLimit       int    `yaml:"pull_limit"`

	CrawlMaxPages     int `yaml:"crawl_max_pages"`
	CrawlDelaySeconds int `yaml:"crawl_delay_seconds"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	PullSchedule string   `yaml:"pull_schedule"` // 5-field cron, empty = disabled
	PullDomains  []string `yaml:"pull_domains"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverrideInt(&cfg.BatchSize, "BATCH_SIZE")
	envOverrideInt(&cfg.BatchPauseSeconds, "BATCH_PAUSE_SECONDS")
	envOverrideFloat(&cfg.ConfidenceThreshold, "CONFIDENCE_THRESHOLD")
	envOverride(&cfg.DataDir, "DATA_DIR")
	envOverride(&cfg.SemrushAPIKey, "SEMRUSH_API_KEY")
	envOverride(&cfg.SemrushDatabase, "SEMRUSH_DATABASE")
	envOverrideInt(&cfg.PullLimit, "PULL_LIMIT")
	envOverrideInt(&cfg.CrawlMaxPages, "CRAWL_MAX_PAGES")
	envOverrideInt(&cfg.CrawlDelaySeconds, "CRAWL_DELAY_SECONDS")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.PullSchedule, "PULL_SCHEDULE")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")

	if domains := os.Getenv("PULL_DOMAINS"); domains != "" {
		cfg.PullDomains = nil
		for _, d := range strings.Split(domains, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				cfg.PullDomains = append(cfg.PullDomains, d)
			}
		}
	}

	// Defaults
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openrouter"
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchPauseSeconds == 0 {
		cfg.BatchPauseSeconds = 1
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 70
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.SemrushDatabase == "" {
		cfg.SemrushDatabase = "us"
	}
	if cfg.PullLimit == 0 {
		cfg.PullLimit = 500
	}
	if cfg.CrawlMaxPages == 0 {
		cfg.CrawlMaxPages = 50
	}
	if cfg.CrawlDelaySeconds == 0 {
		cfg.CrawlDelaySeconds = 1
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = 30
	}

	// Validate
	switch cfg.LLMProvider {
	case "openrouter", "anthropic":
	default:
		log.Fatalf("llm_provider must be 'openrouter' or 'anthropic', got '%s'", cfg.LLMProvider)
	}
	if cfg.BatchSize < 1 {
		log.Fatalf("invalid batch_size '%d': must be >= 1", cfg.BatchSize)
	}
	if cfg.BatchPauseSeconds < 0 {
		log.Fatalf("invalid batch_pause_seconds '%d': must be >= 0", cfg.BatchPauseSeconds)
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 100 {
		log.Fatalf("invalid confidence_threshold '%f': must be between 0 and 100", cfg.ConfidenceThreshold)
	}
	if cfg.PullLimit < 1 {
		log.Fatalf("invalid pull_limit '%d': must be >= 1", cfg.PullLimit)
	}
	if cfg.CrawlMaxPages < 1 {
		log.Fatalf("invalid crawl_max_pages '%d': must be >= 1", cfg.CrawlMaxPages)
	}

	return cfg
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) SemrushConfigured() bool {
	return c.SemrushAPIKey != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
