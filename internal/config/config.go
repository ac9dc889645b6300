package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port       int               `json:"port"`
	JWTSecret  string            `json:"jwt_secret"`
	LogConfig  logger.LogConfig  `json:"log_config"`
	Database   DatabaseConfig    `json:"database"`
	AI         AIConfig          `json:"ai"`
	Search     SearchConfig      `json:"search"`
	Chatbot    ChatbotConfig     `json:"chatbot"`
	EmbedCache EmbedCacheConfig  `json:"embed_cache"`
	Jobs       JobsConfig        `json:"jobs"`
	RateLimit  RateLimitConfig   `json:"rate_limit"`
	CORSAllow  []string          `json:"cors_allowlist"`
}

type RateLimitConfig struct {
	ChatWindowMs    int `json:"chat_window_ms"`
	HistoryWindowMs int `json:"history_window_ms"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider         string      `json:"provider"`
	Data             interface{} `json:"data"`
	ChatModel        string      `json:"chat_model"`
	JudgeModel       string      `json:"judge_model"`
	RerankModel      string      `json:"rerank_model"`
	EmbedModel       string      `json:"embed_model"`
	ChatTimeoutSecs  int         `json:"chat_timeout_secs"`
	JudgeTimeoutSecs int         `json:"judge_timeout_secs"`
}

type SearchConfig struct {
	Endpoint    string `json:"endpoint"`
	APIKey      string `json:"api_key"`
	TimeoutSecs int    `json:"timeout_secs"`
}

type ChatbotConfig struct {
	// RelevanceThreshold gates the in-scope branch on the top retrieval
	// score. It is embedding-model specific and should be tuned, not
	// hardcoded by callers.
	RelevanceThreshold float32 `json:"relevance_threshold"`
	ScopeArticleLimit  int     `json:"scope_article_limit"`
	RedirectPoolLimit  int     `json:"redirect_pool_limit"`
	RedirectTopN       int     `json:"redirect_top_n"`
	WebResultLimit     int     `json:"web_result_limit"`
	TopGroundingChunks int     `json:"top_grounding_chunks"`
	MaxQueryChars      int     `json:"max_query_chars"`
	HistoryPageCap     int     `json:"history_page_cap"`
}

type EmbedCacheConfig struct {
	LRUSize  int `json:"lru_size"`
	TTLHours int `json:"ttl_hours"`
}

type JobsConfig struct {
	ArticleEmbeddingCron string `json:"article_embedding_cron"`
	EmbeddingBatch       int    `json:"embedding_batch"`
	CacheCleanupCron     string `json:"cache_cleanup_cron"`
	CacheKeepDays        int    `json:"cache_keep_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.ChatModel == "" || cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.chat_model and ai.embed_model are required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AI.JudgeModel == "" {
		cfg.AI.JudgeModel = cfg.AI.ChatModel
	}
	if cfg.AI.RerankModel == "" {
		cfg.AI.RerankModel = cfg.AI.JudgeModel
	}
	if cfg.AI.ChatTimeoutSecs <= 0 {
		cfg.AI.ChatTimeoutSecs = 120
	}
	// The judge gates whether generation starts at all, so its timeout is
	// deliberately much shorter than the chat timeout.
	if cfg.AI.JudgeTimeoutSecs <= 0 {
		cfg.AI.JudgeTimeoutSecs = 10
	}
	if cfg.Search.TimeoutSecs <= 0 {
		cfg.Search.TimeoutSecs = 10
	}
	cb := &cfg.Chatbot
	if cb.RelevanceThreshold <= 0 {
		cb.RelevanceThreshold = 0.55
	}
	if cb.ScopeArticleLimit <= 0 {
		cb.ScopeArticleLimit = 20
	}
	if cb.RedirectPoolLimit <= 0 {
		cb.RedirectPoolLimit = 30
	}
	if cb.RedirectTopN <= 0 {
		cb.RedirectTopN = 5
	}
	if cb.WebResultLimit <= 0 {
		cb.WebResultLimit = 5
	}
	if cb.TopGroundingChunks <= 0 {
		cb.TopGroundingChunks = 6
	}
	if cb.MaxQueryChars <= 0 {
		cb.MaxQueryChars = 2000
	}
	if cb.HistoryPageCap <= 0 {
		cb.HistoryPageCap = 50
	}
	if cfg.EmbedCache.LRUSize <= 0 {
		cfg.EmbedCache.LRUSize = 10000
	}
	if cfg.EmbedCache.TTLHours <= 0 {
		cfg.EmbedCache.TTLHours = 2
	}
	if cfg.Jobs.ArticleEmbeddingCron == "" {
		cfg.Jobs.ArticleEmbeddingCron = "*/10 * * * *"
	}
	if cfg.Jobs.EmbeddingBatch <= 0 {
		cfg.Jobs.EmbeddingBatch = 20
	}
	if cfg.Jobs.CacheCleanupCron == "" {
		cfg.Jobs.CacheCleanupCron = "0 4 * * *"
	}
	if cfg.Jobs.CacheKeepDays <= 0 {
		cfg.Jobs.CacheKeepDays = 30
	}
	if cfg.RateLimit.ChatWindowMs <= 0 {
		cfg.RateLimit.ChatWindowMs = 1000
	}
	if cfg.RateLimit.HistoryWindowMs <= 0 {
		cfg.RateLimit.HistoryWindowMs = 200
	}
}
