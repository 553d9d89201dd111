// Package config provides configuration loading for researchd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. There is no process-wide configuration state: a *Config value
// is passed into each component's constructor.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete researchd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Planner       PlannerConfig       `koanf:"planner"`
	Embedding     EmbeddingConfig     `koanf:"embedding"`
	Rerank        RerankConfig        `koanf:"rerank"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Web           WebConfig           `koanf:"web"`
	Agent         AgentConfig         `koanf:"agent"`
	Memory        MemoryConfig        `koanf:"memory"`
	Store         StoreConfig         `koanf:"store"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Insecure        bool   `koanf:"insecure"`
}

// PlannerConfig holds the chat-completions planner client configuration.
type PlannerConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
}

// EmbeddingConfig holds the embedding provider configuration.
type EmbeddingConfig struct {
	BaseURL   string   `koanf:"base_url"`
	Model     string   `koanf:"model"`
	APIKey    Secret   `koanf:"api_key"`
	Dimension int      `koanf:"dimension"`
	Timeout   Duration `koanf:"timeout"`
}

// RerankConfig holds the remote reranker configuration.
type RerankConfig struct {
	BaseURL    string   `koanf:"base_url"`
	Model      string   `koanf:"model"`
	APIKey     Secret   `koanf:"api_key"`
	BlendRatio float64  `koanf:"blend_ratio"`
	Timeout    Duration `koanf:"timeout"`
}

// RetrievalConfig holds knowledge-base retrieval parameters.
type RetrievalConfig struct {
	// TopK is the number of candidates fetched per search.
	TopK int `koanf:"top_k"`

	// RerankTopK is the number of candidates kept after reranking.
	RerankTopK int `koanf:"rerank_top_k"`

	// KeywordWeight is the lexical share in hybrid blending.
	KeywordWeight float64 `koanf:"keyword_weight"`

	// RoutingThreshold is the single routing decision point between the
	// knowledge base and web search. A subquery whose best knowledge-base
	// candidate scores at or above this value stays internal; anything
	// below is routed to the web. The boundary is inclusive.
	RoutingThreshold float64 `koanf:"routing_threshold"`
}

// WebConfig holds the web search and page reader configuration.
type WebConfig struct {
	Enabled     bool     `koanf:"enabled"`
	SearchURL   string   `koanf:"search_url"`
	ReaderURL   string   `koanf:"reader_url"`
	APIKey      Secret   `koanf:"api_key"`
	ResultCount int      `koanf:"result_count"`
	Timeout     Duration `koanf:"timeout"`
}

// AgentConfig holds reasoning-loop parameters.
type AgentConfig struct {
	// MaxIterations bounds the decompose/retrieve/reflect loop. Reaching
	// it forces finalization regardless of the reflection outcome.
	MaxIterations int `koanf:"max_iterations"`

	// MaxContextChars caps the rendered evidence context. Beyond it the
	// renderer keeps the head and tail and elides the middle.
	MaxContextChars int `koanf:"max_context_chars"`
}

// MemoryConfig holds the session memory store configuration.
type MemoryConfig struct {
	Path        string `koanf:"path"`
	RecallLimit int    `koanf:"recall_limit"`
}

// StoreConfig holds the embedded vector store configuration.
type StoreConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
	Compress   bool   `koanf:"compress"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9317
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "researchd"
	}

	if cfg.Planner.BaseURL == "" {
		cfg.Planner.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Planner.Model == "" {
		cfg.Planner.Model = "deepseek-chat"
	}
	if cfg.Planner.Temperature == 0 {
		cfg.Planner.Temperature = 0.1
	}
	if cfg.Planner.MaxTokens == 0 {
		cfg.Planner.MaxTokens = 8192
	}
	if cfg.Planner.Timeout == 0 {
		cfg.Planner.Timeout = Duration(60 * time.Second)
	}

	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.jina.ai/v1/embeddings"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "jina-embeddings-v2-base-en"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 768
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = Duration(30 * time.Second)
	}

	if cfg.Rerank.BaseURL == "" {
		cfg.Rerank.BaseURL = "https://api.jina.ai/v1/rerank"
	}
	if cfg.Rerank.Model == "" {
		cfg.Rerank.Model = "jina-reranker-v2-base-multilingual"
	}
	if cfg.Rerank.BlendRatio == 0 {
		cfg.Rerank.BlendRatio = 0.7
	}
	if cfg.Rerank.Timeout == 0 {
		cfg.Rerank.Timeout = Duration(30 * time.Second)
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 20
	}
	if cfg.Retrieval.RerankTopK == 0 {
		cfg.Retrieval.RerankTopK = 5
	}
	if cfg.Retrieval.KeywordWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
	}
	if cfg.Retrieval.RoutingThreshold == 0 {
		cfg.Retrieval.RoutingThreshold = 0.7
	}

	if cfg.Web.SearchURL == "" {
		cfg.Web.SearchURL = "https://s.jina.ai"
	}
	if cfg.Web.ReaderURL == "" {
		cfg.Web.ReaderURL = "https://r.jina.ai"
	}
	if cfg.Web.ResultCount == 0 {
		cfg.Web.ResultCount = 5
	}
	if cfg.Web.Timeout == 0 {
		cfg.Web.Timeout = Duration(30 * time.Second)
	}

	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 10
	}
	if cfg.Agent.MaxContextChars == 0 {
		cfg.Agent.MaxContextChars = 4000
	}

	if cfg.Memory.Path == "" {
		cfg.Memory.Path = "~/.config/researchd/memory.json"
	}
	if cfg.Memory.RecallLimit == 0 {
		cfg.Memory.RecallLimit = 5
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.config/researchd/vectorstore"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "researchd_kb"
	}
	if cfg.Store.VectorSize == 0 {
		cfg.Store.VectorSize = cfg.Embedding.Dimension
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Retrieval.RoutingThreshold < 0 || c.Retrieval.RoutingThreshold > 1 {
		return fmt.Errorf("routing threshold must be in [0,1]: %f", c.Retrieval.RoutingThreshold)
	}
	if c.Retrieval.KeywordWeight < 0 || c.Retrieval.KeywordWeight > 1 {
		return fmt.Errorf("keyword weight must be in [0,1]: %f", c.Retrieval.KeywordWeight)
	}
	if c.Rerank.BlendRatio < 0 || c.Rerank.BlendRatio > 1 {
		return fmt.Errorf("blend ratio must be in [0,1]: %f", c.Rerank.BlendRatio)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive: %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxContextChars <= 0 {
		return fmt.Errorf("max context chars must be positive: %d", c.Agent.MaxContextChars)
	}
	return nil
}

// Default returns a configuration with all defaults applied and no file or
// environment input. Useful for tests and embedded use.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
