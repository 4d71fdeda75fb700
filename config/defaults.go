package config

import "time"

// DefaultConfig 返回默认配置（生产级）
func DefaultConfig() *Config {
	return &Config{
		Chunking:      DefaultChunkingConfig(),
		Retrieval:     DefaultRetrievalConfig(),
		Rerank:        DefaultRerankConfig(),
		Confidence:    DefaultConfidenceConfig(),
		Reformulation: DefaultReformulationConfig(),
		Compaction:    DefaultCompactionConfig(),
		Memory:        DefaultMemoryConfig(),
		Workers:       DefaultWorkersConfig(),
		Provider: ProviderConfig{
			BaseURL:     "https://api.openai.com",
			ChatModel:   "gpt-4o-mini",
			EmbedModel:  "text-embedding-3-small",
			Temperature: 0.1,
			Timeout:     60 * time.Second,
			EmbedRPS:    10,
			EmbedBurst:  20,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:         "docqa.db",
			MaxOpenConns: 10,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultChunkingConfig 默认分块配置
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:        512,
		ChunkOverlap:     50,
		TableCharCeiling: 8000,
		MaxKeywords:      8,
	}
}

// DefaultRetrievalConfig 默认混合检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:                 5,
		CandidatesMultiplier: 2,
		RRFK:                 60,
		DiversityEnabled:     true,
		MinChunksPerDocument: 1,
	}
}

// DefaultRerankConfig 默认语义重排配置
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Enabled:       true,
		BatchSize:     20,
		FallbackScale: 10.0,
	}
}

// DefaultConfidenceConfig 默认置信度配置
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		MinTopScore: 0.4,
		MaxTopGap:   0.5,
	}
}

// DefaultReformulationConfig 默认查询改写配置
func DefaultReformulationConfig() ReformulationConfig {
	return ReformulationConfig{
		HistoryWindow: 5,
		MaxLength:     500,
	}
}

// DefaultCompactionConfig 默认历史压缩配置
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		TokenThreshold:    3000,
		MessageThreshold:  30,
		SlidingWindowSize: 10,
		BatchSize:         20,
	}
}

// DefaultMemoryConfig 默认记忆配置
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		ExtractionThreshold: 0.3,
		ImportanceBump:      0.1,
		MaxPerSession:       100,
		RetrievalTopN:       10,
	}
}

// DefaultWorkersConfig 默认工作池配置
func DefaultWorkersConfig() WorkersConfig {
	return WorkersConfig{
		IngestWorkers:   4,
		IngestQueueSize: 64,
		MemoryWorkers:   2,
		MemoryQueueSize: 32,
		StreamTimeout:   2 * time.Minute,
	}
}
