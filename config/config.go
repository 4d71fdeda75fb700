package config

import "time"

// Config 是 docqa 检索核心的完整配置结构
type Config struct {
	// Chunking 分块配置
	Chunking ChunkingConfig `yaml:"chunking" env:"CHUNKING"`

	// Retrieval 混合检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Rerank 语义重排配置
	Rerank RerankConfig `yaml:"rerank" env:"RERANK"`

	// Confidence 置信度评估配置
	Confidence ConfidenceConfig `yaml:"confidence" env:"CONFIDENCE"`

	// Reformulation 查询改写配置
	Reformulation ReformulationConfig `yaml:"reformulation" env:"REFORMULATION"`

	// Compaction 聊天历史压缩配置
	Compaction CompactionConfig `yaml:"compaction" env:"COMPACTION"`

	// Memory 长期记忆配置
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Workers 后台工作池配置
	Workers WorkersConfig `yaml:"workers" env:"WORKERS"`

	// Provider 模型提供者配置
	Provider ProviderConfig `yaml:"provider" env:"PROVIDER"`

	// Redis 嵌入缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 关系存储配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// 业务 API 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// Prometheus 指标监听地址
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// 优雅关闭等待时长
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	// 块大小（tokens，估算为 len/4）
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// 相邻块之间的尾部重叠（tokens）
	ChunkOverlap int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	// 单表硬截断上限（字符）
	TableCharCeiling int `yaml:"table_char_ceiling" env:"TABLE_CHAR_CEILING"`
	// 关键词提取上限
	MaxKeywords int `yaml:"max_keywords" env:"MAX_KEYWORDS"`
}

// RetrievalConfig 混合检索配置
type RetrievalConfig struct {
	// 最终返回的块数
	TopK int `yaml:"top_k" env:"TOP_K"`
	// 每通道候选池倍数
	CandidatesMultiplier int `yaml:"candidates_multiplier" env:"CANDIDATES_MULTIPLIER"`
	// RRF 常数 k
	RRFK int `yaml:"rrf_k" env:"RRF_K"`
	// 是否启用多样性重排
	DiversityEnabled bool `yaml:"diversity_enabled" env:"DIVERSITY_ENABLED"`
	// 每个来源文档的最低配额
	MinChunksPerDocument int `yaml:"min_chunks_per_document" env:"MIN_CHUNKS_PER_DOCUMENT"`
}

// RerankConfig 语义重排配置
type RerankConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 批大小
	BatchSize int `yaml:"batch_size" env:"BATCH_SIZE"`
	// 失败回退时对先验融合分的放大倍数
	FallbackScale float64 `yaml:"fallback_scale" env:"FALLBACK_SCALE"`
}

// ConfidenceConfig 置信度评估配置
type ConfidenceConfig struct {
	// 最高分低于此值视为检索不足
	MinTopScore float64 `yaml:"min_top_score" env:"MIN_TOP_SCORE"`
	// 最高分与次席的差距超过此值视为单点支撑
	MaxTopGap float64 `yaml:"max_top_gap" env:"MAX_TOP_GAP"`
}

// ReformulationConfig 查询改写配置
type ReformulationConfig struct {
	// 参与改写的历史轮数
	HistoryWindow int `yaml:"history_window" env:"HISTORY_WINDOW"`
	// 改写结果最大长度（字符）
	MaxLength int `yaml:"max_length" env:"MAX_LENGTH"`
}

// CompactionConfig 聊天历史压缩配置
type CompactionConfig struct {
	// 未压缩 token 总数阈值
	TokenThreshold int `yaml:"token_threshold" env:"TOKEN_THRESHOLD"`
	// 未压缩消息数阈值
	MessageThreshold int `yaml:"message_threshold" env:"MESSAGE_THRESHOLD"`
	// 保留不动的最近消息数
	SlidingWindowSize int `yaml:"sliding_window_size" env:"SLIDING_WINDOW_SIZE"`
	// 摘要批大小
	BatchSize int `yaml:"batch_size" env:"BATCH_SIZE"`
}

// MemoryConfig 长期记忆配置
type MemoryConfig struct {
	// 提取候选的 importance 下限
	ExtractionThreshold float64 `yaml:"extraction_threshold" env:"EXTRACTION_THRESHOLD"`
	// 近重复时对既有记忆的 importance 增量
	ImportanceBump float64 `yaml:"importance_bump" env:"IMPORTANCE_BUMP"`
	// 每会话记忆上限
	MaxPerSession int `yaml:"max_per_session" env:"MAX_PER_SESSION"`
	// 检索返回的记忆条数
	RetrievalTopN int `yaml:"retrieval_top_n" env:"RETRIEVAL_TOP_N"`
}

// WorkersConfig 后台工作池配置
type WorkersConfig struct {
	// 摄取工作协程数
	IngestWorkers int `yaml:"ingest_workers" env:"INGEST_WORKERS"`
	// 摄取队列长度
	IngestQueueSize int `yaml:"ingest_queue_size" env:"INGEST_QUEUE_SIZE"`
	// 记忆提取工作协程数
	MemoryWorkers int `yaml:"memory_workers" env:"MEMORY_WORKERS"`
	// 记忆提取队列长度
	MemoryQueueSize int `yaml:"memory_queue_size" env:"MEMORY_QUEUE_SIZE"`
	// 流式生成总超时
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"STREAM_TIMEOUT"`
}

// ProviderConfig 模型提供者配置（OpenAI 兼容端点）
type ProviderConfig struct {
	// 端点地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API 密钥
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 对话/补全模型
	ChatModel string `yaml:"chat_model" env:"CHAT_MODEL"`
	// 嵌入模型
	EmbedModel string `yaml:"embed_model" env:"EMBED_MODEL"`
	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 单次调用超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 嵌入调用限速（每秒请求数，0 为不限速）
	EmbedRPS float64 `yaml:"embed_rps" env:"EMBED_RPS"`
	// 嵌入限速突发量
	EmbedBurst int `yaml:"embed_burst" env:"EMBED_BURST"`
}

// RedisConfig Redis 嵌入缓存配置
type RedisConfig struct {
	// 是否启用嵌入缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 缓存过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// DatabaseConfig 关系存储配置
type DatabaseConfig struct {
	// SQLite 数据库文件路径（:memory: 用于测试）
	Path string `yaml:"path" env:"PATH"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
}
