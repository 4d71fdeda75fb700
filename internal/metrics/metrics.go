// Package metrics 内部指标收集，仅供本项目使用。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 摄取指标
	DocumentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "ingest",
		Name:      "documents_total",
		Help:      "Documents ingested successfully.",
	})
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "ingest",
		Name:      "chunks_indexed_total",
		Help:      "Chunks written to the index.",
	})
	IngestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "ingest",
		Name:      "failures_total",
		Help:      "Documents that failed ingestion after retries.",
	})
	EmbeddingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "ingest",
		Name:      "embedding_failures_total",
		Help:      "Chunks indexed without a vector because embedding failed.",
	})

	// 检索指标
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "retrieval",
		Name:      "searches_total",
		Help:      "Hybrid searches by confidence outcome.",
	}, []string{"confidence"})
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docqa",
		Subsystem: "retrieval",
		Name:      "search_duration_seconds",
		Help:      "End-to-end retrieval pipeline latency.",
		Buckets:   prometheus.DefBuckets,
	})
	RerankFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "retrieval",
		Name:      "rerank_fallbacks_total",
		Help:      "Rerank batches that fell back to prior-score ranking.",
	})

	// 嵌入缓存指标
	EmbedCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "cache",
		Name:      "embed_hits_total",
		Help:      "Embedding cache hits.",
	})
	EmbedCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "cache",
		Name:      "embed_misses_total",
		Help:      "Embedding cache misses.",
	})

	// 记忆指标
	MemoriesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "memory",
		Name:      "extracted_total",
		Help:      "Memories stored by async extraction.",
	})
	MemoriesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "memory",
		Name:      "deduplicated_total",
		Help:      "Extraction candidates merged into an existing memory.",
	})

	// 历史压缩指标
	CompactionRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "compaction",
		Name:      "runs_total",
		Help:      "Compaction passes that produced at least one summary.",
	})
	MessagesCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "compaction",
		Name:      "messages_total",
		Help:      "Messages folded into summaries.",
	})

	// 工作池指标
	PoolTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "pool",
		Name:      "tasks_total",
		Help:      "Worker pool tasks by pool name and outcome.",
	}, []string{"pool", "outcome"})
	PoolQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "docqa",
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Current queued tasks per worker pool.",
	}, []string{"pool"})
)
