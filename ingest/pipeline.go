package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/internal/pool"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/types"
)

// Pipeline 摄取管线
// 分块 → 嵌入 → 写索引，在独立于请求路径的有界工作池上执行，
// 嵌入调用慢不会阻塞对话响应。单块嵌入失败降级为无向量写入
// （仍可被关键词通道检索到），整篇失败记日志后丢弃。
type Pipeline struct {
	processor *Processor
	embedder  llm.Embedder
	store     rag.IndexStore
	retryer   llm.Retryer
	workers   *pool.Pool
	logger    *zap.Logger
}

// NewPipeline 创建摄取管线
func NewPipeline(
	store rag.IndexStore,
	embedder llm.Embedder,
	chunkCfg config.ChunkingConfig,
	workerCfg config.WorkersConfig,
	tok llm.Tokenizer,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		processor: NewProcessor(chunkCfg, tok, logger),
		embedder:  embedder,
		store:     store,
		retryer:   llm.NewRetryer(llm.IndexStoreRetryPolicy(), logger),
		workers:   pool.New("ingest", workerCfg.IngestWorkers, workerCfg.IngestQueueSize, logger),
		logger:    logger.With(zap.String("component", "ingest_pipeline")),
	}
}

// Submit 异步提交文档摄取，队列满时返回错误交由调用方退避
func (p *Pipeline) Submit(ctx context.Context, doc types.ParsedDocument) error {
	return p.workers.Submit(ctx, func(taskCtx context.Context) error {
		n, err := p.Ingest(taskCtx, doc)
		if err != nil {
			metrics.IngestFailures.Inc()
			return fmt.Errorf("ingest document %s: %w", doc.DocumentID, err)
		}
		metrics.DocumentsIngested.Inc()
		metrics.ChunksIndexed.Add(float64(n))
		return nil
	})
}

// Ingest 同步摄取一篇文档，返回写入的块数
func (p *Pipeline) Ingest(ctx context.Context, doc types.ParsedDocument) (int, error) {
	if doc.SessionID == "" {
		return 0, types.NewError(types.ErrValidation, "session id is required")
	}

	chunks := p.processor.Process(doc)
	if len(chunks) == 0 {
		return 0, nil
	}

	for i := range chunks {
		vector, err := p.embedder.Embed(ctx, chunks[i].EnrichedContent)
		if err != nil {
			// 无向量块仍可被关键词通道检索
			p.logger.Warn("chunk embedding failed, indexing without vector",
				zap.String("chunk_id", chunks[i].ID),
				zap.Error(err))
			metrics.EmbeddingFailures.Inc()
			continue
		}
		chunks[i].Embedding = vector
	}

	err := p.retryer.Do(ctx, func() error {
		return p.store.IndexChunks(ctx, chunks)
	})
	if err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}

	if err := p.store.Refresh(ctx); err != nil {
		p.logger.Warn("index refresh failed", zap.Error(err))
	}
	return len(chunks), nil
}

// DeleteDocument 级联删除某文档的全部块
func (p *Pipeline) DeleteDocument(ctx context.Context, sessionID, documentID string) error {
	if sessionID == "" {
		return types.NewError(types.ErrValidation, "session id is required")
	}
	return p.retryer.Do(ctx, func() error {
		return p.store.DeleteByDocument(ctx, sessionID, documentID)
	})
}

// DeleteSession 级联删除某会话的全部块
func (p *Pipeline) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return types.NewError(types.ErrValidation, "session id is required")
	}
	return p.retryer.Do(ctx, func() error {
		return p.store.DeleteBySession(ctx, sessionID)
	})
}

// Close 关闭工作池并等待在途任务完成
func (p *Pipeline) Close() {
	p.workers.Close()
}
