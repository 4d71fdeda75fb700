package rag

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// Pipeline 查询侧检索管线
// 串联混合检索、多样性重排、语义重排与置信度评估，输出组装好的生成上下文。
type Pipeline struct {
	searcher   *HybridSearcher
	diversity  *DiversityReranker
	reranker   Reranker
	confidence *ConfidenceScorer
	verifier   *AnswerVerifier
	cfg        config.RetrievalConfig
	logger     *zap.Logger
}

// NewPipeline 创建检索管线
func NewPipeline(
	store IndexStore,
	embedder llm.Embedder,
	completer llm.Completer,
	cfg *config.Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		searcher:   NewHybridSearcher(store, embedder, cfg.Retrieval, logger),
		diversity:  NewDiversityReranker(cfg.Retrieval, logger),
		reranker:   NewSemanticReranker(completer, cfg.Rerank, logger),
		confidence: NewConfidenceScorer(cfg.Confidence, logger),
		verifier:   NewAnswerVerifier(logger),
		cfg:        cfg.Retrieval,
		logger:     logger.With(zap.String("component", "retrieval_pipeline")),
	}
}

// Retrieve 执行完整查询管线并返回生成上下文。
// 检索链路上的任何外部失败都降级为更差的结果质量，不会让响应不可用。
func (p *Pipeline) Retrieve(ctx context.Context, sessionID, query string) (AssembledContext, []types.Chunk, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	pool, err := p.searcher.Search(ctx, sessionID, query)
	if err != nil {
		return AssembledContext{}, nil, err
	}
	if len(pool) == 0 {
		metrics.SearchesTotal.WithLabelValues(string(ConfidenceInsufficient)).Inc()
		return AssembledContext{Confidence: ConfidenceInsufficient}, nil, nil
	}

	// 多样性重排先把候选池压缩到 topK 的多样化选集，
	// 语义重排只在该选集内重打分，不会破坏每文档的保底配额。
	diversified := p.diversity.Rerank(pool, p.cfg.TopK)

	ranked, err := p.reranker.Rerank(ctx, query, diversified, p.cfg.TopK)
	if err != nil {
		// 重排器内部已有回退逻辑，这里兜底降级为先验顺序
		p.logger.Warn("semantic rerank failed, using fused order", zap.Error(err))
		ranked = diversified
		if p.cfg.TopK < len(ranked) {
			ranked = ranked[:p.cfg.TopK]
		}
	}

	level := p.confidence.Score(ranked)
	metrics.SearchesTotal.WithLabelValues(string(level)).Inc()
	return AssembleContext(ranked, level), ranked, nil
}

// Verify 生成完成后校验答案是否被检索块支撑。
// 结果只作披露信号随引用返回，从不阻断响应。
func (p *Pipeline) Verify(answer string, chunks []types.Chunk) VerificationResult {
	return p.verifier.Verify(answer, chunks)
}
