package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// HybridSearcher 混合检索器
// 查询向量化后并发执行向量与关键词两路检索，RRF 融合为单一候选池。
// 任一通道失败降级为单通道检索；两路同时失败才向上返回错误。
type HybridSearcher struct {
	store    IndexStore
	embedder llm.Embedder
	retryer  llm.Retryer
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

// NewHybridSearcher 创建混合检索器
func NewHybridSearcher(store IndexStore, embedder llm.Embedder, cfg config.RetrievalConfig, logger *zap.Logger) *HybridSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridSearcher{
		store:    store,
		embedder: embedder,
		retryer:  llm.NewRetryer(llm.IndexStoreRetryPolicy(), logger),
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "hybrid_searcher")),
	}
}

// Search 会话内混合检索，返回 topK×CandidatesMultiplier 大小的融合候选池
// （供下游多样性/语义重排截断到 topK）。
func (h *HybridSearcher) Search(ctx context.Context, sessionID, query string) ([]types.Chunk, error) {
	if sessionID == "" {
		return nil, types.NewError(types.ErrValidation, "session id is required")
	}

	poolSize := h.cfg.TopK * h.cfg.CandidatesMultiplier

	queryVector, err := h.embedder.Embed(ctx, query)
	if err != nil {
		// 向量化失败退化为纯关键词检索
		h.logger.Warn("query embedding failed, keyword-only search", zap.Error(err))
		queryVector = nil
	}

	var vectorHits, keywordHits []types.Chunk
	g, gctx := errgroup.WithContext(ctx)

	if queryVector != nil {
		g.Go(func() error {
			err := h.retryer.Do(gctx, func() error {
				var searchErr error
				vectorHits, searchErr = h.store.VectorSearch(gctx, sessionID, queryVector, poolSize)
				return searchErr
			})
			if err != nil {
				h.logger.Warn("vector channel failed", zap.Error(err))
				vectorHits = nil
			}
			return nil // 单通道失败不终止另一路
		})
	}

	g.Go(func() error {
		err := h.retryer.Do(gctx, func() error {
			var searchErr error
			keywordHits, searchErr = h.store.KeywordSearch(gctx, sessionID, query, poolSize)
			return searchErr
		})
		if err != nil {
			h.logger.Warn("keyword channel failed", zap.Error(err))
			keywordHits = nil
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	if len(vectorHits) == 0 && len(keywordHits) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.logger.Info("hybrid search returned no candidates",
			zap.String("session_id", sessionID))
		return nil, nil
	}

	fused := FuseRankings([][]types.Chunk{vectorHits, keywordHits}, h.cfg.RRFK)
	if poolSize < len(fused) {
		fused = fused[:poolSize]
	}

	h.logger.Debug("hybrid search done",
		zap.Int("vector_hits", len(vectorHits)),
		zap.Int("keyword_hits", len(keywordHits)),
		zap.Int("fused", len(fused)))
	return fused, nil
}
