package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// neutralScore 评分缺失时的中性补齐值
const neutralScore = 0.5

// Reranker 语义重排接口（可插拔：交叉编码器或 LLM 评分）
type Reranker interface {
	// Rerank 对候选重打分并截断到 topK
	Rerank(ctx context.Context, query string, candidates []types.Chunk, topK int) ([]types.Chunk, error)
}

// SemanticReranker 基于补全模型的语义重排器
// 按批请求模型对 (query, passage) 逐条输出 [0,1] 相关性分数；
// 任何批次失败都回退到由先验融合分派生的确定性分数，从不向外抛错。
type SemanticReranker struct {
	completer llm.Completer
	retryer   llm.Retryer
	cfg       config.RerankConfig
	logger    *zap.Logger
}

// NewSemanticReranker 创建语义重排器
func NewSemanticReranker(completer llm.Completer, cfg config.RerankConfig, logger *zap.Logger) *SemanticReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticReranker{
		completer: completer,
		retryer:   llm.NewRetryer(llm.RerankRetryPolicy(), logger),
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "semantic_reranker")),
	}
}

// Rerank 实现 Reranker.Rerank
func (r *SemanticReranker) Rerank(ctx context.Context, query string, candidates []types.Chunk, topK int) ([]types.Chunk, error) {
	if len(candidates) == 0 || topK <= 0 {
		return nil, nil
	}

	scored := make([]types.Chunk, len(candidates))
	copy(scored, candidates)

	if !r.cfg.Enabled || r.completer == nil {
		// 未启用时按先验分数排序透传
		sortByScore(scored)
		if topK < len(scored) {
			scored = scored[:topK]
		}
		return scored, nil
	}

	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	for start := 0; start < len(scored); start += batchSize {
		end := start + batchSize
		if end > len(scored) {
			end = len(scored)
		}
		batch := scored[start:end]

		scores, err := r.scoreBatch(ctx, query, batch)
		if err != nil {
			metrics.RerankFallbacks.Inc()
			r.logger.Warn("rerank batch failed, using fallback scores",
				zap.Int("batch_start", start),
				zap.Error(err))
			for i := range batch {
				batch[i].RelevanceScore = r.fallbackScore(batch[i].RelevanceScore)
			}
			continue
		}
		for i := range batch {
			batch[i].RelevanceScore = scores[i]
		}
	}

	sortByScore(scored)
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// scoreBatch 请求模型为一批候选打分，返回与 batch 等长的分数切片
func (r *SemanticReranker) scoreBatch(ctx context.Context, query string, batch []types.Chunk) ([]float64, error) {
	prompt := buildRerankPrompt(query, batch)

	var raw string
	err := r.retryer.Do(ctx, func() error {
		var callErr error
		raw, callErr = r.completer.Complete(ctx, prompt)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	scores, err := parseScores(raw)
	if err != nil {
		return nil, types.NewError(types.ErrMalformedOutput, "unparseable rerank scores").WithCause(err)
	}

	// 过少补中性分，过多截断
	for len(scores) < len(batch) {
		scores = append(scores, neutralScore)
	}
	scores = scores[:len(batch)]

	for i, s := range scores {
		scores[i] = clampUnit(s)
	}
	return scores, nil
}

// fallbackScore 由先验融合分派生确定性回退分。
// RRF 分数数值很小（约 1/60 量级），放大后落回 [0,1]。
func (r *SemanticReranker) fallbackScore(prior float64) float64 {
	scale := r.cfg.FallbackScale
	if scale <= 0 {
		scale = 10.0
	}
	return clampUnit(prior * scale)
}

// buildRerankPrompt 构造带评分量规的重排提示
func buildRerankPrompt(query string, batch []types.Chunk) string {
	var b strings.Builder
	b.WriteString("Rate the relevance of each passage to the query on a 0.0-1.0 scale.\n")
	b.WriteString("1.0 = directly answers the query; 0.5 = partially related; 0.0 = unrelated.\n")
	b.WriteString("Respond with only the scores, comma-separated, one per passage, in order.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	for i, c := range batch {
		fmt.Fprintf(&b, "Passage %d:\n%s\n\n", i+1, c.Content)
	}
	return b.String()
}

// parseScores 宽容解析模型输出：优先 JSON 数组，其次逐段抓取浮点数
func parseScores(raw string) ([]float64, error) {
	trimmed := strings.TrimSpace(raw)

	// 剥掉 markdown 代码围栏
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var jsonScores []float64
	if err := json.Unmarshal([]byte(trimmed), &jsonScores); err == nil {
		return jsonScores, nil
	}

	// 逗号/换行分隔的裸数字
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';' || r == ' ' || r == '\t'
	})
	var scores []float64
	for _, f := range fields {
		f = strings.Trim(f, "[]")
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		scores = append(scores, v)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("no numeric scores in response")
	}
	return scores, nil
}

// clampUnit 把分数夹到 [0,1]
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
