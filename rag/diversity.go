package rag

import (
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

// DiversityReranker 多样性重排器
// 防止单一文档垄断结果集：预算允许时先保证每个来源文档至少
// minChunksPerDocument 个名额，之后才按分数放行"奖励"名额。
// 同一文档内部保持融合分数的相对顺序。
type DiversityReranker struct {
	cfg    config.RetrievalConfig
	logger *zap.Logger
}

// NewDiversityReranker 创建多样性重排器
func NewDiversityReranker(cfg config.RetrievalConfig, logger *zap.Logger) *DiversityReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiversityReranker{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "diversity_reranker")),
	}
}

// Rerank 对融合后的候选按文档做配额重分配，结果最多 budget 条。
// 关闭多样性时融合顺序原样透传，不做截断。
func (d *DiversityReranker) Rerank(chunks []types.Chunk, budget int) []types.Chunk {
	if !d.cfg.DiversityEnabled || d.cfg.MinChunksPerDocument <= 0 {
		return chunks
	}
	if budget <= 0 || len(chunks) == 0 {
		return nil
	}

	floor := d.cfg.MinChunksPerDocument

	// 按文档分桶，桶内保持输入（即融合分数）顺序
	byDoc := make(map[string][]types.Chunk)
	docOrder := make([]string, 0)
	for _, c := range chunks {
		if _, ok := byDoc[c.DocumentID]; !ok {
			docOrder = append(docOrder, c.DocumentID)
		}
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}

	// 第一遍：每个文档按输入出现顺序（即最高融合分顺序）先占满保底名额
	taken := make(map[string]int, len(byDoc))
	selected := make([]types.Chunk, 0, budget)
	for _, docID := range docOrder {
		for _, c := range byDoc[docID] {
			if len(selected) >= budget {
				break
			}
			if taken[docID] >= floor {
				break
			}
			selected = append(selected, c)
			taken[docID]++
		}
		if len(selected) >= budget {
			break
		}
	}

	// 第二遍：剩余预算按全局融合顺序发放奖励名额
	if len(selected) < budget {
		for _, c := range chunks {
			if len(selected) >= budget {
				break
			}
			if taken[c.DocumentID] >= floor && !containsChunk(selected, c.ID) {
				selected = append(selected, c)
				taken[c.DocumentID]++
			}
		}
	}

	d.logger.Debug("diversity rerank done",
		zap.Int("input", len(chunks)),
		zap.Int("documents", len(byDoc)),
		zap.Int("selected", len(selected)))
	return selected
}

func containsChunk(chunks []types.Chunk, id string) bool {
	for _, c := range chunks {
		if c.ID == id {
			return true
		}
	}
	return false
}
