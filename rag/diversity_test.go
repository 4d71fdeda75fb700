package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

func fusedChunks() []types.Chunk {
	// d1 垄断头部排名的典型输入
	return []types.Chunk{
		{ID: "c1", DocumentID: "d1", RelevanceScore: 0.9},
		{ID: "c2", DocumentID: "d1", RelevanceScore: 0.8},
		{ID: "c3", DocumentID: "d1", RelevanceScore: 0.7},
		{ID: "c4", DocumentID: "d2", RelevanceScore: 0.6},
		{ID: "c5", DocumentID: "d3", RelevanceScore: 0.5},
	}
}

func TestDiversityReranker_FloorBeforeBonus(t *testing.T) {
	d := NewDiversityReranker(config.RetrievalConfig{
		DiversityEnabled:     true,
		MinChunksPerDocument: 1,
	}, zap.NewNop())

	out := d.Rerank(fusedChunks(), 3)
	require.Len(t, out, 3)

	// 每个文档先拿到保底名额，d1 的第二、三名被挤出
	docs := map[string]bool{}
	for _, c := range out {
		docs[c.DocumentID] = true
	}
	assert.Len(t, docs, 3)
	assert.Equal(t, "c1", out[0].ID)
}

func TestDiversityReranker_BonusAfterFloor(t *testing.T) {
	d := NewDiversityReranker(config.RetrievalConfig{
		DiversityEnabled:     true,
		MinChunksPerDocument: 1,
	}, zap.NewNop())

	out := d.Rerank(fusedChunks(), 5)
	require.Len(t, out, 5)

	// 预算覆盖全部候选时无人被丢弃
	ids := map[string]bool{}
	for _, c := range out {
		ids[c.ID] = true
	}
	assert.Len(t, ids, 5)

	// 文档内部保持融合顺序
	var d1 []string
	for _, c := range out {
		if c.DocumentID == "d1" {
			d1 = append(d1, c.ID)
		}
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, d1)
}

func TestDiversityReranker_DisabledPassesThrough(t *testing.T) {
	d := NewDiversityReranker(config.RetrievalConfig{DiversityEnabled: false}, zap.NewNop())

	in := fusedChunks()
	out := d.Rerank(in, 2)
	assert.Equal(t, in, out)
}

func TestDiversityReranker_FloorTwo(t *testing.T) {
	d := NewDiversityReranker(config.RetrievalConfig{
		DiversityEnabled:     true,
		MinChunksPerDocument: 2,
	}, zap.NewNop())

	out := d.Rerank(fusedChunks(), 4)
	require.Len(t, out, 4)

	counts := map[string]int{}
	for _, c := range out {
		counts[c.DocumentID]++
	}
	// d1 保底两席，d2 全部一席，剩余给 d3
	assert.Equal(t, 2, counts["d1"])
	assert.Equal(t, 1, counts["d2"])
	assert.Equal(t, 1, counts["d3"])
}
