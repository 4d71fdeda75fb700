package rag

import (
	"math"
	"sort"

	"github.com/BaSui01/docqa/types"
)

// DefaultRRFK RRF 平滑常数，削弱头部排名的支配作用
const DefaultRRFK = 60

// fusedChunk 融合过程中的中间状态
type fusedChunk struct {
	chunk      types.Chunk
	score      float64
	vectorRank int // 向量通道排名（1 起），未出现为 0
}

// FuseRankings 对多路检索结果做 Reciprocal Rank Fusion。
//
// 每个通道内的排名从 1 起，块在通道中贡献 1/(rrfK+rank)，
// 同一块在多个通道出现时分数相加。融合只看排名，不看各通道的原始分数，
// 因此余弦相似度与 BM25 的量纲差异不需要归一化。
//
// 排序规则：融合分数降序；同分时优先向量通道排名靠前者（未出现视为最差）；
// 仍同则按块 ID 升序，保证确定性输出。
// 第一路结果视为向量通道。
func FuseRankings(rankings [][]types.Chunk, rrfK int) []types.Chunk {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	fused := make(map[string]*fusedChunk)
	for channelIdx, ranking := range rankings {
		for i, c := range ranking {
			rank := i + 1
			entry, ok := fused[c.ID]
			if !ok {
				entry = &fusedChunk{chunk: c}
				fused[c.ID] = entry
			}
			entry.score += 1.0 / float64(rrfK+rank)
			if channelIdx == 0 {
				entry.vectorRank = rank
			}
		}
	}

	entries := make([]*fusedChunk, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		ri, rj := entries[i].vectorRank, entries[j].vectorRank
		if ri == 0 {
			ri = math.MaxInt
		}
		if rj == 0 {
			rj = math.MaxInt
		}
		if ri != rj {
			return ri < rj
		}
		return entries[i].chunk.ID < entries[j].chunk.ID
	})

	results := make([]types.Chunk, len(entries))
	for i, e := range entries {
		c := e.chunk
		c.RelevanceScore = e.score
		results[i] = c
	}
	return results
}
