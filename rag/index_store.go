package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// IndexStore 索引存储接口
// 底层实现需支持向量相似搜索、全文/BM25 搜索与批量写入/删除，
// 并在每个命中上返回相关性分数。sessionID 在所有检索与删除上必选。
type IndexStore interface {
	// IndexChunks 批量写入文档块
	IndexChunks(ctx context.Context, chunks []types.Chunk) error

	// VectorSearch 会话内向量相似搜索
	VectorSearch(ctx context.Context, sessionID string, queryVector []float64, k int) ([]types.Chunk, error)

	// KeywordSearch 会话内关键词（BM25）搜索
	KeywordSearch(ctx context.Context, sessionID string, query string, k int) ([]types.Chunk, error)

	// DeleteByDocument 删除某文档的全部块
	DeleteByDocument(ctx context.Context, sessionID, documentID string) error

	// DeleteBySession 删除某会话的全部块
	DeleteBySession(ctx context.Context, sessionID string) error

	// Refresh 使此前的写入对搜索可见
	Refresh(ctx context.Context) error
}

// BM25 参数（k1 取 1.2-2.0，b 取 0.75）
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// MemoryIndexStore 内存索引存储（参考实现，用于测试和小规模应用）
// 向量通道使用余弦相似度，关键词通道使用 BM25。
type MemoryIndexStore struct {
	mu       sync.RWMutex
	sessions map[string][]types.Chunk // sessionID -> chunks
	logger   *zap.Logger
}

// NewMemoryIndexStore 创建内存索引存储
func NewMemoryIndexStore(logger *zap.Logger) *MemoryIndexStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryIndexStore{
		sessions: make(map[string][]types.Chunk),
		logger:   logger,
	}
}

// IndexChunks 批量写入文档块
func (s *MemoryIndexStore) IndexChunks(ctx context.Context, chunks []types.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		c.RelevanceScore = 0 // 瞬态分数不持久化
		s.sessions[c.SessionID] = append(s.sessions[c.SessionID], c)
	}

	s.logger.Info("chunks indexed", zap.Int("count", len(chunks)))
	return nil
}

// VectorSearch 会话内向量相似搜索
func (s *MemoryIndexStore) VectorSearch(ctx context.Context, sessionID string, queryVector []float64, k int) ([]types.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []types.Chunk
	for _, c := range s.sessions[sessionID] {
		if c.Embedding == nil {
			continue
		}
		c.RelevanceScore = cosineSimilarity(queryVector, c.Embedding)
		results = append(results, c)
	}

	sortByScore(results)
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// KeywordSearch 会话内 BM25 搜索
func (s *MemoryIndexStore) KeywordSearch(ctx context.Context, sessionID string, query string, k int) ([]types.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	corpus := s.sessions[sessionID]
	if len(corpus) == 0 {
		return nil, nil
	}

	// 按会话语料计算 BM25 统计
	docTerms := make([][]string, len(corpus))
	totalLen := 0
	termDocCount := make(map[string]int)
	for i, c := range corpus {
		terms := tokenize(indexedText(c))
		docTerms[i] = terms
		totalLen += len(terms)

		seen := make(map[string]bool)
		for _, term := range terms {
			if !seen[term] {
				termDocCount[term]++
				seen[term] = true
			}
		}
	}
	avgDocLen := float64(totalLen) / float64(len(corpus))

	n := float64(len(corpus))
	idf := make(map[string]float64, len(termDocCount))
	for term, df := range termDocCount {
		idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}

	queryTerms := tokenize(query)
	var results []types.Chunk
	for i, c := range corpus {
		termFreq := make(map[string]int)
		for _, term := range docTerms[i] {
			termFreq[term]++
		}

		score := 0.0
		docLen := float64(len(docTerms[i]))
		for _, qTerm := range queryTerms {
			tf, ok := termFreq[qTerm]
			if !ok {
				continue
			}
			numerator := float64(tf) * (bm25K1 + 1.0)
			denominator := float64(tf) + bm25K1*(1.0-bm25B+bm25B*(docLen/avgDocLen))
			score += idf[qTerm] * (numerator / denominator)
		}

		if score > 0 {
			c.RelevanceScore = score
			results = append(results, c)
		}
	}

	sortByScore(results)
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// DeleteByDocument 删除某文档的全部块
func (s *MemoryIndexStore) DeleteByDocument(ctx context.Context, sessionID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := s.sessions[sessionID]
	filtered := chunks[:0]
	for _, c := range chunks {
		if c.DocumentID != documentID {
			filtered = append(filtered, c)
		}
	}

	deleted := len(chunks) - len(filtered)
	s.sessions[sessionID] = filtered

	s.logger.Info("chunks deleted by document",
		zap.String("document_id", documentID),
		zap.Int("deleted", deleted))
	return nil
}

// DeleteBySession 删除某会话的全部块
func (s *MemoryIndexStore) DeleteBySession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := len(s.sessions[sessionID])
	delete(s.sessions, sessionID)

	s.logger.Info("chunks deleted by session",
		zap.String("session_id", sessionID),
		zap.Int("deleted", deleted))
	return nil
}

// Refresh 内存实现的写入立即可见
func (s *MemoryIndexStore) Refresh(ctx context.Context) error {
	return nil
}

// Count 返回会话内块数
func (s *MemoryIndexStore) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}

// indexedText 返回参与索引的文本：优先 EnrichedContent。
func indexedText(c types.Chunk) string {
	if c.EnrichedContent != "" {
		return c.EnrichedContent
	}
	return c.Content
}

// tokenize 分词：转小写后按非字母数字边界切分，
// 标点不会黏在词项上影响匹配。
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// cosineSimilarity 计算余弦相似度
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore 按分数降序排序（同分时按 ID 保持确定性）
func sortByScore(chunks []types.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].RelevanceScore != chunks[j].RelevanceScore {
			return chunks[i].RelevanceScore > chunks[j].RelevanceScore
		}
		return chunks[i].ID < chunks[j].ID
	})
}
