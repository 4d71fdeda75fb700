package rag

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

// ConfidenceLevel 检索置信度等级
type ConfidenceLevel string

const (
	// ConfidenceSufficient 检索充分，可直接生成
	ConfidenceSufficient ConfidenceLevel = "sufficient"
	// ConfidenceWeak 检索偏弱，生成时应表达不确定性
	ConfidenceWeak ConfidenceLevel = "weak"
	// ConfidenceInsufficient 检索不足，建议请求澄清
	ConfidenceInsufficient ConfidenceLevel = "insufficient"
)

// ConfidenceScorer 置信度评估器
// 检查重排后的分数分布（最高分量级、头部与次席的落差）决定生成策略。
type ConfidenceScorer struct {
	cfg    config.ConfidenceConfig
	logger *zap.Logger
}

// NewConfidenceScorer 创建置信度评估器
func NewConfidenceScorer(cfg config.ConfidenceConfig, logger *zap.Logger) *ConfidenceScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfidenceScorer{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "confidence_scorer")),
	}
}

// Score 评估重排结果的检索置信度
func (s *ConfidenceScorer) Score(chunks []types.Chunk) ConfidenceLevel {
	if len(chunks) == 0 {
		return ConfidenceInsufficient
	}

	top := chunks[0].RelevanceScore
	if top < s.cfg.MinTopScore {
		s.logger.Debug("retrieval confidence insufficient",
			zap.Float64("top_score", top),
			zap.Float64("min_top_score", s.cfg.MinTopScore))
		return ConfidenceInsufficient
	}

	// 头部分与次席落差过大说明只有单点支撑
	if len(chunks) > 1 {
		gap := top - chunks[1].RelevanceScore
		if gap > s.cfg.MaxTopGap {
			s.logger.Debug("retrieval confidence weak",
				zap.Float64("top_score", top),
				zap.Float64("gap", gap))
			return ConfidenceWeak
		}
	}

	return ConfidenceSufficient
}

// VerificationResult 答案落地校验结果
type VerificationResult struct {
	// Grounded 是否所有句子都可归因到检索上下文
	Grounded bool `json:"grounded"`
	// GroundedRatio 可归因句子占比 [0,1]
	GroundedRatio float64 `json:"grounded_ratio"`
	// UnsupportedSentences 无法归因的句子
	UnsupportedSentences []string `json:"unsupported_sentences,omitempty"`
}

// AnswerVerifier 答案落地校验器
// 逐句检查生成答案对检索上下文的词重叠覆盖，标记无支撑陈述。
// 校验结果只作为披露信号，从不阻断响应。
type AnswerVerifier struct {
	// 句子词汇被上下文覆盖的比例低于此值视为无支撑
	overlapThreshold float64
	logger           *zap.Logger
}

// NewAnswerVerifier 创建答案落地校验器
func NewAnswerVerifier(logger *zap.Logger) *AnswerVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerVerifier{
		overlapThreshold: 0.5,
		logger:           logger.With(zap.String("component", "answer_verifier")),
	}
}

// Verify 校验答案各句是否可归因到检索上下文
func (v *AnswerVerifier) Verify(answer string, contextChunks []types.Chunk) VerificationResult {
	sentences := splitSentences(answer)
	if len(sentences) == 0 {
		return VerificationResult{Grounded: true, GroundedRatio: 1.0}
	}

	contextTerms := make(map[string]bool)
	for _, c := range contextChunks {
		for _, term := range tokenize(c.Content) {
			contextTerms[term] = true
		}
	}

	var unsupported []string
	grounded := 0
	for _, sentence := range sentences {
		terms := tokenize(sentence)
		if len(terms) == 0 {
			grounded++
			continue
		}

		covered := 0
		for _, term := range terms {
			if contextTerms[term] {
				covered++
			}
		}
		if float64(covered)/float64(len(terms)) >= v.overlapThreshold {
			grounded++
		} else {
			unsupported = append(unsupported, sentence)
		}
	}

	ratio := float64(grounded) / float64(len(sentences))
	if len(unsupported) > 0 {
		v.logger.Info("answer contains unsupported statements",
			zap.Int("unsupported", len(unsupported)),
			zap.Float64("grounded_ratio", ratio))
	}

	return VerificationResult{
		Grounded:             len(unsupported) == 0,
		GroundedRatio:        ratio,
		UnsupportedSentences: unsupported,
	}
}

// splitSentences 按句末标点（含中文标点）切句
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if isSentenceEnd(r) {
			s := strings.TrimSpace(current.String())
			if s != "" && hasLetterOrDigit(s) {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" && hasLetterOrDigit(s) {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
