package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// Candidate 抽取出的记忆候选
type Candidate struct {
	Type       types.MemoryType `json:"type"`
	Content    string           `json:"content"`
	Importance float64          `json:"importance"`
}

// Extractor 记忆抽取器
// 请求模型从一轮问答中抽取结构化记忆候选。输出不可解析时
// 返回零条候选而不是错误，抽取失败从不影响对话主路径。
type Extractor struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewExtractor 创建记忆抽取器
func NewExtractor(completer llm.Completer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		completer: completer,
		logger:    logger.With(zap.String("component", "memory_extractor")),
	}
}

// Extract 从 (用户消息, 助手回复) 对中抽取记忆候选
func (e *Extractor) Extract(ctx context.Context, userMsg, assistantMsg string) []Candidate {
	prompt := buildExtractPrompt(userMsg, assistantMsg)

	raw, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("memory extraction call failed", zap.Error(err))
		return nil
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		e.logger.Warn("malformed extraction output, nothing extracted", zap.Error(err))
		return nil
	}

	// 未知类型整条拒绝，越界重要性安全夹取
	valid := candidates[:0]
	for _, c := range candidates {
		c.Content = strings.TrimSpace(c.Content)
		if c.Content == "" || !c.Type.Valid() {
			continue
		}
		c.Importance = types.ClampImportance(c.Importance)
		valid = append(valid, c)
	}
	return valid
}

func buildExtractPrompt(userMsg, assistantMsg string) string {
	var b strings.Builder
	b.WriteString("Extract long-term memories from this exchange as a JSON array.\n")
	b.WriteString(`Each item: {"type": "fact"|"preference"|"insight", "content": "...", "importance": 0.0-1.0}.`)
	b.WriteString("\nReturn [] when nothing is worth remembering. Respond with only JSON.\n\n")
	fmt.Fprintf(&b, "user: %s\nassistant: %s\n", userMsg, assistantMsg)
	return b.String()
}

// parseCandidates 防御式解析模型输出
func parseCandidates(raw string) ([]Candidate, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	// 模型偶尔在 JSON 前后加说明文字，截取最外层数组
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(trimmed), &candidates); err != nil {
		return nil, fmt.Errorf("parse candidates: %w", err)
	}
	return candidates, nil
}
