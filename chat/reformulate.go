package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// Reformulator 查询改写器
// 用最近几轮对话把省略指代的追问（"那第二种呢？"）改写为可独立检索的查询。
// 改写失败回退原始查询，改写从不是检索的硬依赖。
type Reformulator struct {
	completer llm.Completer
	cfg       config.ReformulationConfig
	logger    *zap.Logger
}

// NewReformulator 创建查询改写器
func NewReformulator(completer llm.Completer, cfg config.ReformulationConfig, logger *zap.Logger) *Reformulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reformulator{
		completer: completer,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "query_reformulator")),
	}
}

// Reformulate 把最新用户消息改写为独立查询。
// history 按时间升序，只取最近 HistoryWindow 轮参与改写。
func (r *Reformulator) Reformulate(ctx context.Context, history []types.ChatMessage, query string) string {
	if len(history) == 0 || r.completer == nil {
		return query
	}

	window := r.cfg.HistoryWindow
	if window <= 0 {
		window = 5
	}
	// 一轮 = 一问一答
	if n := window * 2; len(history) > n {
		history = history[len(history)-n:]
	}

	prompt := buildReformulatePrompt(history, query)
	rewritten, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		r.logger.Warn("reformulation failed, using original query", zap.Error(err))
		return query
	}

	rewritten = strings.TrimSpace(strings.Trim(strings.TrimSpace(rewritten), `"`))
	if rewritten == "" {
		return query
	}

	if max := r.cfg.MaxLength; max > 0 {
		if runes := []rune(rewritten); len(runes) > max {
			rewritten = string(runes[:max])
		}
	}

	r.logger.Debug("query reformulated",
		zap.String("original", query),
		zap.String("rewritten", rewritten))
	return rewritten
}

func buildReformulatePrompt(history []types.ChatMessage, query string) string {
	var b strings.Builder
	b.WriteString("Rewrite the latest user question into a standalone search query.\n")
	b.WriteString("Resolve pronouns and references using the conversation. ")
	b.WriteString("Respond with only the rewritten query, nothing else.\n\nConversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "\nLatest question: %s\n", query)
	return b.String()
}
