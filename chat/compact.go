package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// MessageStore 压缩器依赖的消息存储接口
type MessageStore interface {
	// ActiveMessages 返回会话内未压缩的消息，按创建时间升序
	ActiveMessages(ctx context.Context, sessionID string) ([]types.ChatMessage, error)

	// MarkCompacted 把消息标记为已压缩，之后不再进入活跃窗口
	MarkCompacted(ctx context.Context, sessionID string, ids []string) error

	// AppendSummary 追加一条摘要（摘要只增不改）
	AppendSummary(ctx context.Context, summary types.ChatSummary) error

	// Summaries 返回会话摘要，按创建时间升序
	Summaries(ctx context.Context, sessionID string) ([]types.ChatSummary, error)
}

// Compactor 聊天历史压缩器
// 未压缩 token 数或消息数超阈值时触发：最近 SlidingWindowSize 条保持原样，
// 更早的消息按批摘要并标记已压缩。重复触发且无新消息达标时是空操作。
type Compactor struct {
	store     MessageStore
	completer llm.Completer
	cfg       config.CompactionConfig
	logger    *zap.Logger
}

// NewCompactor 创建历史压缩器
func NewCompactor(store MessageStore, completer llm.Completer, cfg config.CompactionConfig, logger *zap.Logger) *Compactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compactor{
		store:     store,
		completer: completer,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "history_compactor")),
	}
}

// MaybeCompact 阈值触发的压缩，未达阈值直接返回
func (c *Compactor) MaybeCompact(ctx context.Context, sessionID string) (int, error) {
	messages, err := c.store.ActiveMessages(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("load active messages: %w", err)
	}

	tokens := 0
	for _, m := range messages {
		tokens += m.TokenCount
	}
	if tokens <= c.cfg.TokenThreshold && len(messages) <= c.cfg.MessageThreshold {
		return 0, nil
	}
	return c.compact(ctx, sessionID, messages)
}

// Compact 显式压缩，忽略阈值
func (c *Compactor) Compact(ctx context.Context, sessionID string) (int, error) {
	messages, err := c.store.ActiveMessages(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("load active messages: %w", err)
	}
	return c.compact(ctx, sessionID, messages)
}

// compact 对滑动窗口之外的消息分批摘要，返回压缩掉的消息数
func (c *Compactor) compact(ctx context.Context, sessionID string, messages []types.ChatMessage) (int, error) {
	window := c.cfg.SlidingWindowSize
	if len(messages) <= window {
		return 0, nil
	}
	eligible := messages[:len(messages)-window]

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	compacted := 0
	for start := 0; start < len(eligible); start += batchSize {
		end := start + batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batch := eligible[start:end]

		summary, err := c.summarize(ctx, batch)
		if err != nil {
			// 摘要失败的批次保持未压缩，下次触发再试
			c.logger.Warn("batch summarization failed, leaving batch uncompacted",
				zap.Int("batch_start", start),
				zap.Error(err))
			continue
		}

		if err := c.store.AppendSummary(ctx, types.ChatSummary{
			ID:                  uuid.NewString(),
			SessionID:           sessionID,
			SummaryContent:      summary,
			MessageCountCovered: len(batch),
		}); err != nil {
			return compacted, fmt.Errorf("append summary: %w", err)
		}

		ids := make([]string, len(batch))
		for i, m := range batch {
			ids[i] = m.ID
		}
		if err := c.store.MarkCompacted(ctx, sessionID, ids); err != nil {
			return compacted, fmt.Errorf("mark compacted: %w", err)
		}
		compacted += len(batch)
	}

	if compacted > 0 {
		metrics.CompactionRuns.Inc()
		metrics.MessagesCompacted.Add(float64(compacted))
		c.logger.Info("history compacted",
			zap.String("session_id", sessionID),
			zap.Int("messages", compacted))
	}
	return compacted, nil
}

// summarize 请求模型摘要一批消息
func (c *Compactor) summarize(ctx context.Context, batch []types.ChatMessage) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize this conversation segment in a few sentences. ")
	b.WriteString("Preserve facts, decisions and open questions. Respond with only the summary.\n\n")
	for _, m := range batch {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	summary, err := c.completer.Complete(ctx, b.String())
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", types.NewError(types.ErrMalformedOutput, "empty summary")
	}
	return summary, nil
}

// History 组装送入生成模型的对话上下文：历史摘要在前，活跃窗口消息在后
func (c *Compactor) History(ctx context.Context, sessionID string) ([]types.ChatSummary, []types.ChatMessage, error) {
	summaries, err := c.store.Summaries(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load summaries: %w", err)
	}
	messages, err := c.store.ActiveMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load active messages: %w", err)
	}
	return summaries, messages, nil
}
