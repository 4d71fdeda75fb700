package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/BaSui01/docqa/types"
)

// MessageRepo 消息与摘要仓库，实现压缩器依赖的 chat.MessageStore
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append 追加一条消息
func (r *MessageRepo) Append(ctx context.Context, m types.ChatMessage) error {
	model := ChatMessageModel{
		ID:          m.ID,
		SessionID:   m.SessionID,
		Role:        string(m.Role),
		Content:     m.Content,
		TokenCount:  m.TokenCount,
		IsCompacted: m.IsCompacted,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ActiveMessages 返回未压缩消息，按创建时间升序
func (r *MessageRepo) ActiveMessages(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	var models []ChatMessageModel
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_compacted = ?", sessionID, false).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("load active messages: %w", err)
	}

	messages := make([]types.ChatMessage, len(models))
	for i, m := range models {
		messages[i] = m.toDomain()
	}
	return messages, nil
}

// MarkCompacted 标记消息为已压缩，之后不再进入活跃窗口
func (r *MessageRepo) MarkCompacted(ctx context.Context, sessionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&ChatMessageModel{}).
		Where("session_id = ? AND id IN ?", sessionID, ids).
		Update("is_compacted", true).Error
	if err != nil {
		return fmt.Errorf("mark compacted: %w", err)
	}
	return nil
}

// AppendSummary 追加摘要（只增不改）
func (r *MessageRepo) AppendSummary(ctx context.Context, s types.ChatSummary) error {
	model := ChatSummaryModel{
		ID:                  s.ID,
		SessionID:           s.SessionID,
		SummaryContent:      s.SummaryContent,
		MessageCountCovered: s.MessageCountCovered,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	return nil
}

// Summaries 返回会话摘要，按创建时间升序
func (r *MessageRepo) Summaries(ctx context.Context, sessionID string) ([]types.ChatSummary, error) {
	var models []ChatSummaryModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}

	summaries := make([]types.ChatSummary, len(models))
	for i, m := range models {
		summaries[i] = m.toDomain()
	}
	return summaries, nil
}
