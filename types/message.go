package types

import "time"

// Role 聊天消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage 聊天消息
// 被压缩（IsCompacted=true）的消息不会再进入活动窗口。
type ChatMessage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	TokenCount  int       `json:"token_count"`
	IsCompacted bool      `json:"is_compacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatSummary 历史压缩摘要（追加写入，按创建时间排序）
type ChatSummary struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	SummaryContent      string    `json:"summary_content"`
	MessageCountCovered int       `json:"message_count_covered"`
	CreatedAt           time.Time `json:"created_at"`
}
