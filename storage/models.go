package storage

import (
	"time"

	"github.com/BaSui01/docqa/types"
)

// SessionModel 会话表
type SessionModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Title     string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (SessionModel) TableName() string { return "sessions" }

// DocumentModel 文档表
type DocumentModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	SessionID  string    `gorm:"size:64;index;not null"`
	FileName   string    `gorm:"size:512"`
	Title      string    `gorm:"size:512"`
	ChunkCount int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (DocumentModel) TableName() string { return "documents" }

// ChatMessageModel 消息表
type ChatMessageModel struct {
	ID          string    `gorm:"primaryKey;size:64"`
	SessionID   string    `gorm:"size:64;index;not null"`
	Role        string    `gorm:"size:16;not null"`
	Content     string    `gorm:"type:text;not null"`
	TokenCount  int       `gorm:"not null;default:0"`
	IsCompacted bool      `gorm:"index;not null;default:false"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
}

func (ChatMessageModel) TableName() string { return "chat_messages" }

func (m ChatMessageModel) toDomain() types.ChatMessage {
	return types.ChatMessage{
		ID:          m.ID,
		SessionID:   m.SessionID,
		Role:        types.Role(m.Role),
		Content:     m.Content,
		TokenCount:  m.TokenCount,
		IsCompacted: m.IsCompacted,
		CreatedAt:   m.CreatedAt,
	}
}

// ChatSummaryModel 摘要表（只增不改）
type ChatSummaryModel struct {
	ID                  string    `gorm:"primaryKey;size:64"`
	SessionID           string    `gorm:"size:64;index;not null"`
	SummaryContent      string    `gorm:"type:text;not null"`
	MessageCountCovered int       `gorm:"not null"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index"`
}

func (ChatSummaryModel) TableName() string { return "chat_summaries" }

func (m ChatSummaryModel) toDomain() types.ChatSummary {
	return types.ChatSummary{
		ID:                  m.ID,
		SessionID:           m.SessionID,
		SummaryContent:      m.SummaryContent,
		MessageCountCovered: m.MessageCountCovered,
		CreatedAt:           m.CreatedAt,
	}
}

// MemoryModel 记忆表
type MemoryModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	SessionID      string    `gorm:"size:64;index;not null"`
	Content        string    `gorm:"type:text;not null"`
	Type           string    `gorm:"size:16;not null"`
	Importance     float64   `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	LastAccessedAt time.Time
}

func (MemoryModel) TableName() string { return "memories" }

func (m MemoryModel) toDomain() types.Memory {
	return types.Memory{
		ID:             m.ID,
		SessionID:      m.SessionID,
		Content:        m.Content,
		Type:           types.MemoryType(m.Type),
		Importance:     m.Importance,
		CreatedAt:      m.CreatedAt,
		LastAccessedAt: m.LastAccessedAt,
	}
}
