package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/docqa/types"
)

// Session 会话元数据
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document 文档元数据
type Document struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	FileName   string    `json:"file_name"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionRepo 会话仓库
// 会话删除级联清空其文档、消息、摘要与记忆的元数据；
// 索引内的块由调用方通过摄取管线同步删除。
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建会话仓库
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create 创建会话
func (r *SessionRepo) Create(ctx context.Context, s Session) error {
	model := SessionModel{ID: s.ID, Title: s.Title}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get 读取会话，未知 ID 返回 NOT_FOUND
func (r *SessionRepo) Get(ctx context.Context, id string) (Session, error) {
	var model SessionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, types.NotFoundError("session", id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return Session{ID: model.ID, Title: model.Title, CreatedAt: model.CreatedAt, UpdatedAt: model.UpdatedAt}, nil
}

// Delete 删除会话并级联清空其全部元数据
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&SessionModel{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return types.NotFoundError("session", id)
		}

		for _, model := range []any{
			&DocumentModel{}, &ChatMessageModel{}, &ChatSummaryModel{}, &MemoryModel{},
		} {
			if err := tx.Delete(model, "session_id = ?", id).Error; err != nil {
				return fmt.Errorf("cascade delete: %w", err)
			}
		}
		return nil
	})
}

// DocumentRepo 文档仓库
type DocumentRepo struct {
	db *gorm.DB
}

// NewDocumentRepo 创建文档仓库
func NewDocumentRepo(db *gorm.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create 创建文档记录
func (r *DocumentRepo) Create(ctx context.Context, d Document) error {
	model := DocumentModel{
		ID:         d.ID,
		SessionID:  d.SessionID,
		FileName:   d.FileName,
		Title:      d.Title,
		ChunkCount: d.ChunkCount,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Get 读取文档，未知 ID 返回 NOT_FOUND
func (r *DocumentRepo) Get(ctx context.Context, id string) (Document, error) {
	var model DocumentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, types.NotFoundError("document", id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return Document{
		ID:         model.ID,
		SessionID:  model.SessionID,
		FileName:   model.FileName,
		Title:      model.Title,
		ChunkCount: model.ChunkCount,
		CreatedAt:  model.CreatedAt,
	}, nil
}

// ListBySession 返回会话内全部文档
func (r *DocumentRepo) ListBySession(ctx context.Context, sessionID string) ([]Document, error) {
	var models []DocumentModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]Document, len(models))
	for i, m := range models {
		docs[i] = Document{
			ID:         m.ID,
			SessionID:  m.SessionID,
			FileName:   m.FileName,
			Title:      m.Title,
			ChunkCount: m.ChunkCount,
			CreatedAt:  m.CreatedAt,
		}
	}
	return docs, nil
}

// SetChunkCount 摄取完成后回填块数
func (r *DocumentRepo) SetChunkCount(ctx context.Context, id string, n int) error {
	res := r.db.WithContext(ctx).
		Model(&DocumentModel{}).
		Where("id = ?", id).
		Update("chunk_count", n)
	if res.Error != nil {
		return fmt.Errorf("set chunk count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NotFoundError("document", id)
	}
	return nil
}

// Delete 删除文档记录（会话过滤防跨会话删除）
func (r *DocumentRepo) Delete(ctx context.Context, sessionID, id string) error {
	res := r.db.WithContext(ctx).
		Delete(&DocumentModel{}, "id = ? AND session_id = ?", id, sessionID)
	if res.Error != nil {
		return fmt.Errorf("delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NotFoundError("document", id)
	}
	return nil
}
