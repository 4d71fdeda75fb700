package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/docqa/types"
)

// MemoryRepo 记忆仓库，实现 memory.Repository
type MemoryRepo struct {
	db *gorm.DB
}

// NewMemoryRepo 创建记忆仓库
func NewMemoryRepo(db *gorm.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

// ListBySession 返回会话全部记忆
func (r *MemoryRepo) ListBySession(ctx context.Context, sessionID string) ([]types.Memory, error) {
	var models []MemoryModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	memories := make([]types.Memory, len(models))
	for i, m := range models {
		memories[i] = m.toDomain()
	}
	return memories, nil
}

// Insert 插入一条记忆
func (r *MemoryRepo) Insert(ctx context.Context, m types.Memory) error {
	model := MemoryModel{
		ID:             m.ID,
		SessionID:      m.SessionID,
		Content:        m.Content,
		Type:           string(m.Type),
		Importance:     m.Importance,
		LastAccessedAt: m.LastAccessedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// UpdateImportance 更新重要性
func (r *MemoryRepo) UpdateImportance(ctx context.Context, id string, importance float64) error {
	res := r.db.WithContext(ctx).
		Model(&MemoryModel{}).
		Where("id = ?", id).
		Update("importance", importance)
	if res.Error != nil {
		return fmt.Errorf("update importance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NotFoundError("memory", id)
	}
	return nil
}

// Touch 刷新最近访问时间
func (r *MemoryRepo) Touch(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&MemoryModel{}).
		Where("id = ?", id).
		Update("last_accessed_at", at)
	if res.Error != nil {
		return fmt.Errorf("touch memory: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NotFoundError("memory", id)
	}
	return nil
}

// DeleteByID 批量删除
func (r *MemoryRepo) DeleteByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Delete(&MemoryModel{}, "id IN ?", ids).Error
	if err != nil {
		return fmt.Errorf("delete memories: %w", err)
	}
	return nil
}
