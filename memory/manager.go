package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/internal/pool"
	"github.com/BaSui01/docqa/types"
)

// Repository 记忆持久化接口
type Repository interface {
	// ListBySession 返回会话全部记忆
	ListBySession(ctx context.Context, sessionID string) ([]types.Memory, error)

	// Insert 插入一条记忆
	Insert(ctx context.Context, m types.Memory) error

	// UpdateImportance 更新重要性
	UpdateImportance(ctx context.Context, id string, importance float64) error

	// Touch 刷新最近访问时间
	Touch(ctx context.Context, id string, at time.Time) error

	// DeleteByID 批量删除
	DeleteByID(ctx context.Context, ids []string) error
}

// Manager 记忆管理器
// 负责抽取候选的去重入库、超限剪枝与按重要性的检索。
// 抽取任务通过受监督的工作池异步执行，不占对话热路径。
type Manager struct {
	repo      Repository
	extractor *Extractor
	workers   *pool.Pool
	cfg       config.MemoryConfig
	logger    *zap.Logger
}

// NewManager 创建记忆管理器
func NewManager(repo Repository, extractor *Extractor, cfg config.MemoryConfig, workerCfg config.WorkersConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repo:      repo,
		extractor: extractor,
		workers:   pool.New("memory", workerCfg.MemoryWorkers, workerCfg.MemoryQueueSize, logger),
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "memory_manager")),
	}
}

// SubmitExchange 异步提交一轮问答做记忆抽取
func (m *Manager) SubmitExchange(ctx context.Context, sessionID, userMsg, assistantMsg string) error {
	return m.workers.Submit(ctx, func(taskCtx context.Context) error {
		return m.ProcessExchange(taskCtx, sessionID, userMsg, assistantMsg)
	})
}

// ProcessExchange 同步抽取并入库，返回前抽取候选已全部处理完
func (m *Manager) ProcessExchange(ctx context.Context, sessionID, userMsg, assistantMsg string) error {
	candidates := m.extractor.Extract(ctx, userMsg, assistantMsg)

	stored := 0
	for _, c := range candidates {
		if c.Importance < m.cfg.ExtractionThreshold {
			continue
		}
		inserted, err := m.Remember(ctx, sessionID, c.Content, c.Type, c.Importance)
		if err != nil {
			return fmt.Errorf("store memory: %w", err)
		}
		if inserted {
			stored++
		}
	}

	if stored > 0 {
		m.logger.Info("memories extracted",
			zap.String("session_id", sessionID),
			zap.Int("stored", stored))
	}
	return nil
}

// Remember 带去重的记忆写入。
// 完全相同（忽略大小写与首尾空白）直接丢弃；互为子串视为近重复，
// 提升既有记忆的重要性而不是插入新行。返回是否真正插入了新记忆。
func (m *Manager) Remember(ctx context.Context, sessionID, content string, typ types.MemoryType, importance float64) (bool, error) {
	if !typ.Valid() {
		return false, types.NewError(types.ErrValidation, fmt.Sprintf("unknown memory type %q", typ))
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return false, types.NewError(types.ErrValidation, "empty memory content")
	}
	importance = types.ClampImportance(importance)

	existing, err := m.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("list memories: %w", err)
	}

	normalized := strings.ToLower(content)
	for _, e := range existing {
		existingNorm := strings.ToLower(strings.TrimSpace(e.Content))
		if existingNorm == normalized {
			metrics.MemoriesDeduplicated.Inc()
			return false, nil
		}
		if strings.Contains(existingNorm, normalized) || strings.Contains(normalized, existingNorm) {
			bumped := types.ClampImportance(e.Importance + m.cfg.ImportanceBump)
			if err := m.repo.UpdateImportance(ctx, e.ID, bumped); err != nil {
				return false, fmt.Errorf("bump importance: %w", err)
			}
			metrics.MemoriesDeduplicated.Inc()
			m.logger.Debug("near-duplicate memory merged",
				zap.String("memory_id", e.ID),
				zap.Float64("importance", bumped))
			return false, nil
		}
	}

	now := time.Now()
	err = m.repo.Insert(ctx, types.Memory{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Content:        content,
		Type:           typ,
		Importance:     importance,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("insert memory: %w", err)
	}
	metrics.MemoriesExtracted.Inc()

	if err := m.prune(ctx, sessionID); err != nil {
		m.logger.Warn("memory pruning failed", zap.Error(err))
	}
	return true, nil
}

// prune 超限时删除重要性最低的记忆直到回到上限
func (m *Manager) prune(ctx context.Context, sessionID string) error {
	if m.cfg.MaxPerSession <= 0 {
		return nil
	}

	memories, err := m.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	overflow := len(memories) - m.cfg.MaxPerSession
	if overflow <= 0 {
		return nil
	}

	// 重要性最低优先淘汰，同分淘汰更旧的
	sort.Slice(memories, func(i, j int) bool {
		if memories[i].Importance != memories[j].Importance {
			return memories[i].Importance < memories[j].Importance
		}
		return memories[i].CreatedAt.Before(memories[j].CreatedAt)
	})

	ids := make([]string, overflow)
	for i := 0; i < overflow; i++ {
		ids[i] = memories[i].ID
	}

	m.logger.Info("pruning memories over session limit",
		zap.String("session_id", sessionID),
		zap.Int("pruned", overflow))
	return m.repo.DeleteByID(ctx, ids)
}

// Retrieve 返回重要性最高的 n 条记忆并刷新其访问时间
func (m *Manager) Retrieve(ctx context.Context, sessionID string, n int) ([]types.Memory, error) {
	if n <= 0 {
		n = m.cfg.RetrievalTopN
	}

	memories, err := m.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	sort.Slice(memories, func(i, j int) bool {
		if memories[i].Importance != memories[j].Importance {
			return memories[i].Importance > memories[j].Importance
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	if n < len(memories) {
		memories = memories[:n]
	}

	now := time.Now()
	for _, mem := range memories {
		if err := m.repo.Touch(ctx, mem.ID, now); err != nil {
			m.logger.Warn("touch memory failed", zap.String("memory_id", mem.ID), zap.Error(err))
		}
	}
	return memories, nil
}

// ContextString 把记忆渲染为送入提示的上下文块，
// 每行形如 "- [FACT] content (importance: 0.8)"。
func ContextString(memories []types.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	for i, m := range memories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s] %s (importance: %.1f)",
			strings.ToUpper(string(m.Type)), m.Content, m.Importance)
	}
	return b.String()
}

// Close 关闭抽取工作池
func (m *Manager) Close() {
	m.workers.Close()
}
