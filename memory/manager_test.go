package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

// memRepo 测试用内存仓库
type memRepo struct {
	mu       sync.Mutex
	memories map[string]types.Memory
}

func newMemRepo() *memRepo {
	return &memRepo{memories: make(map[string]types.Memory)}
}

func (r *memRepo) ListBySession(ctx context.Context, sessionID string) ([]types.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Memory
	for _, m := range r.memories {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) Insert(ctx context.Context, m types.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memories[m.ID] = m
	return nil
}

func (r *memRepo) UpdateImportance(ctx context.Context, id string, importance float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memories[id]
	if !ok {
		return types.NotFoundError("memory", id)
	}
	m.Importance = importance
	r.memories[id] = m
	return nil
}

func (r *memRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memories[id]
	if !ok {
		return types.NotFoundError("memory", id)
	}
	m.LastAccessedAt = at
	r.memories[id] = m
	return nil
}

func (r *memRepo) DeleteByID(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.memories, id)
	}
	return nil
}

func managerForTest(repo Repository, completer *scriptedCompleter, cfg config.MemoryConfig) *Manager {
	m := NewManager(repo, NewExtractor(completer, zap.NewNop()), cfg,
		config.WorkersConfig{MemoryWorkers: 1, MemoryQueueSize: 8}, zap.NewNop())
	return m
}

type scriptedCompleter struct {
	response string
	err      error
}

func (f *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestManager_DeduplicatesByContainment(t *testing.T) {
	repo := newMemRepo()
	m := managerForTest(repo, &scriptedCompleter{}, config.DefaultMemoryConfig())
	defer m.Close()
	ctx := context.Background()

	inserted, err := m.Remember(ctx, "s1", "Deadline is March 15", types.MemoryFact, 0.6)
	require.NoError(t, err)
	assert.True(t, inserted)

	// 包含关系视为近重复：不插入，提升既有记忆的重要性
	inserted, err = m.Remember(ctx, "s1", "The project deadline is March 15", types.MemoryFact, 0.5)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, _ := repo.ListBySession(ctx, "s1")
	require.Len(t, stored, 1)
	assert.InDelta(t, 0.7, stored[0].Importance, 1e-9)
}

func TestManager_ExactDuplicateDropped(t *testing.T) {
	repo := newMemRepo()
	m := managerForTest(repo, &scriptedCompleter{}, config.DefaultMemoryConfig())
	defer m.Close()
	ctx := context.Background()

	_, err := m.Remember(ctx, "s1", "Prefers dark mode", types.MemoryPreference, 0.5)
	require.NoError(t, err)

	inserted, err := m.Remember(ctx, "s1", "  prefers DARK mode ", types.MemoryPreference, 0.9)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, _ := repo.ListBySession(ctx, "s1")
	require.Len(t, stored, 1)
	assert.InDelta(t, 0.5, stored[0].Importance, 1e-9) // 完全重复不提升
}

func TestManager_ImportanceBumpClamped(t *testing.T) {
	repo := newMemRepo()
	m := managerForTest(repo, &scriptedCompleter{}, config.DefaultMemoryConfig())
	defer m.Close()
	ctx := context.Background()

	_, err := m.Remember(ctx, "s1", "Deadline is March 15", types.MemoryFact, 0.95)
	require.NoError(t, err)
	_, err = m.Remember(ctx, "s1", "deadline is march 15 for the launch", types.MemoryFact, 0.5)
	require.NoError(t, err)

	stored, _ := repo.ListBySession(ctx, "s1")
	require.Len(t, stored, 1)
	assert.InDelta(t, 1.0, stored[0].Importance, 1e-9)
}

func TestManager_RejectsInvalidType(t *testing.T) {
	repo := newMemRepo()
	m := managerForTest(repo, &scriptedCompleter{}, config.DefaultMemoryConfig())
	defer m.Close()

	_, err := m.Remember(context.Background(), "s1", "x", types.MemoryType("opinion"), 0.5)
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.CodeOf(err))
}

func TestManager_PrunesLowestImportance(t *testing.T) {
	repo := newMemRepo()
	cfg := config.DefaultMemoryConfig()
	cfg.MaxPerSession = 3
	m := managerForTest(repo, &scriptedCompleter{}, cfg)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := m.Remember(ctx, "s1",
			fmt.Sprintf("distinct fact number %d", i), types.MemoryFact, 0.2+0.2*float64(i))
		require.NoError(t, err)
	}

	stored, _ := repo.ListBySession(ctx, "s1")
	require.Len(t, stored, 3)
	for _, mem := range stored {
		assert.NotEqual(t, "distinct fact number 0", mem.Content) // 最低重要性被剪掉
	}
}

func TestManager_RetrieveTopNByImportanceAndTouch(t *testing.T) {
	repo := newMemRepo()
	m := managerForTest(repo, &scriptedCompleter{}, config.DefaultMemoryConfig())
	defer m.Close()
	ctx := context.Background()

	_, _ = m.Remember(ctx, "s1", "low importance note", types.MemoryInsight, 0.3)
	_, _ = m.Remember(ctx, "s1", "critical launch deadline", types.MemoryFact, 0.9)
	_, _ = m.Remember(ctx, "s1", "medium preference detail", types.MemoryPreference, 0.6)

	before := time.Now()
	got, err := m.Retrieve(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "critical launch deadline", got[0].Content)
	assert.Equal(t, "medium preference detail", got[1].Content)

	stored, _ := repo.ListBySession(ctx, "s1")
	for _, mem := range stored {
		if mem.Content != "low importance note" {
			assert.False(t, mem.LastAccessedAt.Before(before))
		}
	}
}

func TestManager_ProcessExchange(t *testing.T) {
	repo := newMemRepo()
	fc := &scriptedCompleter{response: `[
		{"type": "fact", "content": "Deadline is March 15", "importance": 0.8},
		{"type": "preference", "content": "Wants weekly status emails", "importance": 0.5},
		{"type": "fact", "content": "Below threshold detail", "importance": 0.1}
	]`}
	m := managerForTest(repo, fc, config.DefaultMemoryConfig())
	defer m.Close()

	err := m.ProcessExchange(context.Background(), "s1", "when is it due?", "March 15.")
	require.NoError(t, err)

	stored, _ := repo.ListBySession(context.Background(), "s1")
	assert.Len(t, stored, 2) // 低于抽取阈值的候选被丢弃
}

func TestManager_SubmitExchangeAsync(t *testing.T) {
	repo := newMemRepo()
	fc := &scriptedCompleter{response: `[{"type": "fact", "content": "async fact", "importance": 0.7}]`}
	m := managerForTest(repo, fc, config.DefaultMemoryConfig())
	defer m.Close()

	require.NoError(t, m.SubmitExchange(context.Background(), "s1", "u", "a"))

	require.Eventually(t, func() bool {
		stored, _ := repo.ListBySession(context.Background(), "s1")
		return len(stored) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_ExtractionFailureYieldsNothing(t *testing.T) {
	repo := newMemRepo()
	m := managerForTest(repo, &scriptedCompleter{err: errors.New("model down")}, config.DefaultMemoryConfig())
	defer m.Close()

	require.NoError(t, m.ProcessExchange(context.Background(), "s1", "u", "a"))
	stored, _ := repo.ListBySession(context.Background(), "s1")
	assert.Empty(t, stored)
}

func TestContextString(t *testing.T) {
	got := ContextString([]types.Memory{
		{Type: types.MemoryFact, Content: "Deadline is March 15", Importance: 0.8},
		{Type: types.MemoryPreference, Content: "Wants concise answers", Importance: 0.5},
	})
	assert.Equal(t,
		"- [FACT] Deadline is March 15 (importance: 0.8)\n- [PREFERENCE] Wants concise answers (importance: 0.5)",
		got)

	assert.Empty(t, ContextString(nil))
}
