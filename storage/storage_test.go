package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	return db
}

func TestSessionRepo_CRUDAndNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Session{ID: "s1", Title: "project chat"}))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "project chat", got.Title)

	_, err = repo.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestSessionRepo_DeleteCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sessions := NewSessionRepo(db)
	documents := NewDocumentRepo(db)
	messages := NewMessageRepo(db)
	memories := NewMemoryRepo(db)

	require.NoError(t, sessions.Create(ctx, Session{ID: "s1"}))
	require.NoError(t, sessions.Create(ctx, Session{ID: "s2"}))
	require.NoError(t, documents.Create(ctx, Document{ID: "d1", SessionID: "s1"}))
	require.NoError(t, documents.Create(ctx, Document{ID: "d2", SessionID: "s2"}))
	require.NoError(t, messages.Append(ctx, types.ChatMessage{
		ID: "m1", SessionID: "s1", Role: types.RoleUser, Content: "hi"}))
	require.NoError(t, memories.Insert(ctx, types.Memory{
		ID: "mem1", SessionID: "s1", Content: "fact", Type: types.MemoryFact, Importance: 0.5}))

	require.NoError(t, sessions.Delete(ctx, "s1"))

	_, err := sessions.Get(ctx, "s1")
	assert.True(t, types.IsNotFound(err))
	_, err = documents.Get(ctx, "d1")
	assert.True(t, types.IsNotFound(err))

	msgs, err := messages.ActiveMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	mems, err := memories.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, mems)

	// 其他会话不受影响
	_, err = documents.Get(ctx, "d2")
	assert.NoError(t, err)
}

func TestDocumentRepo_SessionScopedDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Document{ID: "d1", SessionID: "s1", FileName: "a.md"}))

	// 错误会话删不掉别人的文档
	err := repo.Delete(ctx, "s2", "d1")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))

	require.NoError(t, repo.Delete(ctx, "s1", "d1"))
}

func TestDocumentRepo_SetChunkCount(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Document{ID: "d1", SessionID: "s1"}))
	require.NoError(t, repo.SetChunkCount(ctx, "d1", 7))

	got, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.ChunkCount)

	err = repo.SetChunkCount(ctx, "missing", 1)
	assert.True(t, types.IsNotFound(err))
}

func TestMessageRepo_CompactionFlow(t *testing.T) {
	db := openTestDB(t)
	repo := NewMessageRepo(db)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Append(ctx, types.ChatMessage{
			ID:        uuid.NewString(),
			SessionID: "s1",
			Role:      types.RoleUser,
			Content:   content,
		}))
	}

	active, err := repo.ActiveMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "first", active[0].Content)

	require.NoError(t, repo.MarkCompacted(ctx, "s1", []string{active[0].ID, active[1].ID}))
	require.NoError(t, repo.AppendSummary(ctx, types.ChatSummary{
		ID:                  uuid.NewString(),
		SessionID:           "s1",
		SummaryContent:      "first and second discussed",
		MessageCountCovered: 2,
	}))

	active, err = repo.ActiveMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "third", active[0].Content)

	summaries, err := repo.Summaries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].MessageCountCovered)
}

func TestMemoryRepo_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewMemoryRepo(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	require.NoError(t, repo.Insert(ctx, types.Memory{
		ID:             "mem1",
		SessionID:      "s1",
		Content:        "Deadline is March 15",
		Type:           types.MemoryFact,
		Importance:     0.8,
		LastAccessedAt: now,
	}))

	require.NoError(t, repo.UpdateImportance(ctx, "mem1", 0.9))
	require.NoError(t, repo.Touch(ctx, "mem1", now.Add(time.Hour)))

	mems, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, types.MemoryFact, mems[0].Type)
	assert.InDelta(t, 0.9, mems[0].Importance, 1e-9)

	assert.True(t, types.IsNotFound(repo.UpdateImportance(ctx, "missing", 0.1)))

	require.NoError(t, repo.DeleteByID(ctx, []string{"mem1"}))
	mems, err = repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, mems)
}
