package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

func TestExtractor_ParsesCandidates(t *testing.T) {
	fc := &scriptedCompleter{response: `[
		{"type": "fact", "content": "Office moves in June", "importance": 0.7},
		{"type": "insight", "content": "User is planning a migration", "importance": 0.4}
	]`}
	e := NewExtractor(fc, zap.NewNop())

	got := e.Extract(context.Background(), "u", "a")
	require.Len(t, got, 2)
	assert.Equal(t, types.MemoryFact, got[0].Type)
	assert.Equal(t, "Office moves in June", got[0].Content)
	assert.InDelta(t, 0.7, got[0].Importance, 1e-9)
}

func TestExtractor_StripsCodeFenceAndProse(t *testing.T) {
	fc := &scriptedCompleter{response: "Here you go:\n```json\n[{\"type\": \"fact\", \"content\": \"x\", \"importance\": 0.5}]\n```"}
	e := NewExtractor(fc, zap.NewNop())

	got := e.Extract(context.Background(), "u", "a")
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Content)
}

func TestExtractor_MalformedYieldsZero(t *testing.T) {
	e := NewExtractor(&scriptedCompleter{response: "I could not find any memories"}, zap.NewNop())
	assert.Empty(t, e.Extract(context.Background(), "u", "a"))
}

func TestExtractor_InvalidTypeRejected(t *testing.T) {
	fc := &scriptedCompleter{response: `[
		{"type": "opinion", "content": "dropped", "importance": 0.9},
		{"type": "preference", "content": "kept", "importance": 0.9}
	]`}
	e := NewExtractor(fc, zap.NewNop())

	got := e.Extract(context.Background(), "u", "a")
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Content)
}

func TestExtractor_ClampsImportance(t *testing.T) {
	fc := &scriptedCompleter{response: `[{"type": "fact", "content": "x", "importance": 3.5}]`}
	e := NewExtractor(fc, zap.NewNop())

	got := e.Extract(context.Background(), "u", "a")
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Importance)
}

func TestExtractor_EmptyArray(t *testing.T) {
	e := NewExtractor(&scriptedCompleter{response: "[]"}, zap.NewNop())
	assert.Empty(t, e.Extract(context.Background(), "u", "a"))
}
