package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

func historyForTest() []types.ChatMessage {
	return []types.ChatMessage{
		{Role: types.RoleUser, Content: "What storage engines does the product support?"},
		{Role: types.RoleAssistant, Content: "It supports PostgreSQL and SQLite."},
	}
}

func reformulatorForTest(completer *scriptedCompleter) *Reformulator {
	return NewReformulator(completer, config.DefaultReformulationConfig(), zap.NewNop())
}

func TestReformulator_RewritesFollowUp(t *testing.T) {
	fc := &scriptedCompleter{response: "What are the limitations of SQLite support in the product?"}
	r := reformulatorForTest(fc)

	got := r.Reformulate(context.Background(), historyForTest(), "what about the second one?")
	assert.Equal(t, "What are the limitations of SQLite support in the product?", got)
	assert.Equal(t, 1, fc.calls)
}

func TestReformulator_NoHistorySkipsModel(t *testing.T) {
	fc := &scriptedCompleter{response: "unused"}
	r := reformulatorForTest(fc)

	got := r.Reformulate(context.Background(), nil, "original query")
	assert.Equal(t, "original query", got)
	assert.Zero(t, fc.calls)
}

func TestReformulator_FallsBackOnFailure(t *testing.T) {
	fc := &scriptedCompleter{err: errors.New("model down")}
	r := reformulatorForTest(fc)

	got := r.Reformulate(context.Background(), historyForTest(), "what about the second one?")
	assert.Equal(t, "what about the second one?", got)
}

func TestReformulator_FallsBackOnEmptyOutput(t *testing.T) {
	fc := &scriptedCompleter{response: "  \n"}
	r := reformulatorForTest(fc)

	got := r.Reformulate(context.Background(), historyForTest(), "original")
	assert.Equal(t, "original", got)
}

func TestReformulator_BoundsRewrittenLength(t *testing.T) {
	fc := &scriptedCompleter{response: strings.Repeat("long ", 200)}
	r := reformulatorForTest(fc)

	got := r.Reformulate(context.Background(), historyForTest(), "q")
	assert.LessOrEqual(t, len([]rune(got)), 500)
}

func TestReformulator_WindowLimitsHistory(t *testing.T) {
	var history []types.ChatMessage
	for i := 0; i < 30; i++ {
		history = append(history, types.ChatMessage{Role: types.RoleUser, Content: "old turn"})
	}
	history = append(history, types.ChatMessage{Role: types.RoleUser, Content: "MARKER latest turn"})

	var captured string
	fc := &capturingCompleter{response: "rewritten"}
	r := NewReformulator(fc, config.ReformulationConfig{HistoryWindow: 2, MaxLength: 500}, zap.NewNop())

	r.Reformulate(context.Background(), history, "q")
	captured = fc.prompt

	assert.Contains(t, captured, "MARKER")
	// 窗口 2 轮 = 4 条，更早的不进提示
	assert.Equal(t, 3, strings.Count(captured, "old turn"))
}

type capturingCompleter struct {
	response string
	prompt   string
}

func (c *capturingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.response, nil
}
