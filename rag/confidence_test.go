package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

func scorerForTest() *ConfidenceScorer {
	return NewConfidenceScorer(config.ConfidenceConfig{
		MinTopScore: 0.4,
		MaxTopGap:   0.3,
	}, zap.NewNop())
}

func TestConfidenceScorer_Sufficient(t *testing.T) {
	level := scorerForTest().Score([]types.Chunk{
		{RelevanceScore: 0.8},
		{RelevanceScore: 0.7},
		{RelevanceScore: 0.6},
	})
	assert.Equal(t, ConfidenceSufficient, level)
}

func TestConfidenceScorer_InsufficientLowTop(t *testing.T) {
	level := scorerForTest().Score([]types.Chunk{
		{RelevanceScore: 0.2},
		{RelevanceScore: 0.1},
	})
	assert.Equal(t, ConfidenceInsufficient, level)
}

func TestConfidenceScorer_WeakOnLargeGap(t *testing.T) {
	// 只有单点支撑：头部分高但次席断崖
	level := scorerForTest().Score([]types.Chunk{
		{RelevanceScore: 0.9},
		{RelevanceScore: 0.1},
	})
	assert.Equal(t, ConfidenceWeak, level)
}

func TestConfidenceScorer_EmptyIsInsufficient(t *testing.T) {
	assert.Equal(t, ConfidenceInsufficient, scorerForTest().Score(nil))
}

func TestConfidenceScorer_SingleHighChunk(t *testing.T) {
	level := scorerForTest().Score([]types.Chunk{{RelevanceScore: 0.9}})
	assert.Equal(t, ConfidenceSufficient, level)
}

func contextForVerify() []types.Chunk {
	return []types.Chunk{
		{Content: "The invoice total for March was 4200 euros, payable within thirty days."},
		{Content: "Late payments accrue interest at two percent per month."},
	}
}

func TestAnswerVerifier_GroundedAnswer(t *testing.T) {
	v := NewAnswerVerifier(zap.NewNop())

	res := v.Verify("The invoice total for March was 4200 euros.", contextForVerify())
	assert.True(t, res.Grounded)
	assert.InDelta(t, 1.0, res.GroundedRatio, 1e-9)
	assert.Empty(t, res.UnsupportedSentences)
}

func TestAnswerVerifier_FlagsUnsupported(t *testing.T) {
	v := NewAnswerVerifier(zap.NewNop())

	res := v.Verify(
		"The invoice total for March was 4200 euros. Refunds require approval from the regional finance director.",
		contextForVerify(),
	)
	assert.False(t, res.Grounded)
	assert.Len(t, res.UnsupportedSentences, 1)
	assert.Contains(t, res.UnsupportedSentences[0], "Refunds")
	assert.InDelta(t, 0.5, res.GroundedRatio, 1e-9)
}

func TestAnswerVerifier_EmptyAnswer(t *testing.T) {
	v := NewAnswerVerifier(zap.NewNop())
	res := v.Verify("", contextForVerify())
	assert.True(t, res.Grounded)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First point. Second point! Third?")
	assert.Equal(t, []string{"First point.", "Second point!", "Third?"}, got)

	got = splitSentences("交付日期是三月十五日。请提前确认。")
	assert.Len(t, got, 2)
}
