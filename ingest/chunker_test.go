package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/types"
)

func chunkerForTest(chunkSize, overlap int) *Chunker {
	return NewChunker(config.ChunkingConfig{
		ChunkSize:        chunkSize,
		ChunkOverlap:     overlap,
		TableCharCeiling: 8000,
	}, nil, zap.NewNop())
}

func TestChunker_SmallSectionSingleChunk(t *testing.T) {
	c := chunkerForTest(512, 50)
	doc := types.ParsedDocument{
		Text: "short content",
		Sections: []types.DocumentSection{
			{Title: "Intro", Level: 1, Breadcrumb: []string{"Intro"}, Content: "short content"},
		},
	}

	drafts := c.Chunk(doc)
	require.Len(t, drafts, 1)
	assert.Equal(t, "short content", drafts[0].content)
	assert.Equal(t, []string{"Intro"}, drafts[0].breadcrumb)
}

func TestChunker_OversizedSectionSplitsWithOverlap(t *testing.T) {
	c := chunkerForTest(50, 10)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("this paragraph describes deployment topology in detail.\n\n")
	}
	content := sb.String()

	doc := types.ParsedDocument{
		Text: content,
		Sections: []types.DocumentSection{
			{Title: "Deploy", Level: 1, Breadcrumb: []string{"Deploy"}, Content: content},
		},
	}

	drafts := c.Chunk(doc)
	require.Greater(t, len(drafts), 1)

	// raw 片段拼接还原原文
	var rebuilt strings.Builder
	for _, d := range drafts {
		rebuilt.WriteString(d.raw)
	}
	assert.Equal(t, content, rebuilt.String())

	// 除首块外每块都以上一块的尾部重叠开头
	for i := 1; i < len(drafts); i++ {
		overlap := c.trailingOverlap(drafts[i-1].raw)
		require.NotEmpty(t, overlap)
		assert.True(t, strings.HasPrefix(drafts[i].content, overlap))
		assert.Equal(t, overlap+drafts[i].raw, drafts[i].content)
	}
}

func TestChunker_TableNeverSplitMidRow(t *testing.T) {
	c := chunkerForTest(30, 5)

	var sb strings.Builder
	sb.WriteString("Preamble paragraph before the table, long enough to matter.\n\n")
	sb.WriteString("| name | value |\n|---|---|\n")
	for i := 0; i < 40; i++ {
		sb.WriteString("| row | data data data data |\n")
	}
	sb.WriteString("\nClosing paragraph after the table.\n")
	content := sb.String()

	doc := types.ParsedDocument{
		Text: content,
		Sections: []types.DocumentSection{
			{Title: "T", Level: 1, Breadcrumb: []string{"T"}, Content: content},
		},
	}

	drafts := c.Chunk(doc)
	require.NotEmpty(t, drafts)

	// 表格整体落在同一块：没有任何块以半行表格开头或结尾
	tableChunks := 0
	for _, d := range drafts {
		for _, line := range strings.Split(d.raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "|") {
				assert.True(t, strings.HasSuffix(trimmed, "|"), "table row split mid-row: %q", line)
			}
		}
		if strings.Contains(d.raw, "| row |") {
			tableChunks++
		}
	}
	assert.Equal(t, 1, tableChunks, "table rows spread across chunks")
}

func TestChunker_OversizedTableTruncatedAtRowBoundary(t *testing.T) {
	c := NewChunker(config.ChunkingConfig{
		ChunkSize:        50,
		ChunkOverlap:     5,
		TableCharCeiling: 200,
	}, nil, zap.NewNop())

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("| row | some cell data |\n")
	}

	doc := types.ParsedDocument{
		Text: sb.String(),
		Sections: []types.DocumentSection{
			{Title: "T", Level: 1, Breadcrumb: []string{"T"}, Content: sb.String()},
		},
	}

	drafts := c.Chunk(doc)
	require.Len(t, drafts, 1)
	assert.LessOrEqual(t, len(drafts[0].raw), 200)
	assert.True(t, strings.HasSuffix(drafts[0].raw, "|\n"))
}

func TestChunker_PreambleBeforeFirstHeadingIsKept(t *testing.T) {
	c := chunkerForTest(512, 50)
	text := "This preamble explains the scope of the agreement.\n\n# Terms\n\nSection body about terms."
	doc := types.ParsedDocument{
		DocumentID: "d1",
		Text:       text,
		Sections:   BuildSectionTree(text),
	}
	require.NotEmpty(t, doc.Sections)

	drafts := c.Chunk(doc)

	var preamble *chunkDraft
	var sawBody bool
	for i := range drafts {
		if strings.Contains(drafts[i].raw, "preamble explains the scope") {
			preamble = &drafts[i]
		}
		if strings.Contains(drafts[i].raw, "Section body about terms") {
			sawBody = true
		}
	}
	require.NotNil(t, preamble, "pre-heading text must survive chunking")
	assert.Empty(t, preamble.breadcrumb)
	assert.Equal(t, 0, preamble.offset)
	assert.True(t, sawBody)
}

func TestChunker_SectionlessSlidingWindow(t *testing.T) {
	c := chunkerForTest(40, 8)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("plain text without any headings keeps flowing here. ")
	}
	doc := types.ParsedDocument{Text: sb.String()}

	drafts := c.Chunk(doc)
	require.Greater(t, len(drafts), 1)
	for _, d := range drafts {
		assert.Empty(t, d.breadcrumb)
		assert.Empty(t, d.sectionTitle)
	}
}

func TestChunker_ReconstructionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chunkSize := rapid.IntRange(20, 100).Draw(t, "chunkSize")
		overlap := rapid.IntRange(0, 10).Draw(t, "overlap")
		c := chunkerForTest(chunkSize, overlap)

		paragraphs := rapid.SliceOfN(
			rapid.StringMatching(`[a-z]{2,10}( [a-z]{2,10}){0,30}\.`), 1, 12,
		).Draw(t, "paragraphs")
		content := strings.Join(paragraphs, "\n\n")

		doc := types.ParsedDocument{
			Text: content,
			Sections: []types.DocumentSection{
				{Title: "S", Level: 1, Breadcrumb: []string{"S"}, Content: content},
			},
		}
		drafts := c.Chunk(doc)

		var rebuilt strings.Builder
		for _, d := range drafts {
			rebuilt.WriteString(d.raw)
		}
		if rebuilt.String() != content {
			t.Fatalf("reconstruction mismatch:\nwant %q\ngot  %q", content, rebuilt.String())
		}

		for i := 1; i < len(drafts); i++ {
			want := c.trailingOverlap(drafts[i-1].raw) + drafts[i].raw
			if drafts[i].content != want {
				t.Fatalf("chunk %d overlap prefix wrong", i)
			}
		}
	})
}

func TestChunker_OffsetsTrackDocumentPosition(t *testing.T) {
	c := chunkerForTest(30, 5)

	content := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 10)
	doc := types.ParsedDocument{
		Text: content,
		Sections: []types.DocumentSection{
			{Title: "S", Level: 1, Breadcrumb: []string{"S"}, Content: content, StartOffset: 100},
		},
	}

	drafts := c.Chunk(doc)
	require.Greater(t, len(drafts), 1)

	assert.Equal(t, 100, drafts[0].offset)
	pos := 100
	for _, d := range drafts {
		assert.Equal(t, pos, d.offset)
		pos += len(d.raw)
	}
}
