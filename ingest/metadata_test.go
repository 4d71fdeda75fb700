package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docqa/config"
)

func extractorForTest() *MetadataExtractor {
	return NewMetadataExtractor(config.ChunkingConfig{MaxKeywords: 5})
}

func TestExtractTitle_MarkdownHeading(t *testing.T) {
	m := extractorForTest()
	assert.Equal(t, "Deployment Guide", m.ExtractTitle("# Deployment Guide\nbody", "x.md"))
}

func TestExtractTitle_UnderlineHeading(t *testing.T) {
	m := extractorForTest()
	assert.Equal(t, "Release Notes", m.ExtractTitle("Release Notes\n=============\nbody", "x.md"))
}

func TestExtractTitle_FirstShortLine(t *testing.T) {
	m := extractorForTest()
	assert.Equal(t, "Quarterly planning memo", m.ExtractTitle("Quarterly planning memo\nlong body follows here", ""))
}

func TestExtractTitle_FallsBackToFileName(t *testing.T) {
	m := extractorForTest()
	long := strings.Repeat("x", 100) + "\nmore"
	assert.Equal(t, "annual report 2025", m.ExtractTitle(long, "/tmp/annual_report-2025.pdf"))
}

func TestExtractTitle_Placeholder(t *testing.T) {
	m := extractorForTest()
	assert.Equal(t, UntitledDocument, m.ExtractTitle("", ""))
}

func TestExtractHeadings_OrderedAndDeduplicated(t *testing.T) {
	m := extractorForTest()
	text := "# Setup\nbody\n# Usage\nbody\n# setup\nbody\nOVERVIEW\nbody\n"

	headings := m.ExtractHeadings(text)
	assert.Equal(t, []string{"Setup", "Usage", "OVERVIEW"}, headings)
}

func TestExtractKeywords_FrequencyWithLengthBonus(t *testing.T) {
	m := extractorForTest()
	text := strings.Repeat("kubernetes cluster deployment ", 5) + "the the the a a an"

	keywords := m.ExtractKeywords(text, 3)
	require.Len(t, keywords, 3)
	assert.Contains(t, keywords, "kubernetes")
	assert.Contains(t, keywords, "deployment")
	for _, k := range keywords {
		assert.False(t, stopWords[k])
	}
	// 同频词中更长的得分更高，最短的 cluster 垫底
	assert.Equal(t, "cluster", keywords[2])
}

func TestExtractKeywords_UnicodeWholeWords(t *testing.T) {
	m := extractorForTest()
	text := strings.Repeat("向量检索 混合排序 ", 4)

	keywords := m.ExtractKeywords(text, 2)
	require.Len(t, keywords, 2)
	assert.Contains(t, keywords, "向量检索")
	assert.Contains(t, keywords, "混合排序")
}

func TestExtractKeywords_Empty(t *testing.T) {
	m := extractorForTest()
	assert.Empty(t, m.ExtractKeywords("", 5))
	assert.Empty(t, m.ExtractKeywords("the a an of", 5))
}

func TestEnrichContent_AllTags(t *testing.T) {
	m := extractorForTest()
	got := m.EnrichContent("body text", "Guide", "Guide > Setup", []string{"install", "config"})
	assert.Equal(t, "[Document: Guide] [Section: Guide > Setup] [Keywords: install, config]\nbody text", got)
}

func TestEnrichContent_OmitsEmptyTags(t *testing.T) {
	m := extractorForTest()

	got := m.EnrichContent("body", "", "", nil)
	assert.Equal(t, "body", got)

	got = m.EnrichContent("body", "Guide", "", nil)
	assert.Equal(t, "[Document: Guide]\nbody", got)

	got = m.EnrichContent("body", UntitledDocument, "", []string{"k"})
	assert.Equal(t, "[Keywords: k]\nbody", got)
}
