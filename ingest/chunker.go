package ingest

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// chunkDraft 分块中间产物，偏移量用于图片就近挂载
type chunkDraft struct {
	// content 含上一块尾部重叠的最终文本
	content string
	// raw 不含重叠的原始切片，连续拼接可还原章节内容
	raw string
	// sectionTitle 所属章节标题（无章节时为空）
	sectionTitle string
	breadcrumb   []string
	// offset 在整篇文档中的起始偏移
	offset int
}

// Chunker 层级分块器
// 章节内容超出 token 预算时逐级降解：表格边界 → 段落 → 句子 → 对半切分，
// 每级都保留尾部词重叠接入下一块。表格从不在行中间截断。
type Chunker struct {
	cfg    config.ChunkingConfig
	tok    llm.Tokenizer
	logger *zap.Logger
}

// NewChunker 创建分块器
func NewChunker(cfg config.ChunkingConfig, tok llm.Tokenizer, logger *zap.Logger) *Chunker {
	if tok == nil {
		tok = llm.NewEstimatorTokenizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{
		cfg:    cfg,
		tok:    tok,
		logger: logger.With(zap.String("component", "chunker")),
	}
}

// Chunk 深度优先遍历章节树产出分块草稿。
// 无章节文档整体走滑窗分块，面包屑为空。
func (c *Chunker) Chunk(doc types.ParsedDocument) []chunkDraft {
	if len(doc.Sections) == 0 {
		return c.chunkText(doc.Text, "", nil, 0)
	}

	var drafts []chunkDraft

	// 首个标题之前的引言不属于任何章节，按无章节路径分块（空面包屑）
	if start := doc.Sections[0].StartOffset; start > 0 && start <= len(doc.Text) {
		if pre := doc.Text[:start]; strings.TrimSpace(pre) != "" {
			drafts = c.chunkText(pre, "", nil, 0)
		}
	}

	var walk func(sections []types.DocumentSection)
	walk = func(sections []types.DocumentSection) {
		for _, s := range sections {
			if strings.TrimSpace(s.Content) != "" {
				drafts = append(drafts,
					c.chunkText(s.Content, s.Title, s.Breadcrumb, s.StartOffset)...)
			}
			walk(s.Children)
		}
	}
	walk(doc.Sections)

	c.logger.Debug("document chunked",
		zap.String("document_id", doc.DocumentID),
		zap.Int("chunks", len(drafts)))
	return drafts
}

// chunkText 对一段文本做预算内分块
func (c *Chunker) chunkText(text, sectionTitle string, breadcrumb []string, baseOffset int) []chunkDraft {
	if text == "" {
		return nil
	}

	pieces := c.pieces(text)
	groups := c.pack(pieces)

	drafts := make([]chunkDraft, 0, len(groups))
	offset := baseOffset
	for i, raw := range groups {
		content := raw
		if i > 0 {
			if overlap := c.trailingOverlap(groups[i-1]); overlap != "" {
				content = overlap + raw
			}
		}
		drafts = append(drafts, chunkDraft{
			content:      content,
			raw:          raw,
			sectionTitle: sectionTitle,
			breadcrumb:   breadcrumb,
			offset:       offset,
		})
		offset += len(raw)
	}
	return drafts
}

// pieces 把文本无损切为预算内片段，表格块保持完整
func (c *Chunker) pieces(text string) []string {
	var out []string
	for _, seg := range splitByTables(text) {
		if seg.isTable {
			t := seg.text
			if c.cfg.TableCharCeiling > 0 && len(t) > c.cfg.TableCharCeiling {
				// 单表超过硬上限才截断，且只截在行边界
				t = truncateAtRow(t, c.cfg.TableCharCeiling)
				c.logger.Warn("oversized table truncated",
					zap.Int("original_len", len(seg.text)),
					zap.Int("truncated_len", len(t)))
			}
			out = append(out, t)
			continue
		}
		out = append(out, c.splitPlain(seg.text, 0)...)
	}
	return out
}

// splitPlain 非表格文本逐级降解：段落 → 句子 → 对半切分
func (c *Chunker) splitPlain(text string, level int) []string {
	if text == "" {
		return nil
	}
	if c.tok.CountTokens(text) <= c.cfg.ChunkSize {
		return []string{text}
	}

	var parts []string
	switch level {
	case 0:
		parts = splitAfter(text, "\n\n")
	case 1:
		parts = splitSentencesLossless(text)
	default:
		return c.splitHalves(text)
	}

	if len(parts) <= 1 {
		return c.splitPlain(text, level+1)
	}

	var out []string
	for _, p := range parts {
		out = append(out, c.splitPlain(p, level+1)...)
	}
	return out
}

// splitHalves 在词边界附近对半切分，直到每半都进预算
func (c *Chunker) splitHalves(text string) []string {
	if c.tok.CountTokens(text) <= c.cfg.ChunkSize {
		return []string{text}
	}

	runes := []rune(text)
	if len(runes) < 2 {
		return []string{text}
	}
	mid := len(runes) / 2

	// 尽量落在空白处切
	for d := 0; d < mid/2; d++ {
		if runes[mid+d] == ' ' || runes[mid+d] == '\n' {
			mid = mid + d + 1
			break
		}
		if runes[mid-d] == ' ' || runes[mid-d] == '\n' {
			mid = mid - d + 1
			break
		}
	}

	left := string(runes[:mid])
	right := string(runes[mid:])
	return append(c.splitHalves(left), c.splitHalves(right)...)
}

// pack 把片段贪心打包进 token 预算
func (c *Chunker) pack(pieces []string) []string {
	var groups []string
	var cur strings.Builder
	curTokens := 0

	for _, p := range pieces {
		t := c.tok.CountTokens(p)
		if cur.Len() > 0 && curTokens+t > c.cfg.ChunkSize {
			groups = append(groups, cur.String())
			cur.Reset()
			curTokens = 0
		}
		cur.WriteString(p)
		curTokens += t
	}
	if cur.Len() > 0 {
		groups = append(groups, cur.String())
	}
	return groups
}

// trailingOverlap 取文本尾部、合计不超过重叠预算的词串
func (c *Chunker) trailingOverlap(text string) string {
	if c.cfg.ChunkOverlap <= 0 {
		return ""
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var tail []string
	tokens := 0
	for i := len(words) - 1; i >= 0; i-- {
		t := c.tok.CountTokens(words[i])
		if tokens+t > c.cfg.ChunkOverlap {
			break
		}
		tail = append([]string{words[i]}, tail...)
		tokens += t
	}
	if len(tail) == 0 {
		return ""
	}
	return strings.Join(tail, " ") + " "
}

// tableSegment 表格/非表格分段
type tableSegment struct {
	text    string
	isTable bool
}

// splitByTables 无损切分出 Markdown 表格块（连续的 | 行）
func splitByTables(text string) []tableSegment {
	lines := strings.SplitAfter(text, "\n")
	var segments []tableSegment
	var cur strings.Builder
	curIsTable := false

	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, tableSegment{text: cur.String(), isTable: curIsTable})
			cur.Reset()
		}
	}

	for _, line := range lines {
		isTableRow := strings.HasPrefix(strings.TrimSpace(line), "|")
		if isTableRow != curIsTable {
			flush()
			curIsTable = isTableRow
		}
		cur.WriteString(line)
	}
	flush()
	return segments
}

// truncateAtRow 在行边界处截断表格
func truncateAtRow(table string, ceiling int) string {
	if len(table) <= ceiling {
		return table
	}
	cut := strings.LastIndex(table[:ceiling], "\n")
	if cut <= 0 {
		return table[:ceiling]
	}
	return table[:cut+1]
}

// splitAfter 切分并把分隔符留在前一段（无损）
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentencesLossless 按句末标点无损切句，标点与后随空白留在前段
func splitSentencesLossless(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？' {
			// 吸收句末之后的空白
			for i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
				i++
				cur.WriteRune(runes[i])
			}
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
