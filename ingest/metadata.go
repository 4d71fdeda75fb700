package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/BaSui01/docqa/config"
)

// UntitledDocument 无法推断标题时的占位标题
const UntitledDocument = "Untitled Document"

// 词频占比超过此值的词视为过频，给予降权
const overFrequentRatio = 0.10

// stopWords 关键词提取排除表（中英混合）
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "of": true, "for": true,
	"with": true, "by": true, "from": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "as": true,
	"can": true, "will": true, "would": true, "should": true, "has": true,
	"have": true, "had": true, "not": true, "no": true, "if": true,
	"的": true, "了": true, "和": true, "是": true, "在": true, "有": true,
	"与": true, "及": true, "或": true, "等": true, "对": true, "中": true,
}

// MetadataExtractor 文档元数据提取器
// 产出标题、有序去重的章节标题表、词频关键词以及用于嵌入的富化内容。
type MetadataExtractor struct {
	cfg config.ChunkingConfig
}

// NewMetadataExtractor 创建元数据提取器
func NewMetadataExtractor(cfg config.ChunkingConfig) *MetadataExtractor {
	return &MetadataExtractor{cfg: cfg}
}

// ExtractTitle 推断文档标题。
// 依次尝试：Markdown/下划线/编号标题、首个短行、清洗后的文件名、固定占位。
func (m *MetadataExtractor) ExtractTitle(text, fileName string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if h := detectHeading(trimmed); h != nil {
			return h.title
		}
		if i+1 < len(lines) {
			if h := detectUnderlineHeading(line, lines[i+1]); h != nil {
				return h.title
			}
		}
		// 首个非空行足够短也可作标题
		if len([]rune(trimmed)) <= 60 {
			return trimmed
		}
		break
	}

	if fileName != "" {
		base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
		base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
		base = strings.TrimSpace(base)
		if base != "" {
			return base
		}
	}
	return UntitledDocument
}

// ExtractHeadings 提取有序去重的章节标题表
func (m *MetadataExtractor) ExtractHeadings(text string) []string {
	lines := strings.Split(text, "\n")
	seen := make(map[string]bool)
	var headings []string

	add := func(title string) {
		key := strings.ToLower(title)
		if !seen[key] {
			seen[key] = true
			headings = append(headings, title)
		}
	}

	for i := 0; i < len(lines); i++ {
		if h := detectHeading(lines[i]); h != nil {
			add(h.title)
			continue
		}
		if i+1 < len(lines) {
			if h := detectUnderlineHeading(lines[i], lines[i+1]); h != nil {
				add(h.title)
				i++
			}
		}
	}
	return headings
}

// ExtractKeywords 词频关键词提取。
// 长词加分，占比超过 10% 的过频词降权，Unicode 感知保证多字节词按整词统计。
func (m *MetadataExtractor) ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		max = m.cfg.MaxKeywords
	}
	if max <= 0 || text == "" {
		return nil
	}

	words := splitWords(strings.ToLower(text))
	if len(words) == 0 {
		return nil
	}

	freq := make(map[string]int)
	total := 0
	for _, w := range words {
		if stopWords[w] || len([]rune(w)) < 2 {
			continue
		}
		freq[w]++
		total++
	}
	if total == 0 {
		return nil
	}

	type scored struct {
		word  string
		score float64
	}
	candidates := make([]scored, 0, len(freq))
	for w, f := range freq {
		score := float64(f)
		// 长词更可能是领域术语
		score *= 1.0 + float64(len([]rune(w)))*0.1
		// 过频词多半是模板噪音
		if float64(f)/float64(total) > overFrequentRatio {
			score *= 0.3
		}
		candidates = append(candidates, scored{word: w, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].word < candidates[j].word
	})

	if max > len(candidates) {
		max = len(candidates)
	}
	keywords := make([]string, max)
	for i := 0; i < max; i++ {
		keywords[i] = candidates[i].word
	}
	return keywords
}

// EnrichContent 生成用于嵌入/索引的富化内容。
// 在原文前缀 [Document: …] [Section: …] [Keywords: …] 标签，空值省略；
// 富化内容从不展示给最终用户。
func (m *MetadataExtractor) EnrichContent(content, documentTitle, sectionPath string, keywords []string) string {
	var tags []string
	if documentTitle != "" && documentTitle != UntitledDocument {
		tags = append(tags, fmt.Sprintf("[Document: %s]", documentTitle))
	}
	if sectionPath != "" {
		tags = append(tags, fmt.Sprintf("[Section: %s]", sectionPath))
	}
	if len(keywords) > 0 {
		tags = append(tags, fmt.Sprintf("[Keywords: %s]", strings.Join(keywords, ", ")))
	}
	if len(tags) == 0 {
		return content
	}
	return strings.Join(tags, " ") + "\n" + content
}

// splitWords Unicode 感知分词：字母数字连续段为一个词
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
