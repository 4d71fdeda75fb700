package ingest

import (
	"strings"
	"unicode"

	"github.com/BaSui01/docqa/types"
)

// 标题识别的最小长度（ALL-CAPS 行太短则不认为是标题）
const minHeadingLen = 3

// headingInfo 行级标题识别结果
type headingInfo struct {
	title string
	level int
}

// sectionNode 构建期的指针树，收尾时整体转为值树输出
type sectionNode struct {
	title       string
	level       int
	breadcrumb  []string
	content     strings.Builder
	children    []*sectionNode
	startOffset int
	endOffset   int
}

// BuildSectionTree 从纯文本解析章节树。
// 识别四类标题：Markdown #、下划线式（=== / ---）、编号式（1.2 标题）、
// 全大写短行。无任何标题时返回 nil，调用方退化为无章节滑窗分块。
func BuildSectionTree(text string) []types.DocumentSection {
	lines := strings.Split(text, "\n")

	var roots []*sectionNode
	var stack []*sectionNode
	offset := 0

	closeTo := func(level int) {
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack[len(stack)-1].endOffset = offset
			stack = stack[:len(stack)-1]
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineLen := len(line) + 1 // 含换行

		var h *headingInfo
		consumed := 1
		if hh := detectHeading(line); hh != nil {
			h = hh
		} else if i+1 < len(lines) {
			if hh := detectUnderlineHeading(line, lines[i+1]); hh != nil {
				h = hh
				consumed = 2
			}
		}

		if h != nil {
			closeTo(h.level)

			node := &sectionNode{
				title:       h.title,
				level:       h.level,
				startOffset: offset,
			}
			if len(stack) == 0 {
				node.breadcrumb = []string{h.title}
				roots = append(roots, node)
			} else {
				parent := stack[len(stack)-1]
				node.breadcrumb = append(append([]string{}, parent.breadcrumb...), h.title)
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)

			offset += lineLen
			if consumed == 2 {
				offset += len(lines[i+1]) + 1
				i++
			}
			continue
		}

		if len(stack) > 0 {
			top := stack[len(stack)-1]
			top.content.WriteString(line)
			top.content.WriteString("\n")
		}
		offset += lineLen
	}

	closeTo(0)

	if len(roots) == 0 {
		return nil
	}
	return freezeNodes(roots)
}

// freezeNodes 把指针树转为对外的值树
func freezeNodes(nodes []*sectionNode) []types.DocumentSection {
	out := make([]types.DocumentSection, len(nodes))
	for i, n := range nodes {
		out[i] = types.DocumentSection{
			Title:       n.title,
			Level:       n.level,
			Breadcrumb:  n.breadcrumb,
			Content:     strings.TrimRight(n.content.String(), "\n"),
			Children:    freezeNodes(n.children),
			StartOffset: n.startOffset,
			EndOffset:   n.endOffset,
		}
	}
	return out
}

// detectHeading 识别单行标题（Markdown / 编号式 / 全大写）
func detectHeading(line string) *headingInfo {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	// Markdown: # 到 ######
	if strings.HasPrefix(trimmed, "#") {
		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		if level <= 6 && level < len(trimmed) && trimmed[level] == ' ' {
			title := strings.TrimSpace(trimmed[level:])
			if title != "" {
				return &headingInfo{title: title, level: level}
			}
		}
		return nil
	}

	// 编号式: "1. 标题" / "2.3 标题"，层级由点分段数决定
	if h := detectNumberedHeading(trimmed); h != nil {
		return h
	}

	// 全大写短行（长度达标、不含小写字母、以字母开头）
	if len(trimmed) >= minHeadingLen && len(trimmed) <= 80 && isAllCapsHeading(trimmed) {
		return &headingInfo{title: trimmed, level: 1}
	}

	return nil
}

// detectNumberedHeading 识别 "1. 标题" / "1.2.3 标题" 形式。
// 编号后必须带点，避免把 "1998 was..." 这类普通句子当成标题。
func detectNumberedHeading(trimmed string) *headingInfo {
	i := 0
	segments := 0
	sawDot := false
	for i < len(trimmed) {
		start := i
		for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
			i++
		}
		if i == start {
			return nil
		}
		segments++
		if i < len(trimmed) && trimmed[i] == '.' {
			sawDot = true
			i++
			// "1. 标题" 点后直接是空格的情况
			if i < len(trimmed) && trimmed[i] == ' ' {
				break
			}
			continue
		}
		break
	}

	if segments == 0 || !sawDot || i >= len(trimmed) || trimmed[i] != ' ' {
		return nil
	}
	title := strings.TrimSpace(trimmed[i:])
	// 正文中的普通编号列表往往很长，标题通常较短
	if title == "" || len(title) > 80 || strings.HasSuffix(title, ".") {
		return nil
	}
	return &headingInfo{title: title, level: segments}
}

// detectUnderlineHeading 识别下划线式标题（下一行为 === 或 ---）
func detectUnderlineHeading(line, next string) *headingInfo {
	title := strings.TrimSpace(line)
	underline := strings.TrimSpace(next)
	if title == "" || len(underline) < 3 {
		return nil
	}
	if len(title) > 80 {
		return nil
	}

	if isRepeatOf(underline, '=') {
		return &headingInfo{title: title, level: 1}
	}
	if isRepeatOf(underline, '-') {
		return &headingInfo{title: title, level: 2}
	}
	return nil
}

func isRepeatOf(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			return false
		}
	}
	return len(s) > 0
}

// isAllCapsHeading 判断是否为全大写标题行
func isAllCapsHeading(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
			continue
		}
		if unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		return false
	}
	return hasUpper
}
