package rag

import (
	"fmt"
	"strings"

	"github.com/BaSui01/docqa/types"
)

// Citation 可供 UI 展示的引用元数据
type Citation struct {
	ChunkID           string   `json:"chunk_id"`
	DocumentID        string   `json:"document_id"`
	DocumentTitle     string   `json:"document_title,omitempty"`
	SectionBreadcrumb []string `json:"section_breadcrumb,omitempty"`
	AssociatedImages  []string `json:"associated_images,omitempty"`
	RelevanceScore    float64  `json:"relevance_score"`
}

// AssembledContext 送入生成模型的上下文与随附引用
type AssembledContext struct {
	// Text 编号段落拼接的上下文文本
	Text string `json:"text"`
	// Citations 与段落编号一一对应的引用列表
	Citations []Citation `json:"citations"`
	// Confidence 检索置信度，供生成侧决定直答/措辞保守/请求澄清
	Confidence ConfidenceLevel `json:"confidence"`
}

// AssembleContext 把重排后的块组装为生成上下文。
// 正文使用原始 Content（EnrichedContent 只用于嵌入与索引，从不展示给用户）。
func AssembleContext(chunks []types.Chunk, confidence ConfidenceLevel) AssembledContext {
	var b strings.Builder
	citations := make([]Citation, 0, len(chunks))

	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}

		header := fmt.Sprintf("[%d]", i+1)
		if c.DocumentTitle != "" {
			header += " " + c.DocumentTitle
		}
		if len(c.SectionBreadcrumb) > 0 {
			header += " > " + strings.Join(c.SectionBreadcrumb, " > ")
		}
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(c.Content)

		citations = append(citations, Citation{
			ChunkID:           c.ID,
			DocumentID:        c.DocumentID,
			DocumentTitle:     c.DocumentTitle,
			SectionBreadcrumb: c.SectionBreadcrumb,
			AssociatedImages:  c.AssociatedImages,
			RelevanceScore:    c.RelevanceScore,
		})
	}

	return AssembledContext{
		Text:       b.String(),
		Citations:  citations,
		Confidence: confidence,
	}
}
