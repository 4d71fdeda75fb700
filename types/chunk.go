package types

// Chunk 文档块（检索的最小单元）
// 每个块只属于一个文档和一个会话；摄取后不可变，仅随文档/会话删除级联删除。
type Chunk struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	SessionID    string `json:"session_id"`
	OrdinalIndex int    `json:"ordinal_index"` // 文档内顺序

	Content         string `json:"content"`          // 原始文本（展示给用户）
	EnrichedContent string `json:"enriched_content"` // 带标签前缀的文本（仅用于嵌入/索引）
	TokenCount      int    `json:"token_count"`

	Embedding []float64 `json:"embedding,omitempty"`

	DocumentTitle     string   `json:"document_title,omitempty"`
	SectionTitle      string   `json:"section_title,omitempty"`
	SectionBreadcrumb []string `json:"section_breadcrumb,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
	AssociatedImages  []string `json:"associated_image_ids,omitempty"`

	// RelevanceScore 瞬态分数，仅由检索调用写入，绝不持久化。
	RelevanceScore float64 `json:"relevance_score,omitempty"`
}

// DocumentSection 文档结构树节点（仅摄取期存在，分块后丢弃）
type DocumentSection struct {
	Title       string            `json:"title"`
	Level       int               `json:"level"`
	Breadcrumb  []string          `json:"breadcrumb"`
	Content     string            `json:"content"`
	Children    []DocumentSection `json:"children,omitempty"`
	StartOffset int               `json:"start_offset"`
	EndOffset   int               `json:"end_offset"`
}

// ImageRef 解析阶段提取的图片引用
type ImageRef struct {
	ID     string `json:"id"`
	Offset int    `json:"offset"`   // 图片在文档中的字符偏移
	Group  string `json:"group"`    // 空组表示未分组
	Alt    string `json:"alt,omitempty"`
}

// ParsedDocument 解析后的文档（分块器输入）
type ParsedDocument struct {
	DocumentID string            `json:"document_id"`
	SessionID  string            `json:"session_id"`
	FileName   string            `json:"file_name,omitempty"`
	Text       string            `json:"text"`
	Sections   []DocumentSection `json:"sections,omitempty"`
	Images     []ImageRef        `json:"images,omitempty"`
}
