package ingest

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/types"
)

// Processor 文档处理器
// 把解析后的文档加工为可索引的块：章节树 → 分块 → 元数据富化 → 图片挂载。
type Processor struct {
	cfg     config.ChunkingConfig
	chunker *Chunker
	meta    *MetadataExtractor
	tok     llm.Tokenizer
	logger  *zap.Logger
}

// NewProcessor 创建文档处理器
func NewProcessor(cfg config.ChunkingConfig, tok llm.Tokenizer, logger *zap.Logger) *Processor {
	if tok == nil {
		tok = llm.NewEstimatorTokenizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:     cfg,
		chunker: NewChunker(cfg, tok, logger),
		meta:    NewMetadataExtractor(cfg),
		tok:     tok,
		logger:  logger.With(zap.String("component", "document_processor")),
	}
}

// Process 产出文档的全部块。块一经产出即不可变，直到随文档或会话级联删除。
func (p *Processor) Process(doc types.ParsedDocument) []types.Chunk {
	if doc.Sections == nil {
		doc.Sections = BuildSectionTree(doc.Text)
	}

	title := doc.FileName
	if extracted := p.meta.ExtractTitle(doc.Text, doc.FileName); extracted != "" {
		title = extracted
	}

	drafts := p.chunker.Chunk(doc)
	imagesByDraft := assignImages(drafts, doc.Images)

	chunks := make([]types.Chunk, 0, len(drafts))
	for i, d := range drafts {
		keywords := p.meta.ExtractKeywords(d.raw, p.cfg.MaxKeywords)
		sectionPath := strings.Join(d.breadcrumb, " > ")
		enriched := p.meta.EnrichContent(d.content, title, sectionPath, keywords)

		chunks = append(chunks, types.Chunk{
			ID:                uuid.NewString(),
			DocumentID:        doc.DocumentID,
			SessionID:         doc.SessionID,
			OrdinalIndex:      i,
			Content:           d.content,
			EnrichedContent:   enriched,
			TokenCount:        p.tok.CountTokens(d.content),
			DocumentTitle:     title,
			SectionTitle:      d.sectionTitle,
			SectionBreadcrumb: d.breadcrumb,
			Keywords:          keywords,
			AssociatedImages:  imagesByDraft[i],
		})
	}

	p.logger.Info("document processed",
		zap.String("document_id", doc.DocumentID),
		zap.String("title", title),
		zap.Int("chunks", len(chunks)),
		zap.Int("images", len(doc.Images)))
	return chunks
}
