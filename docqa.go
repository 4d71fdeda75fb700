// Package docqa 提供检索核心的最小样板入口。
//
// 用法:
//
//	import "github.com/BaSui01/docqa"
//
//	eng, err := docqa.New(docqa.WithOpenAI("sk-..."))
//	eng.Ingest(ctx, doc)
//	result, chunks, err := eng.Ask(ctx, sessionID, "发票金额是多少？")
//	// 生成答案后可选做落地校验
//	verification := eng.Verify(answer, chunks)
//
// Engine 只包含摄取与检索管线（内存索引，无持久化与 HTTP 层）；
// 需要完整服务时使用 cmd/docqa。
package docqa

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/ingest"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/types"
)

// Engine 组合摄取管线与检索管线的库级入口
type Engine struct {
	ingestion *ingest.Pipeline
	retrieval *rag.Pipeline
	store     *rag.MemoryIndexStore
}

type engineOptions struct {
	cfg       *config.Config
	embedder  llm.Embedder
	completer llm.Completer
	logger    *zap.Logger
}

// Option 配置 [New] 创建的引擎
type Option func(*engineOptions)

// WithConfig 使用自定义配置，默认为 [config.DefaultConfig]。
func WithConfig(cfg *config.Config) Option {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithOpenAI 使用 OpenAI 端点作为嵌入与补全提供者。
func WithOpenAI(apiKey string) Option {
	return func(o *engineOptions) {
		p := llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: apiKey}, o.logger)
		o.embedder = p
		o.completer = p
	}
}

// WithEmbedder 使用自定义嵌入提供者。
func WithEmbedder(e llm.Embedder) Option {
	return func(o *engineOptions) { o.embedder = e }
}

// WithCompleter 使用自定义补全提供者。
func WithCompleter(c llm.Completer) Option {
	return func(o *engineOptions) { o.completer = c }
}

// WithLogger 使用自定义 zap logger。
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// New 创建引擎。至少需要通过 [WithOpenAI] 或
// [WithEmbedder]+[WithCompleter] 指定模型提供者。
func New(opts ...Option) (*Engine, error) {
	o := &engineOptions{
		cfg:    config.DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.embedder == nil || o.completer == nil {
		return nil, fmt.Errorf("docqa: a model provider is required")
	}

	resilientEmbedder := llm.NewResilientEmbedder(o.embedder, o.logger)
	completer := llm.NewResilientCompleter(o.completer, nil, o.logger)

	store := rag.NewMemoryIndexStore(o.logger)
	return &Engine{
		store: store,
		ingestion: ingest.NewPipeline(
			store, resilientEmbedder, o.cfg.Chunking, o.cfg.Workers,
			llm.NewTiktokenTokenizer("", o.logger), o.logger,
		),
		retrieval: rag.NewPipeline(store, resilientEmbedder, completer, o.cfg, o.logger),
	}, nil
}

// Ingest 同步摄取一篇解析后的文档，返回写入的块数
func (e *Engine) Ingest(ctx context.Context, doc types.ParsedDocument) (int, error) {
	return e.ingestion.Ingest(ctx, doc)
}

// Ask 在会话内检索，返回组装好的生成上下文与重排后的块。
// 块列表供生成完成后传入 [Engine.Verify] 做落地校验。
func (e *Engine) Ask(ctx context.Context, sessionID, query string) (rag.AssembledContext, []types.Chunk, error) {
	return e.retrieval.Retrieve(ctx, sessionID, query)
}

// Verify 校验生成答案是否被检索块支撑，结果只作披露信号
func (e *Engine) Verify(answer string, chunks []types.Chunk) rag.VerificationResult {
	return e.retrieval.Verify(answer, chunks)
}

// DeleteDocument 删除某文档的全部块
func (e *Engine) DeleteDocument(ctx context.Context, sessionID, documentID string) error {
	return e.ingestion.DeleteDocument(ctx, sessionID, documentID)
}

// DeleteSession 删除某会话的全部块
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	return e.ingestion.DeleteSession(ctx, sessionID)
}

// Close 关闭后台工作池
func (e *Engine) Close() {
	e.ingestion.Close()
}
