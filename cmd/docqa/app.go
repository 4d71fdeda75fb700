package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/docqa/chat"
	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/ingest"
	"github.com/BaSui01/docqa/internal/cache"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/memory"
	"github.com/BaSui01/docqa/rag"
	"github.com/BaSui01/docqa/storage"
	"github.com/BaSui01/docqa/types"
)

// App 组装全部组件：存储、索引、摄取管线、检索管线、
// 对话历史压缩与长期记忆工作器，并暴露 HTTP API。
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *gorm.DB
	sessions  *storage.SessionRepo
	documents *storage.DocumentRepo
	messages  *storage.MessageRepo

	provider   *llm.OpenAIProvider
	embedCache *cache.EmbedCache
	tokenizer  llm.Tokenizer

	ingestion    *ingest.Pipeline
	retrieval    *rag.Pipeline
	reformulator *chat.Reformulator
	compactor    *chat.Compactor
	memories     *memory.Manager
}

// NewApp 按配置构建应用
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := storage.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		ChatModel:   cfg.Provider.ChatModel,
		EmbedModel:  cfg.Provider.EmbedModel,
		Temperature: cfg.Provider.Temperature,
		Timeout:     cfg.Provider.Timeout,
	}, logger)

	var embedOpts []llm.ResilientEmbedderOption
	if cfg.Provider.EmbedRPS > 0 {
		embedOpts = append(embedOpts,
			llm.WithEmbedRateLimit(cfg.Provider.EmbedRPS, cfg.Provider.EmbedBurst))
	}
	var embedder llm.Embedder = llm.NewResilientEmbedder(provider, logger, embedOpts...)

	var embedCache *cache.EmbedCache
	if cfg.Redis.Enabled {
		embedCache = cache.NewEmbedCache(cfg.Redis, logger)
		embedder = cache.NewCachedEmbedder(embedder, embedCache)
	}

	completer := llm.NewResilientCompleter(provider, nil, logger)
	tokenizer := llm.NewTiktokenTokenizer("cl100k_base", logger)

	store := rag.NewMemoryIndexStore(logger)
	messages := storage.NewMessageRepo(db)

	app := &App{
		cfg:    cfg,
		logger: logger,

		db:        db,
		sessions:  storage.NewSessionRepo(db),
		documents: storage.NewDocumentRepo(db),
		messages:  messages,

		provider:   provider,
		embedCache: embedCache,
		tokenizer:  tokenizer,

		ingestion:    ingest.NewPipeline(store, embedder, cfg.Chunking, cfg.Workers, tokenizer, logger),
		retrieval:    rag.NewPipeline(store, embedder, completer, cfg, logger),
		reformulator: chat.NewReformulator(completer, cfg.Reformulation, logger),
		compactor:    chat.NewCompactor(messages, completer, cfg.Compaction, logger),
		memories: memory.NewManager(
			storage.NewMemoryRepo(db),
			memory.NewExtractor(completer, logger),
			cfg.Memory, cfg.Workers, logger,
		),
	}
	return app, nil
}

// Run 启动 HTTP 与指标服务并阻塞至收到终止信号
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := &http.Server{Addr: a.cfg.Server.Addr, Handler: a.routes()}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: a.cfg.Server.MetricsAddr, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("api server listening", zap.String("addr", a.cfg.Server.Addr))
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		a.logger.Info("metrics server listening", zap.String("addr", a.cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	a.ingestion.Close()
	a.memories.Close()
	if a.embedCache != nil {
		_ = a.embedCache.Close()
	}
	return nil
}

// routes 注册 HTTP 路由
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /api/sessions", a.handleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", a.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/history", a.handleHistory)
	mux.HandleFunc("POST /api/sessions/{id}/documents", a.handleUploadDocument)
	mux.HandleFunc("DELETE /api/sessions/{id}/documents/{docID}", a.handleDeleteDocument)
	mux.HandleFunc("POST /api/sessions/{id}/ask", a.handleAsk)

	return mux
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

func (a *App) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewError(types.ErrValidation, "invalid request body"))
		return
	}

	session := storage.Session{ID: uuid.NewString(), Title: req.Title}
	if err := a.sessions.Create(r.Context(), session); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *App) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if err := a.sessions.Delete(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	if err := a.ingestion.DeleteSession(r.Context(), sessionID); err != nil {
		a.logger.Warn("failed to drop session index", zap.String("session_id", sessionID), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := a.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	summaries, active, err := a.compactor.History(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summaries": summaries,
		"messages":  active,
	})
}

func (a *App) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := a.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		FileName string `json:"file_name"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, types.NewError(types.ErrValidation, "document content is required"))
		return
	}

	docID := uuid.NewString()
	if err := a.documents.Create(r.Context(), storage.Document{
		ID:        docID,
		SessionID: sessionID,
		FileName:  req.FileName,
	}); err != nil {
		writeError(w, err)
		return
	}

	err := a.ingestion.Submit(r.Context(), types.ParsedDocument{
		DocumentID: docID,
		SessionID:  sessionID,
		FileName:   req.FileName,
		Text:       req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": docID})
}

func (a *App) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	docID := r.PathValue("docID")

	if err := a.documents.Delete(r.Context(), sessionID, docID); err != nil {
		writeError(w, err)
		return
	}
	if err := a.ingestion.DeleteDocument(r.Context(), sessionID, docID); err != nil {
		a.logger.Warn("failed to drop document index",
			zap.String("document_id", docID), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAsk 执行完整问答链路并以 SSE 流式返回：
// 历史改写 → 混合检索 → 重排 → 置信度 → 流式生成 → 落地校验，
// 响应结束后异步提交记忆提取与历史压缩。
func (a *App) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := a.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeError(w, types.NewError(types.ErrValidation, "question is required"))
		return
	}

	ctx := r.Context()

	summaries, active, err := a.compactor.History(ctx, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	standalone := a.reformulator.Reformulate(ctx, active, req.Question)

	assembled, ranked, err := a.retrieval.Retrieve(ctx, sessionID, standalone)
	if err != nil {
		writeError(w, err)
		return
	}

	mems, err := a.memories.Retrieve(ctx, sessionID, a.cfg.Memory.RetrievalTopN)
	if err != nil {
		a.logger.Warn("memory retrieval failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	prompt := buildAnswerPrompt(summaries, mems, assembled, req.Question)

	stream, err := llm.BoundedStream(ctx, a.provider, prompt, a.cfg.Workers.StreamTimeout)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	var answer strings.Builder
	for ev := range stream {
		switch ev.Type {
		case llm.StreamToken:
			answer.WriteString(ev.Content)
			writeSSE(w, flusher, "token", map[string]string{"content": ev.Content})
		case llm.StreamError:
			writeSSE(w, flusher, "error", map[string]string{"message": ev.Err.Error()})
		}
	}
	// 落地校验只作披露信号随引用下发，不影响已发送的答案
	verification := a.retrieval.Verify(answer.String(), ranked)
	writeSSE(w, flusher, "citations", map[string]any{
		"confidence":   assembled.Confidence,
		"citations":    assembled.Citations,
		"verification": verification,
	})
	writeSSE(w, flusher, "done", map[string]string{})

	a.afterAnswer(sessionID, req.Question, answer.String())
}

// afterAnswer 持久化本轮消息并触发异步的记忆提取与历史压缩
func (a *App) afterAnswer(sessionID, question, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, m := range []types.ChatMessage{
		{ID: uuid.NewString(), SessionID: sessionID, Role: types.RoleUser,
			Content: question, TokenCount: a.tokenizer.CountTokens(question)},
		{ID: uuid.NewString(), SessionID: sessionID, Role: types.RoleAssistant,
			Content: answer, TokenCount: a.tokenizer.CountTokens(answer)},
	} {
		if err := a.messages.Append(ctx, m); err != nil {
			a.logger.Error("failed to persist message",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	if err := a.memories.SubmitExchange(ctx, sessionID, question, answer); err != nil {
		a.logger.Warn("memory extraction not queued",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	if n, err := a.compactor.MaybeCompact(ctx, sessionID); err != nil {
		a.logger.Warn("history compaction failed",
			zap.String("session_id", sessionID), zap.Error(err))
	} else if n > 0 {
		a.logger.Info("history compacted",
			zap.String("session_id", sessionID), zap.Int("messages", n))
	}
}

// buildAnswerPrompt 拼装生成提示词：历史摘要 + 长期记忆 + 检索上下文 + 问题
func buildAnswerPrompt(summaries []types.ChatSummary, mems []types.Memory, assembled rag.AssembledContext, question string) string {
	var b strings.Builder
	b.WriteString("You are a document question answering assistant. Answer strictly based on the provided context. If the context is insufficient, say so instead of guessing.\n")

	if len(summaries) > 0 {
		b.WriteString("\nConversation summary:\n")
		for _, s := range summaries {
			b.WriteString("- ")
			b.WriteString(s.SummaryContent)
			b.WriteString("\n")
		}
	}
	if len(mems) > 0 {
		b.WriteString("\nKnown about this user:\n")
		b.WriteString(memory.ContextString(mems))
		b.WriteString("\n")
	}

	b.WriteString("\nContext:\n")
	if assembled.Text != "" {
		b.WriteString(assembled.Text)
	} else {
		b.WriteString("(no relevant context found)\n")
	}

	switch assembled.Confidence {
	case rag.ConfidenceWeak:
		b.WriteString("\nNote: the context support is weak, phrase the answer cautiously.\n")
	case rag.ConfidenceInsufficient:
		b.WriteString("\nNote: the context is insufficient, ask the user to clarify or upload relevant documents.\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// writeSSE 发送一条 SSE 事件
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if flusher != nil {
		flusher.Flush()
	}
}

// writeJSON 写 JSON 响应
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError 按统一错误码映射 HTTP 状态
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch types.CodeOf(err) {
	case types.ErrValidation, types.ErrMalformedOutput:
		status = http.StatusBadRequest
	case types.ErrNotFound:
		status = http.StatusNotFound
	case types.ErrServiceUnavailable, types.ErrCircuitOpen:
		status = http.StatusServiceUnavailable
	case types.ErrTimeout:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
