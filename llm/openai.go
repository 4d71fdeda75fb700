package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// OpenAIConfig OpenAI 兼容提供者配置
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	ChatModel   string
	EmbedModel  string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIProvider OpenAI 兼容提供者，同时实现 Embedder、Completer 与 StreamCompleter。
// 任何暴露 /v1/embeddings 与 /v1/chat/completions 的端点均可接入。
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider 创建提供者
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "openai_provider")),
	}
}

type openAIEmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Embed 实现 Embedder
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := p.post(ctx, "/v1/embeddings", openAIEmbedRequest{
		Input: text,
		Model: p.cfg.EmbedModel,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp openAIEmbedResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, types.NewError(types.ErrMalformedOutput, "decode embedding response").WithCause(err)
	}
	if len(resp.Data) == 0 {
		return nil, types.NewError(types.ErrMalformedOutput, "embedding response has no data")
	}
	return resp.Data[0].Embedding, nil
}

// Complete 实现 Completer
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := p.post(ctx, "/v1/chat/completions", openAIChatRequest{
		Model:       p.cfg.ChatModel,
		Messages:    []openAIChatMessage{{Role: "user", Content: prompt}},
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp openAIChatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", types.NewError(types.ErrMalformedOutput, "decode chat response").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrMalformedOutput, "chat response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream 实现 StreamCompleter，按 SSE 逐 token 转发
func (p *OpenAIProvider) CompleteStream(ctx context.Context, prompt string) (<-chan StreamEvent, error) {
	body, err := p.post(ctx, "/v1/chat/completions", openAIChatRequest{
		Model:       p.cfg.ChatModel,
		Messages:    []openAIChatMessage{{Role: "user", Content: prompt}},
		Temperature: p.cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer body.Close()
		defer close(out)

		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					p.emit(ctx, out, StreamEvent{
						Type: StreamError,
						Err:  types.NewError(types.ErrServiceUnavailable, "stream read failed").WithCause(err),
					})
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				p.emit(ctx, out, StreamEvent{Type: StreamDone})
				return
			}

			var resp openAIChatResponse
			if err := json.Unmarshal([]byte(data), &resp); err != nil {
				p.emit(ctx, out, StreamEvent{
					Type: StreamError,
					Err:  types.NewError(types.ErrMalformedOutput, "decode stream chunk").WithCause(err),
				})
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !p.emit(ctx, out, StreamEvent{Type: StreamToken, Content: choice.Delta.Content}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// emit 发送事件，上下文取消时返回 false
func (p *OpenAIProvider) emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}

// post 发送 JSON 请求并返回响应体，非 2xx 状态映射为统一错误码
func (p *OpenAIProvider) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrTimeout, "provider call cancelled").WithCause(err)
		}
		return nil, types.NewError(types.ErrServiceUnavailable, "provider unreachable").
			WithCause(err).WithRetryable(true)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := readErrorMessage(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, msg)
	}
	return resp.Body, nil
}

// readErrorMessage 尽力从错误响应体中取出可读信息
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return string(raw)
}

// mapHTTPError 将 HTTP 状态码映射为统一错误码。
// 429 与 5xx 可重试，其余 4xx 属调用方错误不重试。
func mapHTTPError(status int, msg string) *types.Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return types.NewError(types.ErrServiceUnavailable, msg).WithRetryable(true)
	case status == http.StatusRequestTimeout:
		return types.NewError(types.ErrTimeout, msg).WithRetryable(true)
	default:
		return types.NewError(types.ErrValidation, msg)
	}
}
