package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Input)

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"}, zap.NewNop())

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "the answer"}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, zap.NewNop())

	out, err := p.Complete(context.Background(), "question?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestOpenAIProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, types.ErrServiceUnavailable, true},
		{"server error", http.StatusInternalServerError, types.ErrServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, types.ErrValidation, false},
		{"unauthorized", http.StatusUnauthorized, types.ErrValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "upstream says no"},
				})
			}))
			defer srv.Close()

			p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, zap.NewNop())

			_, err := p.Complete(context.Background(), "q")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.CodeOf(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
			assert.Contains(t, err.Error(), "upstream says no")
		})
	}
}

func TestOpenAIProvider_CompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"Hello"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"choices":[{"delta":{"content":" world"}}]}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, zap.NewNop())

	ch, err := p.CompleteStream(context.Background(), "q")
	require.NoError(t, err)

	var tokens []string
	var done bool
	for ev := range ch {
		switch ev.Type {
		case StreamToken:
			tokens = append(tokens, ev.Content)
		case StreamDone:
			done = true
		case StreamError:
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
	}
	assert.Equal(t, []string{"Hello", " world"}, tokens)
	assert.True(t, done)
}

func TestBoundedStream_ForcesTermination(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"delta":{"content":"partial"}}]}` + "\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// 挂起，永远不发送 [DONE]
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL}, zap.NewNop())

	ch, err := BoundedStream(context.Background(), p, "q", 100*time.Millisecond)
	require.NoError(t, err)

	var sawToken, sawError bool
	for ev := range ch {
		switch ev.Type {
		case StreamToken:
			sawToken = true
		case StreamError:
			sawError = true
			assert.Equal(t, types.ErrTimeout, types.CodeOf(ev.Err))
		}
	}
	assert.True(t, sawToken)
	assert.True(t, sawError)
}
