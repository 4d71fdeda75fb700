package llm

import (
	"context"
	"time"

	"github.com/BaSui01/docqa/types"
)

// Embedder 嵌入模型接口
type Embedder interface {
	// Embed 将文本转换为稠密向量
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Completer 补全模型接口
type Completer interface {
	// Complete 生成给定提示词的补全
	Complete(ctx context.Context, prompt string) (string, error)
}

// StreamEventType 流式事件类型
type StreamEventType string

const (
	StreamToken    StreamEventType = "token"
	StreamCitation StreamEventType = "citation"
	StreamDone     StreamEventType = "done"
	StreamError    StreamEventType = "error"
)

// StreamEvent 流式生成事件
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Err     error           `json:"-"`
}

// StreamCompleter 流式补全模型接口
type StreamCompleter interface {
	Completer

	// CompleteStream 流式生成补全，事件通道在完成或出错后关闭
	CompleteStream(ctx context.Context, prompt string) (<-chan StreamEvent, error)
}

// BoundedStream 在流式生成上施加总超时：超时后强制终止流，
// 向下游发送一条 error 事件并关闭通道。
func BoundedStream(ctx context.Context, sc StreamCompleter, prompt string, timeout time.Duration) (<-chan StreamEvent, error) {
	streamCtx, cancel := context.WithTimeout(ctx, timeout)

	inner, err := sc.CompleteStream(streamCtx, prompt)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case ev, ok := <-inner:
				if !ok {
					return
				}
				out <- ev
				if ev.Type == StreamDone || ev.Type == StreamError {
					return
				}
			case <-streamCtx.Done():
				out <- StreamEvent{
					Type: StreamError,
					Err: types.NewError(types.ErrTimeout, "stream terminated").
						WithCause(streamCtx.Err()),
				}
				return
			}
		}
	}()
	return out, nil
}
