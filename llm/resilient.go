package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ResilientEmbedder 为嵌入提供者叠加限速、熔断与重试。
// 组合顺序：限速 → 重试(熔断(调用))，保证重试间隔内熔断状态可见。
type ResilientEmbedder struct {
	inner   Embedder
	breaker CircuitBreaker
	retryer Retryer
	limiter *rate.Limiter
	logger  *zap.Logger
}

// ResilientEmbedderOption 配置选项
type ResilientEmbedderOption func(*ResilientEmbedder)

// WithEmbedRateLimit 设置嵌入调用限速（每秒请求数与突发量）。
func WithEmbedRateLimit(rps float64, burst int) ResilientEmbedderOption {
	return func(e *ResilientEmbedder) {
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewResilientEmbedder 包装嵌入提供者。
// 重试策略为 3 次尝试指数退避（嵌入调用默认）。
func NewResilientEmbedder(inner Embedder, logger *zap.Logger, opts ...ResilientEmbedderOption) *ResilientEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &ResilientEmbedder{
		inner:   inner,
		breaker: NewCircuitBreaker(DefaultBreakerConfig(), logger),
		retryer: NewRetryer(EmbeddingRetryPolicy(), logger),
		logger:  logger.With(zap.String("component", "resilient_embedder")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed 实现 Embedder。
func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var vector []float64
	err := e.retryer.Do(ctx, func() error {
		return e.breaker.Call(ctx, func() error {
			v, err := e.inner.Embed(ctx, text)
			if err != nil {
				return err
			}
			vector = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// ResilientCompleter 为补全提供者叠加熔断与重试。
type ResilientCompleter struct {
	inner   Completer
	breaker CircuitBreaker
	retryer Retryer
}

// NewResilientCompleter 包装补全提供者。
// policy 为 nil 时使用重排策略（2 次尝试固定间隔），
// 这是检索管线中补全调用的最常见形态。
func NewResilientCompleter(inner Completer, policy *RetryPolicy, logger *zap.Logger) *ResilientCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = RerankRetryPolicy()
	}
	return &ResilientCompleter{
		inner:   inner,
		breaker: NewCircuitBreaker(DefaultBreakerConfig(), logger),
		retryer: NewRetryer(policy, logger),
	}
}

// Complete 实现 Completer。
func (c *ResilientCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := c.retryer.Do(ctx, func() error {
		return c.breaker.Call(ctx, func() error {
			s, err := c.inner.Complete(ctx, prompt)
			if err != nil {
				return err
			}
			out = s
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
