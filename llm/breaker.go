package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	// BreakerClosed 关闭状态（正常工作）
	BreakerClosed BreakerState = iota
	// BreakerOpen 打开状态（熔断中）
	BreakerOpen
	// BreakerHalfOpen 半开状态（试探性恢复）
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// 错误定义
var (
	ErrCircuitOpen            = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("too many calls in half-open state")
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int

	// Timeout 单次调用超时时间
	Timeout time.Duration

	// ResetTimeout 熔断恢复等待时间（从 Open -> HalfOpen）
	ResetTimeout time.Duration

	// HalfOpenMaxCalls 半开状态下允许的最大请求数
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig 返回默认配置
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Threshold:        5,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker 熔断器接口
type CircuitBreaker interface {
	// Call 执行调用，如果熔断器打开则返回错误
	Call(ctx context.Context, fn func() error) error

	// State 获取当前状态
	State() BreakerState

	// Reset 重置熔断器（手动恢复）
	Reset()
}

// breaker 熔断器实现
type breaker struct {
	config *BreakerConfig
	logger *zap.Logger

	mu                sync.Mutex
	state             BreakerState
	failureCount      int       // 连续失败次数
	lastFailureTime   time.Time // 最后失败时间
	halfOpenCallCount int       // 半开状态下的调用次数
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(config *BreakerConfig, logger *zap.Logger) CircuitBreaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 参数校验
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 3
	}

	return &breaker{
		config: config,
		logger: logger,
		state:  BreakerClosed,
	}
}

// Call 实现 CircuitBreaker.Call
// 核心逻辑：状态机转换 + 失败计数 + 超时控制
func (b *breaker) Call(ctx context.Context, fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- fn()
	}()

	select {
	case <-callCtx.Done():
		b.afterCall(false)
		return types.NewError(types.ErrTimeout, "call timed out").WithCause(callCtx.Err())

	case err := <-resultCh:
		// 调用方错误（校验失败等）不应计入熔断失败
		success := err == nil || isClientError(err)
		b.afterCall(success)
		return err
	}
}

// isClientError 判断错误是否为调用方错误（不应计入熔断失败）。
func isClientError(err error) bool {
	switch types.CodeOf(err) {
	case types.ErrValidation, types.ErrNotFound, types.ErrMalformedOutput:
		return true
	}
	return false
}

// beforeCall 调用前检查
func (b *breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil

	case BreakerOpen:
		// 检查是否可以进入半开状态
		if time.Since(b.lastFailureTime) > b.config.ResetTimeout {
			b.state = BreakerHalfOpen
			b.halfOpenCallCount = 0
			b.logger.Info("circuit breaker entering half-open state")
			return nil
		}
		return ErrCircuitOpen

	case BreakerHalfOpen:
		// 半开状态，限制调用次数
		if b.halfOpenCallCount >= b.config.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCallCount++
		return nil

	default:
		return fmt.Errorf("unknown breaker state: %v", b.state)
	}
}

// afterCall 调用后处理
func (b *breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

// onSuccess 处理成功调用
func (b *breaker) onSuccess() {
	switch b.state {
	case BreakerClosed:
		b.failureCount = 0

	case BreakerHalfOpen:
		b.logger.Info("circuit breaker recovered",
			zap.Int("half_open_calls", b.halfOpenCallCount),
		)
		b.state = BreakerClosed
		b.failureCount = 0
		b.halfOpenCallCount = 0
	}
}

// onFailure 处理失败调用
func (b *breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case BreakerClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("circuit breaker opened",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold),
			)
			b.state = BreakerOpen
		}

	case BreakerHalfOpen:
		b.logger.Warn("half-open probe failed, reopening",
			zap.Int("half_open_calls", b.halfOpenCallCount),
		)
		b.state = BreakerOpen
		b.halfOpenCallCount = 0
	}
}

// State 实现 CircuitBreaker.State
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 实现 CircuitBreaker.Reset
func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = BreakerClosed
	b.failureCount = 0
	b.halfOpenCallCount = 0

	b.logger.Info("circuit breaker reset",
		zap.String("from_state", oldState.String()),
	)
}
