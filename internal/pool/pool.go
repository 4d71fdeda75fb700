// Package pool 有界工作池，承载摄取与记忆提取等后台任务。
package pool

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/internal/metrics"
)

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool is closed")
	// ErrQueueFull 队列已满，调用方应退避
	ErrQueueFull = errors.New("pool queue is full")
)

// Task 一个后台任务
type Task func(ctx context.Context) error

// Pool 固定大小的受监督工作池。
// 任务失败或 panic 只记日志并丢弃，绝不静默吞掉也绝不拖垮工作协程。
type Pool struct {
	name   string
	queue  chan Task
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

// New 创建并启动工作池
func New(name string, workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		name:   name,
		queue:  make(chan Task, queueSize),
		logger: logger.With(zap.String("component", "worker_pool"), zap.String("pool", name)),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit 提交任务。队列满时立即返回 ErrQueueFull，不阻塞调用方。
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	select {
	case p.queue <- task:
		p.mu.Unlock()
		metrics.PoolQueueDepth.WithLabelValues(p.name).Set(float64(len(p.queue)))
		return nil
	default:
		p.mu.Unlock()
		metrics.PoolTasksTotal.WithLabelValues(p.name, "rejected").Inc()
		return ErrQueueFull
	}
}

// Close 停止接收新任务，排空队列并等待工作协程退出
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.queue {
		p.run(task)
		metrics.PoolQueueDepth.WithLabelValues(p.name).Set(float64(len(p.queue)))
	}

	p.logger.Debug("worker exited", zap.Int("worker_id", id))
}

// run 执行单个任务，失败记日志后丢弃
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", zap.Any("panic", r))
			metrics.PoolTasksTotal.WithLabelValues(p.name, "panic").Inc()
		}
	}()

	if err := task(context.Background()); err != nil {
		p.logger.Warn("task failed", zap.Error(err))
		metrics.PoolTasksTotal.WithLabelValues(p.name, "failed").Inc()
		return
	}
	metrics.PoolTasksTotal.WithLabelValues(p.name, "ok").Inc()
}
