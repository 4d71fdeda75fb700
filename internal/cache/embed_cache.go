// Package cache 基于 Redis 的嵌入向量缓存。
// 相同文本的向量化结果幂等，缓存命中可省掉一次外部嵌入调用；
// 缓存任何故障都降级为直连嵌入，从不影响可用性。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/llm"
)

const keyPrefix = "docqa:embed:"

// EmbedCache Redis 嵌入缓存
type EmbedCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewEmbedCache 创建嵌入缓存
func NewEmbedCache(cfg config.RedisConfig, logger *zap.Logger) *EmbedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &EmbedCache{
		rdb:    rdb,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "embed_cache")),
	}
}

// Get 查缓存，未命中或缓存故障返回 false
func (c *EmbedCache) Get(ctx context.Context, text string) ([]float64, bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", zap.Error(err))
		}
		metrics.EmbedCacheMisses.Inc()
		return nil, false
	}

	var vector []float64
	if err := json.Unmarshal(raw, &vector); err != nil {
		c.logger.Warn("cache entry corrupt", zap.Error(err))
		metrics.EmbedCacheMisses.Inc()
		return nil, false
	}
	metrics.EmbedCacheHits.Inc()
	return vector, true
}

// Set 写缓存，失败只记日志
func (c *EmbedCache) Set(ctx context.Context, text string, vector []float64) {
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(text), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.Error(err))
	}
}

// Close 关闭 Redis 连接
func (c *EmbedCache) Close() error {
	return c.rdb.Close()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// CachedEmbedder 带缓存的嵌入器装饰
type CachedEmbedder struct {
	inner llm.Embedder
	cache *EmbedCache
}

// NewCachedEmbedder 包装嵌入器加缓存
func NewCachedEmbedder(inner llm.Embedder, cache *EmbedCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed 实现 llm.Embedder，命中缓存时不触达外部模型
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if vector, ok := e.cache.Get(ctx, text); ok {
		return vector, nil
	}

	vector, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(ctx, text, vector)
	return vector, nil
}
