package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/edumarket/pkg/config"
	"github.com/redis/go-redis/v9"
)

// RedisConn Redis连接，memory 模式下持有内嵌的 miniredis
type RedisConn struct {
	*redis.Client
	mini *miniredis.Miniredis
}

// OpenRedis 创建Redis连接
func OpenRedis(cfg *config.RedisConfig) (*RedisConn, error) {
	if cfg.Mode == "memory" {
		mini, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start in-memory redis: %w", err)
		}
		return &RedisConn{
			Client: redis.NewClient(&redis.Options{Addr: mini.Addr()}),
			mini:   mini,
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisConn{Client: client}, nil
}

// Close 关闭Redis连接
func (r *RedisConn) Close() error {
	err := r.Client.Close()
	if r.mini != nil {
		r.mini.Close()
	}
	return err
}

// Cache Redis缓存操作封装
type Cache struct {
	client redis.Cmdable
	prefix string
}

// NewCache 创建缓存实例
func NewCache(client redis.Cmdable, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// key 生成带前缀的key
func (c *Cache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

// Get 获取缓存
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, c.key(key)).Result()
}

// Del 删除缓存
func (c *Cache) Del(ctx context.Context, keys ...string) error {
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.key(k)
	}
	return c.client.Del(ctx, fullKeys...).Err()
}

// IncrWithin 自增计数，首次计数时设置窗口过期时间，两条命令在同一事务中执行
func (c *Cache) IncrWithin(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := c.key(key)
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return incr.Result()
}

// TTL 剩余过期时间
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, c.key(key)).Result()
}
