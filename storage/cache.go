package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanban-board/domain"
)

const tasksCacheKey = "cache:tasks"

// Cache wraps a Collection with a Redis-backed copy of the task list.
// Every write evicts the cached list.
type Cache struct {
	base  Collection
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Collection wrapper using the provided Redis client and TTL.
func NewCache(base Collection, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base collection is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) List(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx); ok {
		return tasks, nil
	}

	tasks, err := c.base.List(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, tasks)
	return tasks, nil
}

func (c *Cache) Insert(ctx context.Context, t domain.Task) error {
	err := c.base.Insert(ctx, t)
	c.evict(ctx)
	return err
}

func (c *Cache) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	t, err := c.base.Update(ctx, id, patch)
	c.evict(ctx)
	return t, err
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	err := c.base.Delete(ctx, id)
	c.evict(ctx)
	return err
}

func (c *Cache) loadFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing collection without failing.
			_ = c.redis.Del(ctx, tasksCacheKey).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, tasksCacheKey).Err()
}
