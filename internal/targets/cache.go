package targets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedDirectory 按view缓存目标列表，条目过期后下次访问时刷新
type CachedDirectory struct {
	next  Directory
	cache *expirable.LRU[uuid.UUID, []Target]
}

func NewCachedDirectory(next Directory, size int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: expirable.NewLRU[uuid.UUID, []Target](size, nil, ttl),
	}
}

func (d *CachedDirectory) ListTargets(ctx context.Context, viewID uuid.UUID) ([]Target, error) {
	if targets, ok := d.cache.Get(viewID); ok {
		return targets, nil
	}
	targets, err := d.next.ListTargets(ctx, viewID)
	if err != nil {
		return nil, err
	}
	d.cache.Add(viewID, targets)
	return targets, nil
}

// Invalidate 创建或删除VM后使缓存失效
func (d *CachedDirectory) Invalidate(viewID uuid.UUID) {
	d.cache.Remove(viewID)
}
