package rbac

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CacheObserver receives cache hit/miss notifications.
type CacheObserver interface {
	ObserveCache(kind string, hit bool)
}

// GrantCache is a short-lived, process-local read cache in front of the
// PermissionStore. It is an optimisation only; every write invalidates it
// synchronously before returning.
type GrantCache struct {
	grants   *lru.LRU[string, grantEntry]
	perms    *lru.LRU[string, Permission]
	group    singleflight.Group
	observer CacheObserver
	// gen changes on every invalidation; loads started under an older
	// generation are returned to their callers but never stored.
	gen atomic.Uint64
	mu  sync.Mutex
}

type grantEntry struct {
	actions ActionSet
}

// NewGrantCache builds a cache. A non-positive ttl disables caching and returns nil,
// which every method treats as a pass-through.
func NewGrantCache(size int, ttl time.Duration, observer CacheObserver) *GrantCache {
	if ttl <= 0 {
		return nil
	}
	if size <= 0 {
		size = 1024
	}
	return &GrantCache{
		grants:   lru.NewLRU[string, grantEntry](size, nil, ttl),
		perms:    lru.NewLRU[string, Permission](size/4+1, nil, ttl),
		observer: observer,
	}
}

func grantKey(roleID int64, resource string) string {
	return fmt.Sprintf("%d:%s", roleID, resource)
}

// Grant returns the cached grant or loads it, sharing one load between concurrent callers.
func (c *GrantCache) Grant(ctx context.Context, roleID int64, resource string, load func(context.Context) (ActionSet, error)) (ActionSet, error) {
	if c == nil {
		return load(ctx)
	}
	key := grantKey(roleID, resource)
	if entry, ok := c.grants.Get(key); ok {
		c.observe("grant", true)
		return entry.actions, nil
	}
	c.observe("grant", false)
	gen := c.gen.Load()
	v, err, _ := c.group.Do(fmt.Sprintf("g:%d:%s", gen, key), func() (interface{}, error) {
		actions, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen.Load() == gen {
			c.grants.Add(key, grantEntry{actions: actions})
		}
		c.mu.Unlock()
		return actions, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ActionSet), nil
}

// Permission returns the cached vocabulary row or loads it. Load errors,
// including unknown resources, are never cached.
func (c *GrantCache) Permission(ctx context.Context, resource string, load func(context.Context) (Permission, error)) (Permission, error) {
	if c == nil {
		return load(ctx)
	}
	if p, ok := c.perms.Get(resource); ok {
		c.observe("permission", true)
		return p, nil
	}
	c.observe("permission", false)
	gen := c.gen.Load()
	v, err, _ := c.group.Do(fmt.Sprintf("p:%d:%s", gen, resource), func() (interface{}, error) {
		p, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen.Load() == gen {
			c.perms.Add(resource, p)
		}
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return Permission{}, err
	}
	return v.(Permission), nil
}

// InvalidateGrant drops one (role, resource) entry.
func (c *GrantCache) InvalidateGrant(roleID int64, resource string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	c.grants.Remove(grantKey(roleID, resource))
}

// InvalidateResource drops the vocabulary row and every grant entry for the resource.
func (c *GrantCache) InvalidateResource(resource string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	c.perms.Remove(resource)
	suffix := ":" + resource
	for _, key := range c.grants.Keys() {
		if strings.HasSuffix(key, suffix) {
			c.grants.Remove(key)
		}
	}
}

// Purge drops everything.
func (c *GrantCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	c.grants.Purge()
	c.perms.Purge()
}

// Len reports the number of cached grant entries.
func (c *GrantCache) Len() int {
	if c == nil {
		return 0
	}
	return c.grants.Len()
}

func (c *GrantCache) observe(kind string, hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(kind, hit)
	}
}
