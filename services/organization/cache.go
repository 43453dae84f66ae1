package organization

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/esign-platform/models"
)

// cacheKey identifies one user's membership in one organization.
type cacheKey struct {
	OrgID  uuid.UUID
	UserID uuid.UUID
}

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	key        cacheKey
	membership models.Membership
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// MembershipCache is an in-memory LRU cache with TTL for tenant memberships.
// Only memberships that exist are cached, so a user who just joined is never
// refused by a stale entry.
type MembershipCache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewMembershipCache creates a cache holding at most maxSize memberships for
// ttl each.
func NewMembershipCache(maxSize int, ttl time.Duration) *MembershipCache {
	return &MembershipCache{
		entries: make(map[cacheKey]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MembershipCache) expired(e *cacheEntry) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

// Get returns a copy of the cached membership, or nil when absent or expired.
func (c *MembershipCache) Get(orgID, userID uuid.UUID) *models.Membership {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{OrgID: orgID, UserID: userID}
	entry, exists := c.entries[key]
	if !exists || c.expired(entry) {
		c.misses++
		if exists {
			c.removeEntry(key)
		}
		return nil
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++

	m := entry.membership
	return &m
}

// Set stores m, evicting the least recently used entry when full.
func (c *MembershipCache) Set(m *models.Membership) {
	if m == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{OrgID: m.OrgID, UserID: m.UserID}
	if entry, exists := c.entries[key]; exists {
		entry.membership = *m
		entry.insertedAt = c.now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        key,
		membership: *m,
		insertedAt: c.now(),
	}
	entry.element = c.lruList.PushFront(key)
	c.entries[key] = entry
}

// Stats returns cache statistics
func (c *MembershipCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// removeEntry must be called with the lock held.
func (c *MembershipCache) removeEntry(key cacheKey) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictLRU must be called with the lock held.
func (c *MembershipCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	c.removeEntry(back.Value.(cacheKey))
}

// CleanupExpired removes all expired entries and returns how many it removed.
func (c *MembershipCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []cacheKey
	for key, entry := range c.entries {
		if c.expired(entry) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeEntry(key)
	}
	return len(expired)
}

// StartCleanupWorker removes expired entries every interval until ctx is
// cancelled.
func (c *MembershipCache) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}
