package authorizer

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// PermissionCache memoizes resolved permission sets per user and
// organization on top of ristretto. Admin mutations invalidate through
// Invalidate and Clear.
type PermissionCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

// DefaultCacheTTL keeps entries fresh enough that role edits propagate even
// if an invalidation is missed.
const DefaultCacheTTL = 5 * time.Minute

func NewPermissionCache(numCounters, maxCost, bufferItems int64, ttl time.Duration) (*PermissionCache, error) {
	if numCounters <= 0 {
		numCounters = 1e5
	}
	if maxCost <= 0 {
		maxCost = 1 << 24
	}
	if bufferItems <= 0 {
		bufferItems = 64
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &PermissionCache{c: c, ttl: ttl}, nil
}

func cacheKey(userID, organizationID string) string {
	return organizationID + "\x00" + userID
}

func (pc *PermissionCache) Get(userID, organizationID string) ([]EffectivePermission, bool) {
	v, ok := pc.c.Get(cacheKey(userID, organizationID))
	if !ok {
		return nil, false
	}
	perms, ok := v.([]EffectivePermission)
	return perms, ok
}

func (pc *PermissionCache) Set(userID, organizationID string, perms []EffectivePermission) {
	pc.c.SetWithTTL(cacheKey(userID, organizationID), perms, int64(len(perms)+1), pc.ttl)
}

// Invalidate drops the entry for one user in one organization.
func (pc *PermissionCache) Invalidate(userID, organizationID string) {
	pc.c.Del(cacheKey(userID, organizationID))
}

// Clear drops everything. Used after rule mutations that may affect any user.
func (pc *PermissionCache) Clear() {
	pc.c.Clear()
}

// Wait blocks until pending writes are visible. Tests use it to make cache
// behavior deterministic.
func (pc *PermissionCache) Wait() {
	pc.c.Wait()
}
