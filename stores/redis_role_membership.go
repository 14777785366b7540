package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRoleMembershipStore keeps user-role assignments in Redis sets, one
// set per user per organization (key: rolemem:{org}:{user}).
type RedisRoleMembershipStore struct {
	client *redis.Client
	keyFmt string
}

func NewRedisRoleMembershipStore(client *redis.Client) *RedisRoleMembershipStore {
	return &RedisRoleMembershipStore{client: client, keyFmt: "rolemem:%s:%s"}
}

func (r *RedisRoleMembershipStore) key(userID, organizationID string) string {
	return fmt.Sprintf(r.keyFmt, organizationID, userID)
}

func (r *RedisRoleMembershipStore) AssignRole(ctx context.Context, userID, roleID, organizationID string) error {
	return r.client.SAdd(ctx, r.key(userID, organizationID), roleID).Err()
}

func (r *RedisRoleMembershipStore) RevokeRole(ctx context.Context, userID, roleID, organizationID string) error {
	return r.client.SRem(ctx, r.key(userID, organizationID), roleID).Err()
}

func (r *RedisRoleMembershipStore) ListRoleIDs(ctx context.Context, userID, organizationID string) ([]string, error) {
	return r.client.SMembers(ctx, r.key(userID, organizationID)).Result()
}
