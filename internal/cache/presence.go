package cache

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const onlineSetKey = "presence:online"

// PresenceCache — эфемерное состояние в Redis: множество пользователей
// онлайн и TTL-кэш их комнат. Истиной для durable-данных не является.
type PresenceCache struct {
	rdb    *redis.Client
	logger *zap.SugaredLogger
}

func NewPresenceCache(rdb *redis.Client, logger *zap.SugaredLogger) *PresenceCache {
	return &PresenceCache{rdb: rdb, logger: logger}
}

func (c *PresenceCache) MarkOnline(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.SAdd(ctx, onlineSetKey, userID.String()).Err()
}

func (c *PresenceCache) MarkOffline(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.SRem(ctx, onlineSetKey, userID.String()).Err()
}

func (c *PresenceCache) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return c.rdb.SIsMember(ctx, onlineSetKey, userID.String()).Result()
}

func (c *PresenceCache) OnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	members, err := c.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}

	users := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			c.logger.Warnf("presence set holds bad id %q: %v", m, err)
			continue
		}
		users = append(users, id)
	}
	return users, nil
}
