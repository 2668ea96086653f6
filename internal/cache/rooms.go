package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func roomIDsKey(userID string) string {
	return "chat:rooms:" + userID
}

// GetCachedRoomIDs возвращает закэшированный набор комнат пользователя
// или ErrCacheMiss, если ключа нет либо TTL истек
func (c *PresenceCache) GetCachedRoomIDs(ctx context.Context, userID string) ([]uuid.UUID, error) {
	raw, err := c.rdb.Get(ctx, roomIDsKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *PresenceCache) SetCachedRoomIDs(ctx context.Context, userID string, ids []uuid.UUID, ttl time.Duration) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, roomIDsKey(userID), raw, ttl).Err()
}

func (c *PresenceCache) InvalidateRoomIDs(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, roomIDsKey(userID)).Err()
}
