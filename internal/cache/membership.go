package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRoomIDsTTL — срок жизни кэша состава комнат
const DefaultRoomIDsTTL = 60 * time.Minute

// RoomIDSource — durable-источник состава комнат (Persistent Store Gateway)
type RoomIDSource interface {
	GetUserRoomIDs(ctx context.Context, userID string) ([]uuid.UUID, error)
}

// RoomIDCache — кэш поверх источника. Реализуется PresenceCache.
type RoomIDCache interface {
	GetCachedRoomIDs(ctx context.Context, userID string) ([]uuid.UUID, error)
	SetCachedRoomIDs(ctx context.Context, userID string, ids []uuid.UUID, ttl time.Duration) error
	InvalidateRoomIDs(ctx context.Context, userID string) error
}

// Membership — read-through загрузчик состава комнат: сперва кэш,
// при промахе или недоступности Redis — база с повторным наполнением кэша.
type Membership struct {
	cache  RoomIDCache
	store  RoomIDSource
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewMembership(cache RoomIDCache, store RoomIDSource, logger *zap.SugaredLogger) *Membership {
	return &Membership{
		cache:  cache,
		store:  store,
		ttl:    DefaultRoomIDsTTL,
		logger: logger,
	}
}

func (m *Membership) RoomIDs(ctx context.Context, userID string) ([]uuid.UUID, error) {
	ids, err := m.cache.GetCachedRoomIDs(ctx, userID)
	if err == nil {
		return ids, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		// Redis недоступен — деградируем до базы, соединение не роняем
		m.logger.Warnf("room ids cache read failed for %s: %v", userID, err)
	}

	ids, err = m.store.GetUserRoomIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := m.cache.SetCachedRoomIDs(ctx, userID, ids, m.ttl); err != nil {
		m.logger.Warnf("room ids cache write failed for %s: %v", userID, err)
	}

	return ids, nil
}

// Invalidate вызывается при любом изменении состава комнат пользователя
func (m *Membership) Invalidate(ctx context.Context, userID string) {
	if err := m.cache.InvalidateRoomIDs(ctx, userID); err != nil {
		m.logger.Warnf("room ids cache invalidate failed for %s: %v", userID, err)
	}
}
