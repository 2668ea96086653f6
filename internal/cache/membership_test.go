package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRoomIDCache хранит записи с TTL относительно ручных часов,
// чтобы истечение можно было проверить без ожидания
type fakeRoomIDCache struct {
	values  map[string][]uuid.UUID
	expires map[string]time.Time
	now     time.Time
	getErr  error
	sets    int
	deletes int
}

func newFakeRoomIDCache() *fakeRoomIDCache {
	return &fakeRoomIDCache{
		values:  make(map[string][]uuid.UUID),
		expires: make(map[string]time.Time),
		now:     time.Now(),
	}
}

func (f *fakeRoomIDCache) GetCachedRoomIDs(_ context.Context, userID string) ([]uuid.UUID, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	ids, ok := f.values[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !f.now.Before(f.expires[userID]) {
		delete(f.values, userID)
		delete(f.expires, userID)
		return nil, ErrCacheMiss
	}
	return ids, nil
}

func (f *fakeRoomIDCache) SetCachedRoomIDs(_ context.Context, userID string, ids []uuid.UUID, ttl time.Duration) error {
	f.sets++
	f.values[userID] = ids
	f.expires[userID] = f.now.Add(ttl)
	return nil
}

func (f *fakeRoomIDCache) InvalidateRoomIDs(_ context.Context, userID string) error {
	f.deletes++
	delete(f.values, userID)
	return nil
}

type fakeRoomIDSource struct {
	ids   []uuid.UUID
	err   error
	calls int
}

func (f *fakeRoomIDSource) GetUserRoomIDs(context.Context, string) ([]uuid.UUID, error) {
	f.calls++
	return f.ids, f.err
}

func TestRoomIDsReadThrough(t *testing.T) {
	roomIDs := []uuid.UUID{uuid.New(), uuid.New()}
	c := newFakeRoomIDCache()
	src := &fakeRoomIDSource{ids: roomIDs}
	m := NewMembership(c, src, zap.NewNop().Sugar())

	// Промах: идем в базу и наполняем кэш
	got, err := m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, roomIDs, got)
	require.Equal(t, 1, src.calls)
	require.Equal(t, 1, c.sets)

	// Попадание: база не трогается
	got, err = m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, roomIDs, got)
	require.Equal(t, 1, src.calls)
}

func TestRoomIDsExpiredEntryReloadsFromStore(t *testing.T) {
	c := newFakeRoomIDCache()
	src := &fakeRoomIDSource{ids: []uuid.UUID{uuid.New()}}
	m := NewMembership(c, src, zap.NewNop().Sugar())

	_, err := m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	// Пока TTL не вышел — читаем из кэша
	c.now = c.now.Add(DefaultRoomIDsTTL - time.Minute)
	_, err = m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	// После истечения TTL следующий читатель снова идет в базу
	c.now = c.now.Add(2 * time.Minute)
	got, err := m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, src.ids, got)
	require.Equal(t, 2, src.calls)
	require.Equal(t, 2, c.sets)
}

func TestRoomIDsInvalidateForcesReload(t *testing.T) {
	c := newFakeRoomIDCache()
	src := &fakeRoomIDSource{ids: []uuid.UUID{uuid.New()}}
	m := NewMembership(c, src, zap.NewNop().Sugar())

	_, err := m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	m.Invalidate(context.Background(), "u1")
	require.Equal(t, 1, c.deletes)

	_, err = m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestRoomIDsCacheUnavailableFallsBackToStore(t *testing.T) {
	c := newFakeRoomIDCache()
	c.getErr = errors.New("connection refused")
	src := &fakeRoomIDSource{ids: []uuid.UUID{uuid.New()}}
	m := NewMembership(c, src, zap.NewNop().Sugar())

	// Недоступный Redis деградирует до базы, ошибки наружу нет
	got, err := m.RoomIDs(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, src.ids, got)
	require.Equal(t, 1, src.calls)
}

func TestRoomIDsStoreErrorSurfaces(t *testing.T) {
	c := newFakeRoomIDCache()
	src := &fakeRoomIDSource{err: errors.New("store down")}
	m := NewMembership(c, src, zap.NewNop().Sugar())

	_, err := m.RoomIDs(context.Background(), "u1")
	require.Error(t, err)
	require.Equal(t, 0, c.sets)
}
