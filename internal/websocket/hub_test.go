package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(nil, nil, nil, zap.NewNop().Sugar())
}

func newTestClient(h *Hub, userID uuid.UUID) *Client {
	return NewClient(h, nil, userID)
}

// drainEvents вычитывает все накопленные события клиента
func drainEvents(t *testing.T, c *Client) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case payload, ok := <-c.Send:
			if !ok {
				return events
			}
			var ev Event
			require.NoError(t, json.Unmarshal(payload, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func countEvents(events []Event, evType EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == evType {
			n++
		}
	}
	return n
}

func TestJoinRoomIdempotent(t *testing.T) {
	h := newTestHub()
	roomID := uuid.New()
	client := newTestClient(h, uuid.New())

	h.JoinRoom(client, roomID)
	h.JoinRoom(client, roomID)

	require.Len(t, h.RoomUsers(roomID), 1)
	require.True(t, client.IsInRoom(roomID))
	require.Len(t, client.GetRooms(), 1)
}

func TestLeaveRoom(t *testing.T) {
	h := newTestHub()
	roomID := uuid.New()
	otherRoom := uuid.New()
	client := newTestClient(h, uuid.New())

	h.JoinRoom(client, roomID)
	h.JoinRoom(client, otherRoom)
	h.LeaveRoom(client, roomID)

	require.Empty(t, h.RoomUsers(roomID))
	require.False(t, client.IsInRoom(roomID))
	require.True(t, client.IsInRoom(otherRoom))
}

func TestUnregisterSweepsAllRooms(t *testing.T) {
	h := newTestHub()
	room1 := uuid.New()
	room2 := uuid.New()
	client := newTestClient(h, uuid.New())

	h.registerClient(client)
	h.JoinRoom(client, room1)
	h.JoinRoom(client, room2)

	h.unregisterClient(client)

	require.Empty(t, h.RoomUsers(room1))
	require.Empty(t, h.RoomUsers(room2))
	require.Empty(t, h.OnlineUsers())
}

func TestPresenceRefCounted(t *testing.T) {
	h := newTestHub()
	userID := uuid.New()

	observer := newTestClient(h, uuid.New())
	h.registerClient(observer)

	first := newTestClient(h, userID)
	second := newTestClient(h, userID)

	h.registerClient(first)
	h.registerClient(second)

	// Второе устройство не дублирует userOnline
	events := drainEvents(t, observer)
	require.Equal(t, 1, countEvents(events, TypeUserOnline))

	// Пользователь онлайн, пока открыто хотя бы одно соединение
	h.unregisterClient(first)
	require.Contains(t, h.OnlineUsers(), userID)
	events = drainEvents(t, observer)
	require.Equal(t, 0, countEvents(events, TypeUserOffline))

	h.unregisterClient(second)
	require.NotContains(t, h.OnlineUsers(), userID)
	events = drainEvents(t, observer)
	require.Equal(t, 1, countEvents(events, TypeUserOffline))
}

func TestPresenceNotAnnouncedToSelf(t *testing.T) {
	h := newTestHub()
	userID := uuid.New()

	first := newTestClient(h, userID)
	h.registerClient(first)
	drainEvents(t, first)

	// Переподключение второго устройства не шлет статус первому:
	// для остальных пользователь и так онлайн
	second := newTestClient(h, userID)
	h.registerClient(second)

	events := drainEvents(t, first)
	require.Equal(t, 0, countEvents(events, TypeUserOnline))
}

func TestSendToRoomSnapshot(t *testing.T) {
	h := newTestHub()
	roomID := uuid.New()

	member := newTestClient(h, uuid.New())
	left := newTestClient(h, uuid.New())
	stranger := newTestClient(h, uuid.New())

	h.JoinRoom(member, roomID)
	h.JoinRoom(left, roomID)
	h.LeaveRoom(left, roomID)

	h.SendToRoom(roomID, []byte(`{"type":"ping","timestamp":"2026-01-01T00:00:00Z"}`))

	require.Len(t, drainEvents(t, member), 1)
	require.Empty(t, drainEvents(t, left))
	require.Empty(t, drainEvents(t, stranger))
}

func TestSendToRoomExcept(t *testing.T) {
	h := newTestHub()
	roomID := uuid.New()

	sender := newTestClient(h, uuid.New())
	receiver := newTestClient(h, uuid.New())

	h.JoinRoom(sender, roomID)
	h.JoinRoom(receiver, roomID)

	h.SendToRoomExcept(roomID, []byte(`{"type":"ping","timestamp":"2026-01-01T00:00:00Z"}`), sender.ID)

	require.Empty(t, drainEvents(t, sender))
	require.Len(t, drainEvents(t, receiver), 1)
}

// recordingTracker пишет presence-переходы в память; замедленный
// MarkOffline воспроизводит запоздавшую запись в Redis
type recordingTracker struct {
	mu           sync.Mutex
	online       map[uuid.UUID]bool
	offlineDelay time.Duration
}

func newRecordingTracker(offlineDelay time.Duration) *recordingTracker {
	return &recordingTracker{
		online:       make(map[uuid.UUID]bool),
		offlineDelay: offlineDelay,
	}
}

func (r *recordingTracker) MarkOnline(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = true
	return nil
}

func (r *recordingTracker) MarkOffline(_ context.Context, userID uuid.UUID) error {
	time.Sleep(r.offlineDelay)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = false
	return nil
}

func (r *recordingTracker) isOnline(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

func TestPresenceSyncSurvivesFastReconnect(t *testing.T) {
	tracker := newRecordingTracker(100 * time.Millisecond)
	h := NewHub(tracker, nil, nil, zap.NewNop().Sugar())
	userID := uuid.New()

	first := newTestClient(h, userID)
	h.registerClient(first)
	h.unregisterClient(first)

	// Реконнект сразу после дисконнекта: медленный markOffline
	// не должен затереть свежий онлайн
	second := newTestClient(h, userID)
	h.registerClient(second)

	time.Sleep(3 * tracker.offlineDelay)

	require.Contains(t, h.OnlineUsers(), userID)
	require.True(t, tracker.isOnline(userID))
}

func TestSendEventAfterStop(t *testing.T) {
	h := newTestHub()
	client := newTestClient(h, uuid.New())
	h.registerClient(client)

	h.Stop()

	require.ErrorIs(t, client.SendEvent(TypePing, nil, nil), ErrConnectionClosed)
	require.NotPanics(t, func() { client.SendError("shutting down") })
}

func TestSendToUserReachesAllConnections(t *testing.T) {
	h := newTestHub()
	userID := uuid.New()

	first := newTestClient(h, userID)
	second := newTestClient(h, userID)
	h.registerClient(first)
	h.registerClient(second)

	h.SendToUser(userID, []byte(`{"type":"ping","timestamp":"2026-01-01T00:00:00Z"}`))

	require.Len(t, drainEvents(t, first), 1)
	require.Len(t, drainEvents(t, second), 1)
}
