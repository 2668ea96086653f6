package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avelichko/triplink/internal/database"
	"github.com/avelichko/triplink/internal/models"
	"github.com/avelichko/triplink/internal/websocket"
)

// fakeStore повторяет контракт Persistent Store Gateway в памяти:
// дедупликация по client id, квитанции insert-if-absent
type fakeStore struct {
	mu sync.Mutex

	rooms     map[uuid.UUID]bool
	messages  map[string]*models.Message
	delivered map[string]int
	read      map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:     make(map[uuid.UUID]bool),
		messages:  make(map[string]*models.Message),
		delivered: make(map[string]int),
		read:      make(map[string]int),
	}
}

func (s *fakeStore) GetRoom(_ context.Context, id string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, err := uuid.Parse(id)
	if err != nil || !s.rooms[roomID] {
		return nil, database.ErrRoomNotFound
	}
	return &models.Room{ID: roomID}, nil
}

func (s *fakeStore) InsertMessageIfAbsent(_ context.Context, message *models.Message) (*models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.messages[message.ClientID]; ok {
		return existing, false, nil
	}

	message.ID = uuid.New()
	s.messages[message.ClientID] = message
	return message, true, nil
}

func (s *fakeStore) GetMessageByClientID(_ context.Context, clientID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[clientID]
	if !ok {
		return nil, database.ErrMessageNotFound
	}
	return message, nil
}

func (s *fakeStore) UpdateMessage(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[message.ClientID] = message
	return nil
}

func (s *fakeStore) DeleteMessage(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, clientID)
	return nil
}

func (s *fakeStore) InsertDeliveredReceipt(_ context.Context, receipt *models.DeliveredReceipt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := receipt.ClientMessageID + "/" + receipt.UserID.String()
	s.delivered[key]++
	return s.delivered[key] == 1, nil
}

func (s *fakeStore) InsertReadReceipt(_ context.Context, receipt *models.ReadReceipt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := receipt.ClientMessageID + "/" + receipt.UserID.String()
	s.read[key]++
	return s.read[key] == 1, nil
}

func (s *fakeStore) UpdateLastSeen(context.Context, string) error { return nil }

func (s *fakeStore) readRows(clientMessageID string, userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.read[clientMessageID+"/"+userID.String()] > 0 {
		return 1
	}
	return 0
}

type chatFixture struct {
	store    *fakeStore
	hub      *websocket.Hub
	handler  *ChatHandler
	roomID   uuid.UUID
	sender   *websocket.Client
	receiver *websocket.Client
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	store := newFakeStore()
	hub := websocket.NewHub(nil, nil, nil, zap.NewNop().Sugar())
	handler := NewChatHandler(store, hub, zap.NewNop().Sugar())

	roomID := uuid.New()
	store.rooms[roomID] = true

	sender := websocket.NewClient(hub, nil, uuid.New())
	receiver := websocket.NewClient(hub, nil, uuid.New())
	hub.JoinRoom(sender, roomID)
	hub.JoinRoom(receiver, roomID)

	return &chatFixture{
		store:    store,
		hub:      hub,
		handler:  handler,
		roomID:   roomID,
		sender:   sender,
		receiver: receiver,
	}
}

func (f *chatFixture) event(t *testing.T, evType websocket.EventType, data interface{}) *websocket.Event {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	return &websocket.Event{
		Type:   evType,
		RoomID: &f.roomID,
		Data:   raw,
	}
}

func received(t *testing.T, c *websocket.Client, evType websocket.EventType) []websocket.Event {
	t.Helper()

	var out []websocket.Event
	for {
		select {
		case payload := <-c.Send:
			var ev websocket.Event
			require.NoError(t, json.Unmarshal(payload, &ev))
			if ev.Type == evType {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

func TestSendMessageDeliveredOnce(t *testing.T) {
	f := newChatFixture(t)

	ev := f.event(t, websocket.TypeSendMessage, websocket.SendMessagePayload{
		ClientMessageID: "c1",
		Text:            "hi",
	})

	require.NoError(t, f.handler.HandleEvent(f.sender, ev))

	events := received(t, f.receiver, websocket.TypeMessageReceived)
	require.Len(t, events, 1)

	var payload websocket.MessageReceivedPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	require.Equal(t, "c1", payload.ClientMessageID)
	require.Equal(t, "hi", payload.Text)
	require.Equal(t, f.sender.UserID, payload.SenderID)
	require.Equal(t, f.roomID, payload.RoomID)
}

func TestSendMessageRetryIsIdempotent(t *testing.T) {
	f := newChatFixture(t)

	ev := f.event(t, websocket.TypeSendMessage, websocket.SendMessagePayload{
		ClientMessageID: "c1",
		Text:            "hi",
	})

	require.NoError(t, f.handler.HandleEvent(f.sender, ev))
	firstID := f.store.messages["c1"].ID

	// Ретрай после потерянного ack: та же строка, без второй рассылки
	require.NoError(t, f.handler.HandleEvent(f.sender, ev))

	require.Len(t, f.store.messages, 1)
	require.Equal(t, firstID, f.store.messages["c1"].ID)
	require.Len(t, received(t, f.receiver, websocket.TypeMessageReceived), 1)
}

func TestSendMessageRoomNotFound(t *testing.T) {
	f := newChatFixture(t)

	// Подписка в hub есть, а комнаты в базе нет
	missing := uuid.New()
	f.hub.JoinRoom(f.sender, missing)

	raw, err := json.Marshal(websocket.SendMessagePayload{ClientMessageID: "c1", Text: "hi"})
	require.NoError(t, err)

	err = f.handler.HandleEvent(f.sender, &websocket.Event{
		Type:   websocket.TypeSendMessage,
		RoomID: &missing,
		Data:   raw,
	})
	require.ErrorIs(t, err, database.ErrRoomNotFound)
	require.Empty(t, f.store.messages)
}

func TestRoomScopedEventsRequireJoin(t *testing.T) {
	f := newChatFixture(t)

	stranger := websocket.NewClient(f.hub, nil, uuid.New())

	sendEv := f.event(t, websocket.TypeSendMessage, websocket.SendMessagePayload{
		ClientMessageID: "c1",
		Text:            "hi",
	})
	require.ErrorIs(t, f.handler.HandleEvent(stranger, sendEv), websocket.ErrNotJoined)
	require.Empty(t, f.store.messages)

	typingEv := f.event(t, websocket.TypeStartTyping, nil)
	require.ErrorIs(t, f.handler.HandleEvent(stranger, typingEv), websocket.ErrNotJoined)

	readEv := f.event(t, websocket.TypeMarkAsRead, websocket.MarkAsReadPayload{
		ClientMessageID: "c1",
	})
	require.ErrorIs(t, f.handler.HandleEvent(stranger, readEv), websocket.ErrNotJoined)
	require.Equal(t, 0, f.store.readRows("c1", stranger.UserID))
}

func TestMarkAsReadPersistsOnceBroadcastsEveryCall(t *testing.T) {
	f := newChatFixture(t)

	ev := f.event(t, websocket.TypeMarkAsRead, websocket.MarkAsReadPayload{
		ClientMessageID: "c1",
	})

	require.NoError(t, f.handler.HandleEvent(f.receiver, ev))
	require.NoError(t, f.handler.HandleEvent(f.receiver, ev))

	// Строка одна, рассылка на каждый вызов
	require.Equal(t, 1, f.store.readRows("c1", f.receiver.UserID))
	require.Len(t, received(t, f.sender, websocket.TypeReadReceipt), 2)
}

func TestMarkAsDeliveredBroadcasts(t *testing.T) {
	f := newChatFixture(t)

	ev := f.event(t, websocket.TypeMarkAsDelivered, websocket.MarkAsReadPayload{
		ClientMessageID: "c1",
	})

	require.NoError(t, f.handler.HandleEvent(f.receiver, ev))

	events := received(t, f.sender, websocket.TypeDeliveredReceipt)
	require.Len(t, events, 1)

	var payload websocket.ReceiptPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	require.Equal(t, "c1", payload.ClientMessageID)
	require.Equal(t, f.receiver.UserID, payload.UserID)
}

func TestEditMessageOnlyByAuthor(t *testing.T) {
	f := newChatFixture(t)

	sendEv := f.event(t, websocket.TypeSendMessage, websocket.SendMessagePayload{
		ClientMessageID: "c1",
		Text:            "hi",
	})
	require.NoError(t, f.handler.HandleEvent(f.sender, sendEv))

	editEv := f.event(t, websocket.TypeEditMessage, websocket.EditMessagePayload{
		ClientMessageID: "c1",
		NewText:         "bye",
	})

	err := f.handler.HandleEvent(f.receiver, editEv)
	require.ErrorIs(t, err, websocket.ErrUnauthorized)

	require.NoError(t, f.handler.HandleEvent(f.sender, editEv))
	require.Equal(t, "bye", f.store.messages["c1"].Text)
	require.Len(t, received(t, f.receiver, websocket.TypeMessageEdited), 1)
}

func TestMarkAsDeletedBroadcastsReceipt(t *testing.T) {
	f := newChatFixture(t)

	sendEv := f.event(t, websocket.TypeSendMessage, websocket.SendMessagePayload{
		ClientMessageID: "c1",
		Text:            "hi",
	})
	require.NoError(t, f.handler.HandleEvent(f.sender, sendEv))
	received(t, f.receiver, websocket.TypeMessageReceived)

	delEv := f.event(t, websocket.TypeMarkAsDeleted, websocket.MarkAsDeletedPayload{
		ClientMessageID: "c1",
	})
	require.NoError(t, f.handler.HandleEvent(f.sender, delEv))

	require.NotContains(t, f.store.messages, "c1")

	events := received(t, f.receiver, websocket.TypeDeletedReceipt)
	require.Len(t, events, 1)

	var payload websocket.DeletedReceiptPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	require.Equal(t, "c1", payload.ClientMessageID)
	require.Equal(t, f.roomID, payload.RoomID)
}

func TestGetGroupMembersAnswersRequester(t *testing.T) {
	f := newChatFixture(t)

	ev := &websocket.Event{
		Type:   websocket.TypeGetGroupMembers,
		RoomID: &f.roomID,
	}
	require.NoError(t, f.handler.HandleEvent(f.sender, ev))

	events := received(t, f.sender, websocket.TypeGroupMembers)
	require.Len(t, events, 1)

	var payload websocket.GroupMembersPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	require.ElementsMatch(t, []uuid.UUID{f.sender.UserID, f.receiver.UserID}, payload.UserIDs)

	require.Empty(t, received(t, f.receiver, websocket.TypeGroupMembers))
}

func TestSendMessageRequiresRoomAndPayload(t *testing.T) {
	f := newChatFixture(t)

	raw, err := json.Marshal(websocket.SendMessagePayload{ClientMessageID: "c1", Text: "hi"})
	require.NoError(t, err)

	err = f.handler.HandleEvent(f.sender, &websocket.Event{Type: websocket.TypeSendMessage, Data: raw})
	require.ErrorIs(t, err, websocket.ErrInvalidEvent)

	err = f.handler.HandleEvent(f.sender, f.event(t, websocket.TypeSendMessage, websocket.SendMessagePayload{
		ClientMessageID: "c2",
	}))
	require.ErrorIs(t, err, websocket.ErrInvalidEvent)
}
