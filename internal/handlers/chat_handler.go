package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avelichko/triplink/internal/models"
	"github.com/avelichko/triplink/internal/services"
	"github.com/avelichko/triplink/internal/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const storeOpTimeout = 5 * time.Second

// ChatHandler обрабатывает прикладные события соединений: прием сообщений
// с дедупликацией, квитанции, набор текста, правки и удаления.
type ChatHandler struct {
	store  services.ChatStore
	hub    *websocket.Hub
	logger *zap.SugaredLogger
}

func NewChatHandler(store services.ChatStore, hub *websocket.Hub, logger *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{
		store:  store,
		hub:    hub,
		logger: logger,
	}
}

func (h *ChatHandler) HandleEvent(client *websocket.Client, ev *websocket.Event) error {
	switch ev.Type {
	case websocket.TypeSendMessage:
		return h.handleSendMessage(client, ev)

	case websocket.TypeStartTyping:
		return h.handleTyping(client, ev, websocket.TypeUserTyping)

	case websocket.TypeStopTyping:
		return h.handleTyping(client, ev, websocket.TypeUserStoppedTyping)

	case websocket.TypeMarkAsRead:
		return h.handleReceipt(client, ev, websocket.TypeReadReceipt)

	case websocket.TypeMarkAsDelivered:
		return h.handleReceipt(client, ev, websocket.TypeDeliveredReceipt)

	case websocket.TypeEditMessage:
		return h.handleEditMessage(client, ev)

	case websocket.TypeMarkAsDeleted:
		return h.handleMarkAsDeleted(client, ev)

	case websocket.TypeGetGroupMembers:
		return h.handleGetGroupMembers(client, ev)

	default:
		h.logger.Warnf("unknown event type: %s", ev.Type)
		return nil
	}
}

// Ingest сохраняет входящее сообщение. Повторный вызов с тем же
// clientMessageID идемпотентен: возвращается существующая строка,
// created=false, и никакой повторной рассылки не происходит.
// Гонка двух одинаковых ingest разрешается уникальным индексом в базе.
func (h *ChatHandler) Ingest(ctx context.Context, roomID, senderID uuid.UUID, clientMessageID, text string, voyageID *uuid.UUID) (*models.Message, bool, error) {
	if _, err := h.store.GetRoom(ctx, roomID.String()); err != nil {
		return nil, false, err
	}

	message := &models.Message{
		ClientID:  clientMessageID,
		RoomID:    roomID,
		SenderID:  senderID,
		Text:      text,
		VoyageID:  voyageID,
		CreatedAt: time.Now().UTC(),
	}

	saved, created, err := h.store.InsertMessageIfAbsent(ctx, message)
	if err != nil {
		return nil, false, err
	}

	if created {
		go h.touchLastSeen(senderID)
	}

	return saved, created, nil
}

func (h *ChatHandler) handleSendMessage(client *websocket.Client, ev *websocket.Event) error {
	if ev.RoomID == nil {
		return websocket.ErrInvalidEvent
	}
	if !client.IsInRoom(*ev.RoomID) {
		return websocket.ErrNotJoined
	}

	var payload websocket.SendMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	if payload.Text == "" || payload.ClientMessageID == "" {
		return websocket.ErrInvalidEvent
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	// Отправителем считается владелец соединения, sender_id из payload
	// на веру не принимается
	saved, created, err := h.Ingest(ctx, *ev.RoomID, client.UserID, payload.ClientMessageID, payload.Text, payload.VoyageID)
	if err != nil {
		return err
	}

	if !created {
		// Ретрай клиента после потерянного ack: строка уже есть,
		// повторной рассылки не делаем
		h.logger.Debugf("duplicate message %s from %s", payload.ClientMessageID, client.UserID)
		return nil
	}

	return h.broadcast(websocket.TypeMessageReceived, *ev.RoomID, client.UserID, websocket.MessageReceivedPayload{
		RoomID:          saved.RoomID,
		SenderID:        saved.SenderID,
		ClientMessageID: saved.ClientID,
		Text:            saved.Text,
		Timestamp:       saved.CreatedAt,
		VoyageID:        saved.VoyageID,
	})
}

func (h *ChatHandler) handleTyping(client *websocket.Client, ev *websocket.Event, out websocket.EventType) error {
	if ev.RoomID == nil {
		return websocket.ErrInvalidEvent
	}
	if !client.IsInRoom(*ev.RoomID) {
		return websocket.ErrNotJoined
	}

	payload := websocket.TypingPayload{
		RoomID: *ev.RoomID,
		UserID: client.UserID,
	}

	raw, err := h.envelope(out, *ev.RoomID, client.UserID, payload)
	if err != nil {
		return err
	}

	// Индикатор набора не показываем самому набирающему
	h.hub.SendToRoomExcept(*ev.RoomID, raw, client.ID)
	return nil
}

// handleReceipt записывает read/delivered-квитанцию и рассылает ее комнате.
// Запись insert-if-absent, рассылка — на каждый вызов: UI других участников
// обновляется даже при повторе. Ошибка записи подавляет рассылку, клиент
// ретраит с тем же client_message_id.
func (h *ChatHandler) handleReceipt(client *websocket.Client, ev *websocket.Event, out websocket.EventType) error {
	if ev.RoomID == nil {
		return websocket.ErrInvalidEvent
	}
	if !client.IsInRoom(*ev.RoomID) {
		return websocket.ErrNotJoined
	}

	var payload websocket.MarkAsReadPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	if payload.ClientMessageID == "" {
		return websocket.ErrInvalidEvent
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	now := time.Now().UTC()

	var err error
	switch out {
	case websocket.TypeReadReceipt:
		_, err = h.store.InsertReadReceipt(ctx, &models.ReadReceipt{
			ClientMessageID: payload.ClientMessageID,
			UserID:          client.UserID,
			ReadAt:          now,
		})
	case websocket.TypeDeliveredReceipt:
		_, err = h.store.InsertDeliveredReceipt(ctx, &models.DeliveredReceipt{
			ClientMessageID: payload.ClientMessageID,
			UserID:          client.UserID,
			DeliveredAt:     now,
		})
	}
	if err != nil {
		return err
	}

	return h.broadcast(out, *ev.RoomID, client.UserID, websocket.ReceiptPayload{
		RoomID:          *ev.RoomID,
		ClientMessageID: payload.ClientMessageID,
		UserID:          client.UserID,
		Timestamp:       now,
	})
}

func (h *ChatHandler) handleEditMessage(client *websocket.Client, ev *websocket.Event) error {
	if ev.RoomID == nil {
		return websocket.ErrInvalidEvent
	}

	var payload websocket.EditMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	if payload.ClientMessageID == "" || payload.NewText == "" {
		return websocket.ErrInvalidEvent
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	message, err := h.store.GetMessageByClientID(ctx, payload.ClientMessageID)
	if err != nil {
		return err
	}

	if message.SenderID != client.UserID {
		return websocket.ErrUnauthorized
	}

	message.Text = payload.NewText
	if err := h.store.UpdateMessage(ctx, message); err != nil {
		return err
	}

	return h.broadcast(websocket.TypeMessageEdited, message.RoomID, client.UserID, websocket.MessageEditedPayload{
		RoomID:          message.RoomID,
		ClientMessageID: message.ClientID,
		NewText:         payload.NewText,
		Timestamp:       time.Now().UTC(),
	})
}

func (h *ChatHandler) handleMarkAsDeleted(client *websocket.Client, ev *websocket.Event) error {
	if ev.RoomID == nil {
		return websocket.ErrInvalidEvent
	}

	var payload websocket.MarkAsDeletedPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	if payload.ClientMessageID == "" {
		return websocket.ErrInvalidEvent
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	message, err := h.store.GetMessageByClientID(ctx, payload.ClientMessageID)
	if err != nil {
		return err
	}

	if message.SenderID != client.UserID {
		return websocket.ErrUnauthorized
	}

	if err := h.store.DeleteMessage(ctx, payload.ClientMessageID); err != nil {
		return err
	}

	return h.broadcast(websocket.TypeDeletedReceipt, message.RoomID, client.UserID, websocket.DeletedReceiptPayload{
		RoomID:          message.RoomID,
		ClientMessageID: message.ClientID,
	})
}

// handleGetGroupMembers отвечает запросившему соединению текущим
// набором подписчиков комнаты
func (h *ChatHandler) handleGetGroupMembers(client *websocket.Client, ev *websocket.Event) error {
	if ev.RoomID == nil {
		return websocket.ErrInvalidEvent
	}

	return client.SendEvent(websocket.TypeGroupMembers, ev.RoomID, websocket.GroupMembersPayload{
		RoomID:  *ev.RoomID,
		UserIDs: h.hub.RoomUsers(*ev.RoomID),
	})
}

func (h *ChatHandler) envelope(evType websocket.EventType, roomID, userID uuid.UUID, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	ev := websocket.Event{
		Type:      evType,
		RoomID:    &roomID,
		UserID:    userID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}

	return json.Marshal(ev)
}

func (h *ChatHandler) broadcast(evType websocket.EventType, roomID, userID uuid.UUID, data interface{}) error {
	raw, err := h.envelope(evType, roomID, userID, data)
	if err != nil {
		return err
	}

	h.hub.SendToRoom(roomID, raw)
	return nil
}

func (h *ChatHandler) touchLastSeen(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	if err := h.store.UpdateLastSeen(ctx, userID.String()); err != nil {
		h.logger.Warnf("update last seen failed for %s: %v", userID, err)
	}
}
