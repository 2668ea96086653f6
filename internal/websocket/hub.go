package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/avelichko/triplink/internal/services"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Таймаут на операции с Redis из жизненного цикла соединения
const presenceOpTimeout = 3 * time.Second

type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Rooms  map[uuid.UUID]bool
	Hub    *Hub
	mu     sync.RWMutex
	closed bool
}

// Hub держит process-local маршрутизацию: соединения, соединения по
// пользователям (у одного пользователя их может быть несколько) и комнаты.
// За пределами одного процесса эта карта не авторитетна: масштабирование
// требует sticky-роутинга или pub/sub-бэкплейна поверх SendToRoom/SendToUser.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Соединения по UserID: presence считается по размеру множества
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Соединения в комнатах
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastEvent

	mu sync.RWMutex

	presence   services.PresenceTracker
	membership services.RoomMembership
	authorizer services.RoomAuthorizer
	logger     *zap.SugaredLogger

	// Записи в Redis-зеркало presence сериализуются по пользователю
	presenceMu    sync.Mutex
	presenceLocks map[uuid.UUID]*sync.Mutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type BroadcastEvent struct {
	RoomID  *uuid.UUID
	UserID  *uuid.UUID // nil = всем в комнате
	Payload []byte
	Exclude uuid.UUID
}

// NewHub создает новый Hub
func NewHub(presence services.PresenceTracker, membership services.RoomMembership, authorizer services.RoomAuthorizer, logger *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:       make(map[uuid.UUID]*Client),
		userClients:   make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:         make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan *BroadcastEvent),
		presence:      presence,
		membership:    membership,
		authorizer:    authorizer,
		logger:        logger,
		presenceLocks: make(map[uuid.UUID]*sync.Mutex),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()

	h.clients[client.ID] = client

	// userOnline уходит только при переходе 0→1 соединений пользователя:
	// второе устройство не должно дублировать статус
	first := false
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
		first = true
	}
	h.userClients[client.UserID][client.ID] = client

	if first {
		h.announcePresence(client.UserID, TypeUserOnline)
	}

	h.mu.Unlock()

	h.logger.Debugf("client registered: %s (user: %s)", client.ID, client.UserID)

	if first {
		go h.syncPresence(client.UserID)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}

	// Удаляем из всех комнат одним проходом под замком
	client.mu.Lock()
	for roomID := range client.Rooms {
		if room, ok := h.rooms[roomID]; ok {
			delete(room, client.ID)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
		delete(client.Rooms, roomID)
	}
	client.mu.Unlock()

	// userOffline — только когда закрылось последнее соединение пользователя
	last := false
	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
			last = true
			h.announcePresence(client.UserID, TypeUserOffline)
		}
	}

	delete(h.clients, client.ID)
	client.closeSend()

	h.mu.Unlock()

	h.logger.Debugf("client unregistered: %s (user: %s)", client.ID, client.UserID)

	if last {
		go h.syncPresence(client.UserID)
	}
}

// Authorize спрашивает у коллаборатора, можно ли пользователю в комнату
func (h *Hub) Authorize(client *Client, roomID uuid.UUID) (bool, error) {
	if h.authorizer == nil {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(h.ctx, presenceOpTimeout)
	defer cancel()

	return h.authorizer.CanJoin(ctx, client.UserID, roomID)
}

// JoinRoom подписывает соединение на комнату. Повторный join — no-op.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}

	if _, ok := h.rooms[roomID][client.ID]; ok {
		return
	}

	h.rooms[roomID][client.ID] = client
	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()
}

// LeaveRoom отписывает соединение от одной комнаты
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[roomID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}

	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()
}

// SendToUser отправляет событие на все соединения пользователя
func (h *Hub) SendToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.userClients[userID]; ok {
		for _, client := range clients {
			select {
			case client.Send <- payload:
			default:
				h.logger.Warnf("client %s send channel full", client.ID)
			}
		}
	}
}

// SendToRoom рассылает событие всем соединениям, подписанным на комнату
// на момент вызова. Fire-and-forget: отстающие соединения догоняют историю
// через Persistent Store Gateway.
func (h *Hub) SendToRoom(roomID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.sendToRoomExcept(roomID, payload, uuid.Nil)
}

// SendToRoomExcept — то же, но без одного соединения (обычно отправителя)
func (h *Hub) SendToRoomExcept(roomID uuid.UUID, payload []byte, excludeID uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.sendToRoomExcept(roomID, payload, excludeID)
}

func (h *Hub) broadcastEvent(be *BroadcastEvent) {
	if be.RoomID != nil {
		h.SendToRoomExcept(*be.RoomID, be.Payload, be.Exclude)
	} else if be.UserID != nil {
		h.SendToUser(*be.UserID, be.Payload)
	}
}

func (h *Hub) sendToRoomExcept(roomID uuid.UUID, payload []byte, excludeID uuid.UUID) {
	if room, ok := h.rooms[roomID]; ok {
		for _, client := range room {
			if client.ID != excludeID {
				select {
				case client.Send <- payload:
				default:
					h.logger.Warnf("client %s send channel full", client.ID)
				}
			}
		}
	}
}

// announcePresence рассылает userOnline/userOffline всем остальным
// пользователям. Вызывается под h.mu.
func (h *Hub) announcePresence(userID uuid.UUID, status EventType) {
	ev := Event{
		Type:      status,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	for _, client := range h.clients {
		if client.UserID == userID {
			continue
		}
		select {
		case client.Send <- data:
		default:
		}
	}
}

func (h *Hub) presenceLock(userID uuid.UUID) *sync.Mutex {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	mu, ok := h.presenceLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		h.presenceLocks[userID] = mu
	}
	return mu
}

// syncPresence приводит Redis-зеркало к фактическому состоянию пользователя
// на момент применения. Переходы одного пользователя сериализуются
// per-user замком: при дисконнекте с мгновенным реконнектом запоздавший
// markOffline не может затереть свежий онлайн — каждая запись перечитывает
// состояние под замком. Недоступный Redis соединение не роняет.
func (h *Hub) syncPresence(userID uuid.UUID) {
	lock := h.presenceLock(userID)
	lock.Lock()
	defer lock.Unlock()

	h.mu.RLock()
	_, online := h.userClients[userID]
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), presenceOpTimeout)
	defer cancel()

	if h.presence != nil {
		var err error
		if online {
			err = h.presence.MarkOnline(ctx, userID)
		} else {
			err = h.presence.MarkOffline(ctx, userID)
		}
		if err != nil {
			h.logger.Warnf("presence sync failed for %s: %v", userID, err)
		}
	}

	// Заодно греем кэш комнат свежеподключившегося
	if online && h.membership != nil {
		ids, err := h.membership.RoomIDs(ctx, userID.String())
		if err != nil {
			h.logger.Warnf("room set load failed for %s: %v", userID, err)
			return
		}
		h.logger.Debugf("user %s belongs to %d rooms", userID, len(ids))
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ev := Event{
		Type:      TypePing,
		Timestamp: time.Now().UTC(),
	}

	if data, err := json.Marshal(ev); err == nil {
		for _, client := range h.clients {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

// OnlineUsers возвращает пользователей хотя бы с одним соединением
func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	return users
}

// RoomUsers возвращает пользователей, подписанных на комнату сейчас
func (h *Hub) RoomUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userMap := make(map[uuid.UUID]bool)
	if room, ok := h.rooms[roomID]; ok {
		for _, client := range room {
			userMap[client.UserID] = true
		}
	}

	users := make([]uuid.UUID, 0, len(userMap))
	for userID := range userMap {
		users = append(users, userID)
	}
	return users
}
