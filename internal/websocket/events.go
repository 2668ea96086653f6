package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType определяет типы событий wire-протокола
type EventType string

const (
	// Системные типы
	TypePing  EventType = "ping"
	TypePong  EventType = "pong"
	TypeError EventType = "error"

	// Входящие от клиента
	TypeJoinRoom        EventType = "joinRoom"
	TypeLeaveRoom       EventType = "leaveRoom"
	TypeSendMessage     EventType = "sendMessage"
	TypeStartTyping     EventType = "startTyping"
	TypeStopTyping      EventType = "stopTyping"
	TypeMarkAsRead      EventType = "markAsRead"
	TypeMarkAsDelivered EventType = "markAsDelivered"
	TypeEditMessage     EventType = "editMessage"
	TypeMarkAsDeleted   EventType = "markAsDeleted"
	TypeGetGroupMembers EventType = "getGroupMembers"

	// Исходящие к клиентам
	TypeMessageReceived   EventType = "messageReceived"
	TypeMessageEdited     EventType = "messageEdited"
	TypeDeletedReceipt    EventType = "deletedReceipt"
	TypeUserTyping        EventType = "userTyping"
	TypeUserStoppedTyping EventType = "userStoppedTyping"
	TypeReadReceipt       EventType = "readReceipt"
	TypeDeliveredReceipt  EventType = "deliveredReceipt"
	TypeGroupMembers      EventType = "groupMembers"
	TypeUserOnline        EventType = "userOnline"
	TypeUserOffline       EventType = "userOffline"
)

// Event — конверт всех событий. Имена типов и порядок полей payload —
// часть контракта с клиентами, менять нельзя.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type SendMessagePayload struct {
	SenderID        uuid.UUID  `json:"sender_id"`
	ClientMessageID string     `json:"client_message_id"`
	Text            string     `json:"text"`
	VoyageID        *uuid.UUID `json:"voyage_id,omitempty"`
}

type MessageReceivedPayload struct {
	RoomID          uuid.UUID  `json:"room_id"`
	SenderID        uuid.UUID  `json:"sender_id"`
	ClientMessageID string     `json:"client_message_id"`
	Text            string     `json:"text"`
	Timestamp       time.Time  `json:"timestamp"`
	VoyageID        *uuid.UUID `json:"voyage_id,omitempty"`
}

type TypingPayload struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}

type MarkAsReadPayload struct {
	ClientMessageID string    `json:"client_message_id"`
	UserID          uuid.UUID `json:"user_id"`
}

type ReceiptPayload struct {
	RoomID          uuid.UUID `json:"room_id"`
	ClientMessageID string    `json:"client_message_id"`
	UserID          uuid.UUID `json:"user_id"`
	Timestamp       time.Time `json:"timestamp"`
}

type EditMessagePayload struct {
	ClientMessageID string `json:"client_message_id"`
	NewText         string `json:"new_text"`
}

type MessageEditedPayload struct {
	RoomID          uuid.UUID `json:"room_id"`
	ClientMessageID string    `json:"client_message_id"`
	NewText         string    `json:"new_text"`
	Timestamp       time.Time `json:"timestamp"`
}

type MarkAsDeletedPayload struct {
	UserID          uuid.UUID `json:"user_id"`
	ClientMessageID string    `json:"client_message_id"`
}

type DeletedReceiptPayload struct {
	RoomID          uuid.UUID `json:"room_id"`
	ClientMessageID string    `json:"client_message_id"`
}

type GroupMembersPayload struct {
	RoomID  uuid.UUID   `json:"room_id"`
	UserIDs []uuid.UUID `json:"user_ids"`
}
