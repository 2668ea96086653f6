package websocket

import "errors"

var (
	ErrClientQueueFull  = errors.New("client event queue is full")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrInvalidEvent     = errors.New("invalid event format")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotJoined        = errors.New("connection is not joined to room")
)
