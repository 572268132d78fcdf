package domain

import "errors"

var (
	ErrInvalidRoomKey = errors.New("invalid room key")
	ErrRoomNotFound   = errors.New("room not found")
	ErrInvalidMessage = errors.New("invalid message payload")
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)
