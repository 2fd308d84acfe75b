package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed    = errors.New("client is closed")
	ErrNotConnected    = errors.New("client is not connected")
	ErrInvalidConfig   = errors.New("invalid client configuration")
	ErrCommandRejected = errors.New("command rejected by server")
)
