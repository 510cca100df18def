package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrConnectorFailed = errors.New("connector exceeded max reconnect attempts")
	ErrInvalidSpread   = errors.New("invalid spread value")
	ErrContextDone     = errors.New("context cancelled")
)
