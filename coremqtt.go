// Package coremqtt provides the publish and acknowledgment paths of an MQTT v5.0 client connection.
// It serializes PUBLISH packets with pkg/packets, sends them over a Transport and keeps the
// delivery state of QoS 1 and QoS 2 messages in an unack.Store.
package coremqtt

import (
	"errors"
	"io"

	"go.uber.org/zap"
)

// Error
var (
	ErrNotConnected      = errors.New("not connected")
	ErrDisconnectPending = errors.New("disconnect pending")
	ErrStateCollision    = errors.New("packet id already in use")
	ErrSendFailed        = errors.New("send failed")
	ErrIllegalState      = errors.New("illegal delivery state")
)

// ConnectionStatus is the status of the connection the Context sends on.
type ConnectionStatus int32

const (
	NotConnected ConnectionStatus = iota
	Connected
	DisconnectPending
)

func (s ConnectionStatus) String() string {
	switch s {
	case NotConnected:
		return "not_connected"
	case Connected:
		return "connected"
	case DisconnectPending:
		return "disconnect_pending"
	}
	return "unknown"
}

func (s ConnectionStatus) err() error {
	switch s {
	case Connected:
		return nil
	case DisconnectPending:
		return ErrDisconnectPending
	}
	return ErrNotConnected
}

// Transport sends serialized packets to the broker.
// Publish passes a net.Buffers to Transport, so a net.Conn sends a PUBLISH with a single writev.
type Transport interface {
	io.Writer
}

var zaplog *zap.Logger

func init() {
	zaplog = zap.NewNop()
}

// LoggerWithField release fields to a new logger.
func LoggerWithField(fields ...zap.Field) *zap.Logger {
	return zaplog.With(fields...)
}
