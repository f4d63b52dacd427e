package coremqtt

import (
	"sync"

	"go.uber.org/zap"

	"github.com/DrmagicE/coremqtt/persistence/unack"
	"github.com/DrmagicE/coremqtt/pkg/packets"
)

type Options func(c *Context)

// WithLogger set the logger of the package.
func WithLogger(logger *zap.Logger) Options {
	return func(c *Context) {
		zaplog = logger
	}
}

// WithClientID set the client identifier used in logs.
func WithClientID(clientID string) Options {
	return func(c *Context) {
		c.clientID = clientID
	}
}

// WithStore set the delivery state store. Default to an in-memory store.
func WithStore(store unack.Store) Options {
	return func(c *Context) {
		c.store = store
	}
}

// WithStats set the statistics the Context reports to. Contexts can share one Stats.
func WithStats(stats *Stats) Options {
	return func(c *Context) {
		c.stats = stats
	}
}

// WithAckCallback set the function called with every acknowledgment handled by HandleAck.
// The Ack and its properties are only valid until the callback returns.
func WithAckCallback(fn func(ack *packets.Ack)) Options {
	return func(c *Context) {
		c.ackCallback = fn
	}
}

// WithAckScratchSize set the maximum number of user properties HandleAck can decode from one packet.
func WithAckScratchSize(n int) Options {
	return func(c *Context) {
		c.scratch = make([]packets.UserProperty, n)
	}
}

// WithStateLocker set the lock held while the delivery state is reserved, the packet is sent and the
// state is updated. Default to a sync.Mutex.
func WithStateLocker(l sync.Locker) Options {
	return func(c *Context) {
		c.mu = l
	}
}
