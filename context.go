package coremqtt

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/DrmagicE/coremqtt/persistence/unack"
	"github.com/DrmagicE/coremqtt/persistence/unack/mem"
	"github.com/DrmagicE/coremqtt/pkg/codes"
	"github.com/DrmagicE/coremqtt/pkg/packets"
)

const defaultAckScratchSize = 16

// Context is the publish side of one MQTT connection.
// Publish and HandleAck can be called from different goroutines, the delivery state is guarded by the state locker.
// Concurrent HandleAck calls are serialized.
type Context struct {
	mu sync.Locker
	// recvMu serializes HandleAck, the scratch and the Ack passed to the callback are shared.
	recvMu      sync.Mutex
	status      ConnectionStatus
	clientID    string
	transport   Transport
	store       unack.Store
	stats       *Stats
	ackCallback func(ack *packets.Ack)
	// inflight is the store length last reported to stats.
	inflight int
	// scratch holds the user properties of the acknowledgment being handled.
	scratch []packets.UserProperty
}

// New returns a Context sending on transport. The Context starts in NotConnected status.
func New(transport Transport, opts ...Options) *Context {
	c := &Context{
		transport: transport,
		status:    NotConnected,
	}
	for _, fn := range opts {
		fn(c)
	}
	if c.mu == nil {
		c.mu = &sync.Mutex{}
	}
	if c.store == nil {
		c.store = mem.New(c.clientID)
	}
	if c.stats == nil {
		c.stats = NewStats()
	}
	if c.scratch == nil {
		c.scratch = make([]packets.UserProperty, defaultAckScratchSize)
	}
	return c
}

func (c *Context) log() *zap.Logger {
	return zaplog.With(zap.String("client_id", c.clientID))
}

// SetStatus sets the connection status. Connected with cleanStart also clears the delivery state.
func (c *Context) SetStatus(status ConnectionStatus, cleanStart bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status == Connected {
		if err := c.store.Init(cleanStart); err != nil {
			return errors.Wrap(err, "init unack store")
		}
		c.syncInflight()
	}
	c.status = status
	return nil
}

// Status returns the connection status.
func (c *Context) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Stats returns the statistics the Context reports to.
func (c *Context) Stats() *Stats {
	return c.stats
}

// Publish sends a PUBLISH packet. The MQTT v5.0 header is used when b is a valid builder, the MQTT v3.1.1
// header otherwise. For QoS 1 and QoS 2 the packet id is reserved before sending and the delivery state
// moves to unack.StatePublishSent after the packet is sent. A Dup publish may reuse a packet id whose
// state already exists.
func (c *Context) Publish(info *packets.PublishInfo, pid packets.PacketID, b *packets.PropBuilder) (err error) {
	defer func() {
		if err != nil {
			atomic.AddUint64(&c.stats.FailedTotal, 1)
		}
	}()
	if info == nil {
		return errors.Wrap(packets.ErrBadParameter, "nil publish info")
	}
	if info.QoS > packets.Qos0 && pid == 0 {
		return errors.Wrap(packets.ErrBadParameter, "packet id 0 with qos > 0")
	}
	v5 := b != nil && b.IsValid()
	if !v5 {
		b = nil
	}
	remaining, packetSize, err := packets.GetPublishPacketSizeV5(info, b)
	if err != nil {
		return err
	}
	headerSize := packets.PublishPropertiesOffset(remaining)
	if v5 {
		headerSize += packets.RemainLengthSize(b.Size()) + b.Size()
	}
	header := make([]byte, headerSize)
	n, err := packets.SerializePublishHeaderWithoutTopicV5(info, remaining, header, b)
	if err != nil {
		return err
	}
	if err = c.sendPublish(info, pid, header[:n], remaining); err != nil {
		return err
	}
	c.stats.packetSent(packets.PUBLISH, packetSize)
	c.stats.publishSent(v5)
	return nil
}

// sendPublish holds the state lock across the reservation, the send and the state update.
func (c *Context) sendPublish(info *packets.PublishInfo, pid packets.PacketID, header []byte, remaining int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// a reservation left by a failed send is still in flight
	defer c.syncInflight()

	if err := c.status.err(); err != nil {
		return err
	}
	if info.QoS > packets.Qos0 {
		exists, err := c.store.Reserve(pid, info.QoS)
		if err != nil {
			return errors.Wrapf(err, "reserve packet id %d", pid)
		}
		if exists && !info.Dup {
			return errors.Wrapf(ErrStateCollision, "packet id %d", pid)
		}
	}
	bufs := packets.PublishBuffers(info, pid, header, remaining)
	if _, err := bufs.WriteTo(c.transport); err != nil {
		c.log().Error("publish send failed", zap.Uint16("packet_id", pid), zap.Error(err))
		return errors.Wrapf(ErrSendFailed, "%s", err)
	}
	if info.QoS > packets.Qos0 {
		if err := c.store.Update(pid, unack.StatePublishSent); err != nil {
			// The packet is on the wire, acknowledgments for this packet id may be rejected.
			atomic.AddUint64(&c.stats.StateUpdateFailedTotal, 1)
			c.log().Warn("publish sent but delivery state update failed",
				zap.Uint16("packet_id", pid),
				zap.Uint8("qos", info.QoS),
				zap.Error(err))
		}
	}
	return nil
}

// HandleAck handles one complete ACK-family packet received from the broker, fixed header included.
// PUBACK, PUBREC and PUBCOMP advance the delivery state of the packet id, PUBREC is answered with PUBREL.
// DISCONNECT moves the Context to NotConnected. The decoded Ack is then passed to the ack callback,
// which may call Publish but must not call HandleAck.
func (c *Context) HandleAck(packet []byte) error {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	fh, n, err := packets.DecodeFixHeader(packet)
	if err != nil {
		return err
	}
	if fh.RemainLength != len(packet)-n {
		return errors.Wrapf(packets.ErrBadResponse, "remaining length %d, got %d bytes", fh.RemainLength, len(packet)-n)
	}
	wantFlags := byte(packets.FlagReserved)
	if fh.PacketType == packets.PUBREL {
		wantFlags = packets.FlagPubrel
	}
	if fh.Flags != wantFlags {
		return errors.Wrapf(packets.ErrBadResponse, "invalid %s flags 0x%X", packets.PacketTypeName(fh.PacketType), fh.Flags)
	}
	ack, err := packets.DecodeAckV5(fh.PacketType, packet[n:], c.scratch)
	if err != nil {
		return err
	}
	c.stats.packetReceived(fh.PacketType, len(packet))
	if ack.Err() != nil {
		atomic.AddUint64(&c.stats.AckFailureTotal, 1)
	}
	if err = c.updateState(ack); err != nil {
		return err
	}
	if c.ackCallback != nil {
		c.ackCallback(ack)
	}
	return nil
}

func (c *Context) updateState(ack *packets.Ack) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.syncInflight()

	switch ack.PacketType {
	case packets.PUBACK:
		if err := c.expectState(ack.PacketID, packets.Qos1, unack.StatePublishSent); err != nil {
			return err
		}
		return c.store.Remove(ack.PacketID)
	case packets.PUBREC:
		if err := c.expectState(ack.PacketID, packets.Qos2, unack.StatePublishSent); err != nil {
			return err
		}
		// [MQTT-4.3.3] a failure reason code ends the QoS 2 flow.
		if codes.IsFailure(ack.Code) {
			return c.store.Remove(ack.PacketID)
		}
		var buf [4]byte
		n, err := packets.SerializeAckV5(packets.PUBREL, ack.PacketID, codes.Success, nil, buf[:])
		if err != nil {
			return err
		}
		if _, err = c.transport.Write(buf[:n]); err != nil {
			c.log().Error("pubrel send failed", zap.Uint16("packet_id", ack.PacketID), zap.Error(err))
			return errors.Wrapf(ErrSendFailed, "%s", err)
		}
		c.stats.packetSent(packets.PUBREL, n)
		return c.store.Update(ack.PacketID, unack.StatePubrelSent)
	case packets.PUBCOMP:
		if err := c.expectState(ack.PacketID, packets.Qos2, unack.StatePubrelSent); err != nil {
			return err
		}
		return c.store.Remove(ack.PacketID)
	case packets.DISCONNECT:
		c.log().Info("disconnected by server",
			zap.Uint8("reason_code", ack.Code),
			zap.ByteString("reason_string", ack.Properties.ReasonString))
		c.status = NotConnected
	}
	return nil
}

// syncInflight reports the change of the store length since the last call. The state lock must be held.
func (c *Context) syncInflight() {
	n := c.store.Len()
	c.stats.addInflight(n - c.inflight)
	c.inflight = n
}

func (c *Context) expectState(pid packets.PacketID, qos uint8, state unack.State) error {
	r, ok, err := c.store.Get(pid)
	if err != nil {
		return errors.Wrapf(err, "get packet id %d", pid)
	}
	if !ok {
		return errors.Wrapf(ErrIllegalState, "packet id %d not found", pid)
	}
	if r.QoS != qos || r.State != state {
		return errors.Wrapf(ErrIllegalState, "packet id %d qos %d in state %s", pid, r.QoS, r.State)
	}
	return nil
}
