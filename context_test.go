package coremqtt

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DrmagicE/coremqtt/persistence/unack"
	"github.com/DrmagicE/coremqtt/pkg/codes"
	"github.com/DrmagicE/coremqtt/pkg/packets"
)

type countingLocker struct {
	sync.Mutex
	locks   int
	unlocks int
}

func (l *countingLocker) Lock() {
	l.Mutex.Lock()
	l.locks++
}

func (l *countingLocker) Unlock() {
	l.unlocks++
	l.Mutex.Unlock()
}

func newConnectedContext(t *testing.T, transport Transport, opts ...Options) *Context {
	c := New(transport, opts...)
	assert.NoError(t, c.SetStatus(Connected, true))
	return c
}

func decodePublish(t *testing.T, packet []byte, version packets.Version) (packets.PublishInfo, packets.PacketID, []byte) {
	a := assert.New(t)
	fh, n, err := packets.DecodeFixHeader(packet)
	a.NoError(err)
	a.EqualValues(packets.PUBLISH, fh.PacketType)
	a.Equal(len(packet)-n, fh.RemainLength)
	info, pid, props, err := packets.DecodePublish(version, fh.Flags, packet[n:])
	a.NoError(err)
	return info, pid, props
}

func TestContext_PublishStatus(t *testing.T) {
	var tt = []struct {
		status ConnectionStatus
		want   error
	}{
		{status: NotConnected, want: ErrNotConnected},
		{status: DisconnectPending, want: ErrDisconnectPending},
	}
	for _, v := range tt {
		t.Run(v.status.String(), func(t *testing.T) {
			a := assert.New(t)
			var w bytes.Buffer
			c := New(&w)
			a.NoError(c.SetStatus(v.status, false))
			err := c.Publish(&packets.PublishInfo{TopicName: []byte("a/b")}, 0, nil)
			a.True(errors.Is(err, v.want))
			a.Equal(0, w.Len())
			a.EqualValues(1, c.Stats().GetStats().FailedTotal)
		})
	}
}

func TestContext_PublishV311(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	c := newConnectedContext(t, &w)
	info := &packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("a/b")}
	a.NoError(c.Publish(info, 1, nil))
	a.Equal([]byte{0x32, 0x07, 0x00, 0x03, 'a', '/', 'b', 0x00, 0x01}, w.Bytes())

	st := c.Stats().GetStats()
	a.EqualValues(1, st.V311Total)
	a.EqualValues(0, st.V5Total)
	a.EqualValues(1, st.SentTotal[packets.PUBLISH])
	a.EqualValues(9, st.BytesSent[packets.PUBLISH])
	a.EqualValues(1, st.InflightCurrent)

	r, ok, err := c.store.Get(1)
	a.NoError(err)
	a.True(ok)
	a.Equal(unack.Record{QoS: packets.Qos1, State: unack.StatePublishSent}, r)
}

func TestContext_PublishInvalidBuilderFallsBack(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	c := newConnectedContext(t, &w)
	a.NoError(c.Publish(&packets.PublishInfo{TopicName: []byte("t"), Payload: []byte("p")}, 0, &packets.PropBuilder{}))
	info, _, props := decodePublish(t, w.Bytes(), packets.Version311)
	a.Nil(props)
	a.Equal([]byte("p"), info.Payload)
	a.EqualValues(1, c.Stats().GetStats().V311Total)
}

func TestContext_PublishV5(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	c := newConnectedContext(t, &w)

	b, err := packets.NewPropBuilder(make([]byte, 64))
	a.NoError(err)
	a.NoError(b.AddPubContentType([]byte("application/json")))
	a.NoError(b.AddPubUserProps([]packets.UserProperty{packets.NewUserProperty([]byte("trace"), []byte("1"))}))

	pub := &packets.PublishInfo{QoS: packets.Qos2, Retain: true, TopicName: []byte("devices/7/state"), Payload: []byte(`{"on":true}`)}
	a.NoError(c.Publish(pub, 300, b))

	_, packetSize, err := packets.GetPublishPacketSizeV5(pub, b)
	a.NoError(err)
	a.Equal(packetSize, w.Len())
	info, pid, props := decodePublish(t, w.Bytes(), packets.Version5)
	a.EqualValues(300, pid)
	a.Equal(pub.TopicName, info.TopicName)
	a.Equal(pub.Payload, info.Payload)
	a.True(info.Retain)
	a.Equal(b.Bytes(), props)
	a.EqualValues(1, c.Stats().GetStats().V5Total)
}

func TestContext_PublishBadParameter(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	c := newConnectedContext(t, &w)
	a.True(errors.Is(c.Publish(nil, 1, nil), packets.ErrBadParameter))
	a.True(errors.Is(c.Publish(&packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}, 0, nil), packets.ErrBadParameter))
	a.True(errors.Is(c.Publish(&packets.PublishInfo{}, 0, nil), packets.ErrBadParameter))
	a.Equal(0, w.Len())
	a.Equal(0, c.store.Len())
}

func TestContext_PublishStateCollision(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	c := newConnectedContext(t, &w)
	info := &packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}
	a.NoError(c.Publish(info, 5, nil))
	sent := w.Len()

	err := c.Publish(info, 5, nil)
	a.True(errors.Is(err, ErrStateCollision))
	a.Equal(sent, w.Len())

	info.Dup = true
	a.NoError(c.Publish(info, 5, nil))
	a.Equal(2*sent, w.Len())
	a.Equal(byte(0x3A), w.Bytes()[sent])
}

func TestContext_PublishSendFailed(t *testing.T) {
	a := assert.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	transport := NewMockTransport(ctrl)
	transport.EXPECT().Write(gomock.Any()).Return(0, errors.New("broken pipe"))

	locker := &countingLocker{}
	c := newConnectedContext(t, transport, WithStateLocker(locker))
	err := c.Publish(&packets.PublishInfo{QoS: packets.Qos2, TopicName: []byte("t")}, 9, nil)
	a.True(errors.Is(err, ErrSendFailed))
	a.Equal(locker.locks, locker.unlocks)

	// the reservation stays, a retry must set Dup
	r, ok, _ := c.store.Get(9)
	a.True(ok)
	a.Equal(unack.StateReserved, r.State)
	a.EqualValues(1, c.Stats().GetStats().InflightCurrent)
}

func TestContext_SharedStats(t *testing.T) {
	a := assert.New(t)
	stats := NewStats()
	var w1, w2 bytes.Buffer
	c1 := newConnectedContext(t, &w1, WithStats(stats))
	c2 := newConnectedContext(t, &w2, WithStats(stats))
	info := &packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("a/b")}

	a.NoError(c1.Publish(info, 1, nil))
	a.NoError(c1.Publish(info, 2, nil))
	a.NoError(c2.Publish(info, 1, nil))
	st := stats.GetStats()
	a.EqualValues(3, st.InflightCurrent)
	a.EqualValues(3, st.SentTotal[packets.PUBLISH])

	a.NoError(c1.HandleAck([]byte{0x40, 0x02, 0x00, 0x01}))
	a.EqualValues(2, stats.GetStats().InflightCurrent)
	a.NoError(c2.HandleAck([]byte{0x40, 0x02, 0x00, 0x01}))
	a.EqualValues(1, stats.GetStats().InflightCurrent)

	// clean start drops the remaining packet id of c1
	a.NoError(c1.SetStatus(Connected, true))
	a.EqualValues(0, stats.GetStats().InflightCurrent)
}

func TestContext_PublishStateUpdateFailed(t *testing.T) {
	a := assert.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	core, logs := observer.New(zapcore.WarnLevel)
	defer func() { zaplog = zap.NewNop() }()

	store := unack.NewMockStore(ctrl)
	store.EXPECT().Init(true).Return(nil)
	store.EXPECT().Len().Return(0).AnyTimes()
	store.EXPECT().Reserve(packets.PacketID(3), packets.Qos1).Return(false, nil)
	store.EXPECT().Update(packets.PacketID(3), unack.StatePublishSent).Return(errors.New("store unavailable"))

	var w bytes.Buffer
	c := newConnectedContext(t, &w, WithStore(store), WithLogger(zap.New(core)), WithClientID("cid"))
	a.NoError(c.Publish(&packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}, 3, nil))
	a.NotZero(w.Len())

	st := c.Stats().GetStats()
	a.EqualValues(1, st.StateUpdateFailedTotal)
	a.EqualValues(0, st.FailedTotal)
	a.Equal(1, logs.Len())
	entry := logs.All()[0]
	a.Equal(zapcore.WarnLevel, entry.Level)
	a.Equal("cid", entry.ContextMap()["client_id"])
}

func TestContext_ScopedLock(t *testing.T) {
	a := assert.New(t)
	locker := &countingLocker{}
	var w bytes.Buffer
	c := New(&w, WithStateLocker(locker))
	_ = c.Publish(&packets.PublishInfo{TopicName: []byte("t")}, 0, nil)
	a.NoError(c.SetStatus(Connected, true))
	a.NoError(c.Publish(&packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}, 1, nil))
	a.Error(c.Publish(&packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}, 1, nil))
	a.Error(c.HandleAck([]byte{0x40, 0x02, 0x00, 0x02}))
	a.NotZero(locker.locks)
	a.Equal(locker.locks, locker.unlocks)
}

func TestContext_ConcurrentHandleAck(t *testing.T) {
	a := assert.New(t)
	const n = 50
	var w bytes.Buffer
	var handled, mismatched int32
	c := newConnectedContext(t, &w, WithAckCallback(func(ack *packets.Ack) {
		atomic.AddInt32(&handled, 1)
		up := ack.Properties.UserProperties
		if len(up) != 1 || string(up[0].Value) != fmt.Sprintf("%02d", ack.PacketID) {
			atomic.AddInt32(&mismatched, 1)
		}
	}))
	for i := 1; i <= n; i++ {
		a.NoError(c.Publish(&packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}, packets.PacketID(i), nil))
	}

	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		v := fmt.Sprintf("%02d", i)
		packet := []byte{0x40, 12, 0x00, byte(i), 0x00, 8, 0x26, 0x00, 0x01, 'k', 0x00, 0x02, v[0], v[1]}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.HandleAck(packet))
		}()
	}
	wg.Wait()
	a.EqualValues(n, handled)
	a.EqualValues(0, mismatched)
	a.Equal(0, c.store.Len())
	a.EqualValues(0, c.Stats().GetStats().InflightCurrent)
}

func TestContext_QoS1Flow(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	var acks []packets.Ack
	c := newConnectedContext(t, &w, WithAckCallback(func(ack *packets.Ack) {
		acks = append(acks, *ack)
	}))
	a.NoError(c.Publish(&packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}, 0x0102, nil))

	a.NoError(c.HandleAck([]byte{0x40, 0x02, 0x01, 0x02}))
	a.Equal(0, c.store.Len())
	a.Len(acks, 1)
	a.EqualValues(0x0102, acks[0].PacketID)
	a.Equal(codes.Success, acks[0].Code)

	// acknowledged twice
	err := c.HandleAck([]byte{0x40, 0x02, 0x01, 0x02})
	a.True(errors.Is(err, ErrIllegalState))
	a.Len(acks, 1)

	st := c.Stats().GetStats()
	a.EqualValues(2, st.ReceivedTotal[packets.PUBACK])
	a.EqualValues(0, st.InflightCurrent)
}

func TestContext_QoS2Flow(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	c := newConnectedContext(t, &w)
	a.NoError(c.Publish(&packets.PublishInfo{QoS: packets.Qos2, TopicName: []byte("t")}, 7, nil))
	w.Reset()

	// PUBACK does not match a QoS 2 message
	a.True(errors.Is(c.HandleAck([]byte{0x40, 0x02, 0x00, 0x07}), ErrIllegalState))

	a.NoError(c.HandleAck([]byte{0x50, 0x02, 0x00, 0x07}))
	a.Equal([]byte{0x62, 0x02, 0x00, 0x07}, w.Bytes())
	r, ok, _ := c.store.Get(7)
	a.True(ok)
	a.Equal(unack.StatePubrelSent, r.State)

	a.NoError(c.HandleAck([]byte{0x70, 0x02, 0x00, 0x07}))
	a.Equal(0, c.store.Len())
	a.EqualValues(1, c.Stats().GetStats().SentTotal[packets.PUBREL])
}

func TestContext_PubrecFailure(t *testing.T) {
	a := assert.New(t)
	var w bytes.Buffer
	var got error
	c := newConnectedContext(t, &w, WithAckCallback(func(ack *packets.Ack) {
		got = ack.Err()
	}))
	a.NoError(c.Publish(&packets.PublishInfo{QoS: packets.Qos2, TopicName: []byte("t")}, 7, nil))
	w.Reset()

	// PUBREC quota exceeded with a reason string
	a.NoError(c.HandleAck([]byte{0x50, 0x0A, 0x00, 0x07, 0x97, 0x06, 0x1F, 0x00, 0x03, 'f', 'u', 'l'}))
	a.Equal(0, w.Len())
	a.Equal(0, c.store.Len())
	ce, ok := got.(*codes.Error)
	a.True(ok)
	a.Equal(codes.QuotaExceeded, ce.Code)
	a.Equal([]byte("ful"), ce.ReasonString)
	a.EqualValues(1, c.Stats().GetStats().AckFailureTotal)
}

func TestContext_HandleAckMalformed(t *testing.T) {
	var tt = []struct {
		name   string
		packet []byte
	}{
		{name: "length mismatch", packet: []byte{0x40, 0x03, 0x00, 0x01}},
		{name: "pubrel flags", packet: []byte{0x60, 0x02, 0x00, 0x01}},
		{name: "puback flags", packet: []byte{0x42, 0x02, 0x00, 0x01}},
		{name: "not an ack", packet: []byte{0x30, 0x03, 0x00, 0x01, 't'}},
		{name: "truncated", packet: []byte{0x40}},
	}
	for _, v := range tt {
		t.Run(v.name, func(t *testing.T) {
			c := newConnectedContext(t, &bytes.Buffer{})
			assert.True(t, errors.Is(c.HandleAck(v.packet), packets.ErrBadResponse))
		})
	}
}

func TestContext_HandleDisconnect(t *testing.T) {
	a := assert.New(t)
	var got *packets.Ack
	c := newConnectedContext(t, &bytes.Buffer{}, WithAckCallback(func(ack *packets.Ack) {
		cp := *ack
		got = &cp
	}))
	a.NoError(c.HandleAck([]byte{0xE0, 0x01, 0x8B}))
	a.Equal(NotConnected, c.Status())
	a.NotNil(got)
	a.Equal(codes.ServerShuttingDown, got.Code)
	a.True(errors.Is(c.Publish(&packets.PublishInfo{TopicName: []byte("t")}, 0, nil), ErrNotConnected))
}

func TestContext_AckScratch(t *testing.T) {
	a := assert.New(t)
	c := newConnectedContext(t, &bytes.Buffer{}, WithAckScratchSize(1))
	a.NoError(c.Publish(&packets.PublishInfo{QoS: packets.Qos1, TopicName: []byte("t")}, 1, nil))
	packet := []byte{0x40, 0x12, 0x00, 0x01, 0x00, 0x0E,
		0x26, 0x00, 0x01, 'a', 0x00, 0x01, '1',
		0x26, 0x00, 0x01, 'b', 0x00, 0x01, '2',
	}
	a.True(errors.Is(c.HandleAck(packet), packets.ErrNoSpace))
	a.Equal(1, c.store.Len())
}
