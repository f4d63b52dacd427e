package packets

import (
	"net"

	"github.com/pkg/errors"
)

// PublishInfo describes an outgoing PUBLISH packet. TopicName and Payload are borrowed.
type PublishInfo struct {
	QoS       uint8
	Retain    bool
	Dup       bool
	TopicName []byte
	Payload   []byte
}

func (p *PublishInfo) validate() error {
	if p == nil {
		return errors.Wrap(ErrBadParameter, "nil publish info")
	}
	if len(p.TopicName) == 0 {
		return errors.Wrap(ErrBadParameter, "empty topic name")
	}
	if len(p.TopicName) > MaxStringLength {
		return errors.Wrapf(ErrBadParameter, "topic name length %d exceeds %d", len(p.TopicName), MaxStringLength)
	}
	if p.QoS > Qos2 {
		return errors.Wrapf(ErrBadParameter, "invalid qos %d", p.QoS)
	}
	return nil
}

func (p *PublishInfo) flags() byte {
	flags := byte(PUBLISH << 4)
	switch p.QoS {
	case Qos1:
		flags |= publishFlagQos1
	case Qos2:
		flags |= publishFlagQos2
	}
	if p.Retain {
		flags |= publishFlagRetain
	}
	if p.Dup {
		flags |= publishFlagDup
	}
	return flags
}

// remainingLength returns the remaining length without the property section.
func (p *PublishInfo) remainingLength() int {
	n := 2 + len(p.TopicName) + len(p.Payload)
	if p.QoS > Qos0 {
		n += 2
	}
	return n
}

func publishPacketSize(remaining int) (int, error) {
	if remaining > MaxRemainLength {
		return 0, errors.Wrapf(ErrBadParameter, "remaining length %d exceeds %d", remaining, MaxRemainLength)
	}
	packetSize := 1 + RemainLengthSize(remaining) + remaining
	if packetSize > MaximumSize {
		return 0, errors.Wrapf(ErrBadParameter, "packet size %d exceeds %d", packetSize, MaximumSize)
	}
	return packetSize, nil
}

// GetPublishPacketSize returns the remaining length and the packet size of a MQTT v3.1.1 PUBLISH packet.
func GetPublishPacketSize(info *PublishInfo) (remaining int, packetSize int, err error) {
	if err = info.validate(); err != nil {
		return 0, 0, err
	}
	remaining = info.remainingLength()
	if packetSize, err = publishPacketSize(remaining); err != nil {
		return 0, 0, err
	}
	return remaining, packetSize, nil
}

// GetPublishPacketSizeV5 returns the remaining length and the packet size of a PUBLISH packet
// carrying the properties of b. A nil b yields the MQTT v3.1.1 size.
func GetPublishPacketSizeV5(info *PublishInfo, b *PropBuilder) (remaining int, packetSize int, err error) {
	if err = info.validate(); err != nil {
		return 0, 0, err
	}
	if b != nil && !b.IsValid() {
		return 0, 0, errors.Wrap(ErrBadParameter, "invalid property builder")
	}
	remaining = info.remainingLength()
	if b != nil {
		remaining += RemainLengthSize(b.Size()) + b.Size()
	}
	if packetSize, err = publishPacketSize(remaining); err != nil {
		return 0, 0, err
	}
	return remaining, packetSize, nil
}

// PublishPropertiesOffset returns the index of the property section in a header written by
// SerializePublishHeaderWithoutTopicV5. Topic name and packet id go on the wire before it.
func PublishPropertiesOffset(remaining int) int {
	return 1 + RemainLengthSize(remaining) + 2
}

// SerializePublishHeaderWithoutTopic writes the fixed header and the topic name length of a
// MQTT v3.1.1 PUBLISH packet into buf and returns the number of bytes written.
// The topic name, packet id and payload are sent from their own buffers.
func SerializePublishHeaderWithoutTopic(info *PublishInfo, remaining int, buf []byte) (int, error) {
	return serializePublishHeader(info, remaining, buf, nil)
}

// SerializePublishHeaderWithoutTopicV5 is like SerializePublishHeaderWithoutTopic and, if b is not nil,
// also copies the property length and the properties of b into buf following the topic name length.
func SerializePublishHeaderWithoutTopicV5(info *PublishInfo, remaining int, buf []byte, b *PropBuilder) (int, error) {
	if b != nil && !b.IsValid() {
		return 0, errors.Wrap(ErrBadParameter, "invalid property builder")
	}
	return serializePublishHeader(info, remaining, buf, b)
}

func serializePublishHeader(info *PublishInfo, remaining int, buf []byte, b *PropBuilder) (int, error) {
	if err := info.validate(); err != nil {
		return 0, err
	}
	headerSize := PublishPropertiesOffset(remaining)
	if b != nil {
		headerSize += RemainLengthSize(b.Size()) + b.Size()
	}
	if len(buf) < headerSize {
		return 0, errors.Wrapf(ErrNoSpace, "publish header needs %d bytes, buffer has %d", headerSize, len(buf))
	}
	buf[0] = info.flags()
	out := EncodeRemainLength(buf[1:], remaining)
	if out == nil {
		return 0, errors.Wrapf(ErrBadParameter, "can not encode remaining length %d", remaining)
	}
	putUint16(out, uint16(len(info.TopicName)))
	out = out[2:]
	if b != nil {
		out = EncodeRemainLength(out, b.Size())
		copy(out, b.Bytes())
	}
	return headerSize, nil
}

// PublishBuffers returns the PUBLISH packet in wire order: fixed header and topic name length, topic name,
// packet id, property section and payload. header is the output of SerializePublishHeaderWithoutTopicV5
// or SerializePublishHeaderWithoutTopic. Empty buffers are left out.
func PublishBuffers(info *PublishInfo, pid PacketID, header []byte, remaining int) net.Buffers {
	off := PublishPropertiesOffset(remaining)
	if off > len(header) {
		off = len(header)
	}
	bufs := make(net.Buffers, 0, 5)
	bufs = append(bufs, header[:off], info.TopicName)
	if info.QoS > Qos0 {
		bufs = append(bufs, []byte{byte(pid >> 8), byte(pid)})
	}
	if len(header) > off {
		bufs = append(bufs, header[off:])
	}
	if len(info.Payload) > 0 {
		bufs = append(bufs, info.Payload)
	}
	return bufs
}

// DecodePublish decodes the variable header and payload of a PUBLISH packet with the given fixed header flags.
// For Version5 the property section is validated and returned without its length prefix.
// Every returned slice aliases remaining.
func DecodePublish(version Version, flags byte, remaining []byte) (info PublishInfo, pid PacketID, props []byte, err error) {
	info.QoS = (flags >> 1) & 0x03
	if info.QoS > Qos2 {
		return info, 0, nil, errors.Wrap(ErrBadResponse, "invalid qos 3")
	}
	info.Retain = flags&publishFlagRetain != 0
	info.Dup = flags&publishFlagDup != 0
	topic, n, err := readUTF8String(true, remaining)
	if err != nil {
		return info, 0, nil, errors.WithMessage(err, "topic name")
	}
	info.TopicName = topic
	buf := remaining[n:]
	if info.QoS > Qos0 {
		if len(buf) < 2 {
			return info, 0, nil, errors.Wrap(ErrBadResponse, "truncated packet id")
		}
		pid = readUint16(buf)
		if pid == 0 {
			return info, 0, nil, errors.Wrap(ErrBadResponse, "packet id 0")
		}
		buf = buf[2:]
	}
	if version == Version5 {
		length, n, err := DecodeRemainLength(buf)
		if err != nil {
			return info, 0, nil, errors.WithMessage(err, "property length")
		}
		if len(buf) < n+length {
			return info, 0, nil, errors.Wrapf(ErrBadResponse, "property length %d exceeds remaining %d bytes", length, len(buf)-n)
		}
		props = buf[n : n+length : n+length]
		err = ForEachProperty(props, func(id PropertyID, _ uint32, _ []byte, _ []byte) error {
			if !ValidateID(PUBLISH, id) {
				return errors.Wrapf(ErrBadResponse, "%s not allowed in PUBLISH", PropertyName(id))
			}
			return nil
		})
		if err != nil {
			return info, 0, nil, err
		}
		buf = buf[n+length:]
	}
	if len(buf) > 0 {
		info.Payload = buf
	}
	return info, pid, props, nil
}
