// Package packets implements the MQTT v5.0 property builder and the PUBLISH/ACK
// serializers used by coremqtt. Every function in this package works on caller
// supplied buffers and never performs I/O.
package packets

import (
	"bytes"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Error type
var (
	// ErrBadParameter is returned for nil, zero or malformed input, duplicate
	// properties and disallowed values.
	ErrBadParameter = errors.New("bad parameter")
	// ErrNoSpace is returned when a caller supplied buffer is too small.
	ErrNoSpace = errors.New("no space left in buffer")
	// ErrBadResponse is returned when an incoming packet is malformed.
	ErrBadResponse = errors.New("bad response")
)

// Packet type
const (
	RESERVED = iota
	CONNECT
	CONNACK
	PUBLISH
	PUBACK
	PUBREC
	PUBREL
	PUBCOMP
	SUBSCRIBE
	SUBACK
	UNSUBSCRIBE
	UNSUBACK
	PINGREQ
	PINGRESP
	DISCONNECT
	AUTH
)

var packetTypeNames = [...]string{
	RESERVED:    "RESERVED",
	CONNECT:     "CONNECT",
	CONNACK:     "CONNACK",
	PUBLISH:     "PUBLISH",
	PUBACK:      "PUBACK",
	PUBREC:      "PUBREC",
	PUBREL:      "PUBREL",
	PUBCOMP:     "PUBCOMP",
	SUBSCRIBE:   "SUBSCRIBE",
	SUBACK:      "SUBACK",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	UNSUBACK:    "UNSUBACK",
	PINGREQ:     "PINGREQ",
	PINGRESP:    "PINGRESP",
	DISCONNECT:  "DISCONNECT",
	AUTH:        "AUTH",
}

// PacketTypeName returns the upper case name of the packet type.
func PacketTypeName(packetType byte) string {
	if int(packetType) < len(packetTypeNames) {
		return packetTypeNames[packetType]
	}
	return "UNKNOWN"
}

// Flag in the FixHeader
const (
	FlagReserved = 0
	FlagPubrel   = 2
)

// PUBLISH fixed header flags.
const (
	publishFlagRetain = 0x01
	publishFlagQos1   = 0x02
	publishFlagQos2   = 0x04
	publishFlagDup    = 0x08
)

// QoS levels
const (
	Qos0 uint8 = 0x00
	Qos1 uint8 = 0x01
	Qos2 uint8 = 0x02
)

// PacketID is the type of packet identifier
type PacketID = uint16

// Max & min packet ID
const (
	MaxPacketID PacketID = 65535
	MinPacketID PacketID = 1
)

// Version is the MQTT protocol level.
type Version = byte

const (
	Version311 Version = 0x04
	Version5   Version = 0x05
)

const (
	// MaxRemainLength is the largest value a variable byte integer can hold.
	MaxRemainLength = 268435455
	// MaximumSize is the largest packet the protocol allows:
	// one fixed header byte, four remaining length bytes and MaxRemainLength.
	MaximumSize = 1 + 4 + MaxRemainLength
	// MaxStringLength is the largest UTF-8 string or binary data length.
	MaxStringLength = 65535
)

// RemainLengthSize returns how many bytes the variable byte integer encoding of length needs.
// It returns 0 if length can not be encoded.
func RemainLengthSize(length int) int {
	switch {
	case length < 0:
		return 0
	case length < 128:
		return 1
	case length < 16384:
		return 2
	case length < 2097152:
		return 3
	case length <= MaxRemainLength:
		return 4
	}
	return 0
}

// EncodeRemainLength writes the variable byte integer encoding of length at the start of buf
// and returns the rest of buf following the encoded bytes.
// It returns nil if length is out of range or buf is too short.
func EncodeRemainLength(buf []byte, length int) []byte {
	size := RemainLengthSize(length)
	if size == 0 || len(buf) < size {
		return nil
	}
	var i int
	for {
		encodedByte := byte(length % 128)
		length = length / 128
		// if there are more data to encode, set the top bit of this byte
		if length > 0 {
			encodedByte |= 128
		}
		buf[i] = encodedByte
		i++
		if length <= 0 {
			break
		}
	}
	return buf[i:]
}

// DecodeRemainLength reads a variable byte integer from the start of buf.
// It returns the value and the number of bytes consumed.
func DecodeRemainLength(buf []byte) (length int, n int, err error) {
	multiplier := 1
	for {
		if n >= len(buf) {
			return 0, 0, errors.Wrap(ErrBadResponse, "truncated variable byte integer")
		}
		b := buf[n]
		n++
		length += int(b&127) * multiplier
		if b&128 == 0 {
			return length, n, nil
		}
		multiplier *= 128
		if n == 4 {
			return 0, 0, errors.Wrap(ErrBadResponse, "variable byte integer exceeds 4 bytes")
		}
	}
}

func putUint16(buf []byte, v uint16) {
	buf[0] = byte(v >> 8)
	buf[1] = byte(v)
}

func putUint32(buf []byte, v uint32) {
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}

func readUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

func readUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}

// readUTF8String reads a two byte length prefixed string from the start of buf.
// The returned slice aliases buf.
func readUTF8String(mustUTF8 bool, buf []byte) (b []byte, n int, err error) {
	if len(buf) < 2 {
		return nil, 0, errors.Wrap(ErrBadResponse, "truncated string length")
	}
	length := int(readUint16(buf))
	if len(buf) < length+2 {
		return nil, 0, errors.Wrapf(ErrBadResponse, "string length %d exceeds remaining %d bytes", length, len(buf)-2)
	}
	payload := buf[2 : length+2 : length+2]
	if mustUTF8 && !ValidUTF8(payload) {
		return nil, 0, errors.Wrap(ErrBadResponse, "invalid utf-8 string")
	}
	return payload, length + 2, nil
}

// ValidUTF8 验证是否utf8
//
// ValidUTF8 returns whether the given bytes is a well-formed UTF-8 string without surrogates
// and without U+0000. [MQTT-1.5.4-1] [MQTT-1.5.4-2]
// Control characters are allowed, the receiver may still reject them [MQTT-1.5.4-3].
func ValidUTF8(p []byte) bool {
	return utf8.Valid(p) && bytes.IndexByte(p, 0) < 0
}

// ValidTopicName 验证主题名是否合法  [MQTT-4.7.1-1]
//
// ValidTopicName returns whether the bytes is a valid topic name.[MQTT-4.7.1-1].
func ValidTopicName(p []byte) bool {
	if len(p) == 0 || len(p) > MaxStringLength {
		return false
	}
	for len(p) > 0 {
		ru, size := utf8.DecodeRune(p)
		if ru == utf8.RuneError || !utf8.ValidRune(ru) {
			return false
		}
		//主题名不允许使用通配符
		if size == 1 && (p[0] == '+' || p[0] == '#' || p[0] == 0) {
			return false
		}
		p = p[size:]
	}
	return true
}

// FixHeader represents the FixHeader of the MQTT packet
type FixHeader struct {
	PacketType   byte
	Flags        byte
	RemainLength int
}

// DecodeFixHeader reads the fixed header at the start of buf and returns it with the number of bytes consumed.
// It does not check that buf holds the remaining length bytes.
func DecodeFixHeader(buf []byte) (FixHeader, int, error) {
	if len(buf) < 2 {
		return FixHeader{}, 0, errors.Wrap(ErrBadResponse, "truncated fixed header")
	}
	fh := FixHeader{
		PacketType: buf[0] >> 4,
		Flags:      buf[0] & 0x0F,
	}
	if fh.PacketType == RESERVED {
		return FixHeader{}, 0, errors.Wrap(ErrBadResponse, "reserved packet type")
	}
	length, n, err := DecodeRemainLength(buf[1:])
	if err != nil {
		return FixHeader{}, 0, err
	}
	fh.RemainLength = length
	return fh, 1 + n, nil
}
