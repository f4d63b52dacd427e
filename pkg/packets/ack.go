package packets

import (
	"github.com/pkg/errors"

	"github.com/DrmagicE/coremqtt/pkg/codes"
)

var validCodes = map[byte]map[codes.Code]struct{}{
	PUBACK: {
		codes.Success:                     {},
		codes.NotMatchingSubscribers:      {},
		codes.UnspecifiedError:            {},
		codes.ImplementationSpecificError: {},
		codes.NotAuthorized:               {},
		codes.TopicNameInvalid:            {},
		codes.PacketIDInUse:               {},
		codes.QuotaExceeded:               {},
		codes.PayloadFormatInvalid:        {},
	},
	PUBREC: {
		codes.Success:                     {},
		codes.NotMatchingSubscribers:      {},
		codes.UnspecifiedError:            {},
		codes.ImplementationSpecificError: {},
		codes.NotAuthorized:               {},
		codes.TopicNameInvalid:            {},
		codes.PacketIDInUse:               {},
		codes.QuotaExceeded:               {},
		codes.PayloadFormatInvalid:        {},
	},
	PUBREL: {
		codes.Success:          {},
		codes.PacketIDNotFound: {},
	},
	PUBCOMP: {
		codes.Success:          {},
		codes.PacketIDNotFound: {},
	},
	SUBACK: {
		codes.GrantedQoS0:                 {},
		codes.GrantedQoS1:                 {},
		codes.GrantedQoS2:                 {},
		codes.UnspecifiedError:            {},
		codes.ImplementationSpecificError: {},
		codes.NotAuthorized:               {},
		codes.TopicFilterInvalid:          {},
		codes.PacketIDInUse:               {},
		codes.QuotaExceeded:               {},
		codes.SharedSubNotSupported:       {},
		codes.SubIDNotSupported:           {},
		codes.WildcardSubNotSupported:     {},
	},
	UNSUBACK: {
		codes.Success:                     {},
		codes.NoSubscriptionExisted:       {},
		codes.UnspecifiedError:            {},
		codes.ImplementationSpecificError: {},
		codes.NotAuthorized:               {},
		codes.TopicFilterInvalid:          {},
		codes.PacketIDInUse:               {},
	},
	DISCONNECT: {
		codes.NormalDisconnection:         {},
		codes.DisconnectWithWillMessage:   {},
		codes.UnspecifiedError:            {},
		codes.MalformedPacket:             {},
		codes.ProtocolError:               {},
		codes.ImplementationSpecificError: {},
		codes.NotAuthorized:               {},
		codes.ServerBusy:                  {},
		codes.ServerShuttingDown:          {},
		codes.KeepAliveTimeout:            {},
		codes.SessionTakenOver:            {},
		codes.TopicFilterInvalid:          {},
		codes.TopicNameInvalid:            {},
		codes.RecvMaxExceeded:             {},
		codes.TopicAliasInvalid:           {},
		codes.PacketTooLarge:              {},
		codes.MessageRateTooHigh:          {},
		codes.QuotaExceeded:               {},
		codes.AdminAction:                 {},
		codes.PayloadFormatInvalid:        {},
		codes.RetainNotSupported:          {},
		codes.QoSNotSupported:             {},
		codes.UseAnotherServer:            {},
		codes.ServerMoved:                 {},
		codes.SharedSubNotSupported:       {},
		codes.ConnectionRateExceeded:      {},
		codes.MaxConnectTime:              {},
		codes.SubIDNotSupported:           {},
		codes.WildcardSubNotSupported:     {},
	},
	AUTH: {
		codes.Success:                {},
		codes.ContinueAuthentication: {},
		codes.ReAuthenticate:         {},
	},
}

// ValidateCode returns whether the code is a valid reason code for the packet type.
func ValidateCode(packetType byte, code codes.Code) bool {
	if _, ok := validCodes[packetType][code]; ok {
		return true
	}
	return false
}

func isPubAck(packetType byte) bool {
	return packetType >= PUBACK && packetType <= PUBCOMP
}

// Ack is a decoded ACK-family packet. Every slice aliases the buffer it was decoded from.
type Ack struct {
	PacketType byte
	// PacketID is 0 for DISCONNECT and AUTH.
	PacketID PacketID
	// Code is the reason code of the packet, the first one for SUBACK and UNSUBACK.
	Code       codes.Code
	Properties AckProperties

	// DISCONNECT and AUTH only.
	SessionExpiryInterval *uint32
	ServerReference       []byte
	AuthMethod            []byte
	AuthData              []byte
}

// Err returns a *codes.Error if the packet reports a failure, nil otherwise.
// SUBACK and UNSUBACK report a failure only if every reason code is a failure.
func (a *Ack) Err() error {
	if a == nil {
		return nil
	}
	rc := a.Properties.ReasonCodes
	if len(rc) == 0 {
		rc = []codes.Code{a.Code}
	}
	for _, c := range rc {
		if !codes.IsFailure(c) {
			return nil
		}
	}
	e := codes.NewError(rc[0])
	e.ReasonString = a.Properties.ReasonString
	for _, u := range a.Properties.UserProperties {
		e.UserProperties = append(e.UserProperties, struct {
			K []byte
			V []byte
		}{K: u.Key, V: u.Value})
	}
	return e
}

// DecodeAckV5 decodes the variable header and payload of a MQTT v5.0 PUBACK, PUBREC, PUBREL, PUBCOMP,
// SUBACK, UNSUBACK, DISCONNECT or AUTH packet. remaining holds exactly the bytes following the fixed header.
// User properties are stored into scratch, ErrNoSpace is returned if it is too short.
// Malformed packets are reported by an error wrapping ErrBadResponse.
func DecodeAckV5(packetType byte, remaining []byte, scratch []UserProperty) (*Ack, error) {
	ack := &Ack{PacketType: packetType}
	buf := remaining
	switch {
	case isPubAck(packetType), packetType == SUBACK, packetType == UNSUBACK:
		if len(buf) < 2 {
			return nil, errors.Wrapf(ErrBadResponse, "%s too short", PacketTypeName(packetType))
		}
		ack.PacketID = readUint16(buf)
		if ack.PacketID == 0 {
			return nil, errors.Wrapf(ErrBadResponse, "%s with packet id 0", PacketTypeName(packetType))
		}
		buf = buf[2:]
	case packetType == DISCONNECT, packetType == AUTH:
	default:
		return nil, errors.Wrapf(ErrBadResponse, "%s is not an ack packet", PacketTypeName(packetType))
	}

	// PUBACK family, DISCONNECT and AUTH may omit the reason code and the property section.
	if packetType != SUBACK && packetType != UNSUBACK {
		if len(buf) == 0 {
			ack.Code = codes.Success
			return ack, nil
		}
		ack.Code = buf[0]
		if !ValidateCode(packetType, ack.Code) {
			return nil, errors.Wrapf(ErrBadResponse, "invalid %s reason code 0x%02X", PacketTypeName(packetType), ack.Code)
		}
		ack.Properties.ReasonCodes = buf[0:1:1]
		buf = buf[1:]
		if len(buf) == 0 {
			return ack, nil
		}
	}

	n, err := ack.decodeProperties(buf, scratch)
	if err != nil {
		return nil, err
	}
	buf = buf[n:]

	if packetType == SUBACK || packetType == UNSUBACK {
		if len(buf) == 0 {
			return nil, errors.Wrapf(ErrBadResponse, "%s without reason codes", PacketTypeName(packetType))
		}
		for _, c := range buf {
			if !ValidateCode(packetType, c) {
				return nil, errors.Wrapf(ErrBadResponse, "invalid %s reason code 0x%02X", PacketTypeName(packetType), c)
			}
		}
		ack.Code = buf[0]
		ack.Properties.ReasonCodes = buf
		return ack, nil
	}
	if len(buf) != 0 {
		return nil, errors.Wrapf(ErrBadResponse, "%d trailing bytes in %s", len(buf), PacketTypeName(packetType))
	}
	return ack, nil
}

func (a *Ack) decodeProperties(buf []byte, scratch []UserProperty) (int, error) {
	length, n, err := DecodeRemainLength(buf)
	if err != nil {
		return 0, errors.WithMessage(err, "property length")
	}
	if len(buf) < n+length {
		return 0, errors.Wrapf(ErrBadResponse, "property length %d exceeds remaining %d bytes", length, len(buf)-n)
	}
	var (
		seen  uint64
		users int
	)
	err = ForEachProperty(buf[n:n+length], func(id PropertyID, num uint32, data []byte, value []byte) error {
		if !ValidateID(a.PacketType, id) {
			return errors.Wrapf(ErrBadResponse, "%s not allowed in %s", PropertyName(id), PacketTypeName(a.PacketType))
		}
		if id == PropUserProperty {
			if users >= len(scratch) {
				return errors.Wrapf(ErrNoSpace, "more than %d user properties", len(scratch))
			}
			scratch[users] = UserProperty{Key: data, Value: value}
			users++
			return nil
		}
		if seen&(1<<id) != 0 {
			return errors.Wrapf(ErrBadResponse, "duplicate %s", PropertyName(id))
		}
		seen |= 1 << id
		switch id {
		case PropReasonString:
			a.Properties.ReasonString = data
		case PropSessionExpiryInterval:
			v := num
			a.SessionExpiryInterval = &v
		case PropServerReference:
			a.ServerReference = data
		case PropAuthMethod:
			a.AuthMethod = data
		case PropAuthData:
			a.AuthData = data
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if users > 0 {
		a.Properties.UserProperties = scratch[:users:users]
	}
	return n + length, nil
}

// GetAckPacketSizeV5 returns the remaining length and the packet size of a MQTT v5.0 PUBACK, PUBREC,
// PUBREL or PUBCOMP carrying code and the properties of b. b may be nil.
func GetAckPacketSizeV5(code codes.Code, b *PropBuilder) (remaining int, packetSize int, err error) {
	if b != nil && !b.IsValid() {
		return 0, 0, errors.Wrap(ErrBadParameter, "invalid property builder")
	}
	props := b.Size()
	switch {
	case props > 0:
		remaining = 2 + 1 + RemainLengthSize(props) + props
	case code != codes.Success:
		remaining = 3
	default:
		// [MQTT-3.4.2.1] the reason code can be omitted if it is 0x00 and there are no properties.
		remaining = 2
	}
	packetSize = 1 + RemainLengthSize(remaining) + remaining
	if packetSize > MaximumSize {
		return 0, 0, errors.Wrapf(ErrBadParameter, "packet size %d exceeds %d", packetSize, MaximumSize)
	}
	return remaining, packetSize, nil
}

// SerializeAckV5 writes a complete MQTT v5.0 PUBACK, PUBREC, PUBREL or PUBCOMP packet into buf and
// returns the number of bytes written. b may be nil.
func SerializeAckV5(packetType byte, pid PacketID, code codes.Code, b *PropBuilder, buf []byte) (int, error) {
	if !isPubAck(packetType) {
		return 0, errors.Wrapf(ErrBadParameter, "%s is not a publish ack", PacketTypeName(packetType))
	}
	if pid == 0 {
		return 0, errors.Wrap(ErrBadParameter, "packet id 0")
	}
	if !ValidateCode(packetType, code) {
		return 0, errors.Wrapf(ErrBadParameter, "invalid %s reason code 0x%02X", PacketTypeName(packetType), code)
	}
	remaining, packetSize, err := GetAckPacketSizeV5(code, b)
	if err != nil {
		return 0, err
	}
	if len(buf) < packetSize {
		return 0, errors.Wrapf(ErrNoSpace, "%s needs %d bytes, buffer has %d", PacketTypeName(packetType), packetSize, len(buf))
	}
	flags := byte(FlagReserved)
	if packetType == PUBREL {
		flags = FlagPubrel
	}
	buf[0] = packetType<<4 | flags
	out := EncodeRemainLength(buf[1:], remaining)
	if out == nil {
		return 0, errors.Wrap(ErrBadParameter, "remaining length overflow")
	}
	putUint16(out, pid)
	out = out[2:]
	if remaining > 2 {
		out[0] = code
		out = out[1:]
	}
	if props := b.Size(); props > 0 {
		out = EncodeRemainLength(out, props)
		copy(out, b.Bytes())
	}
	return packetSize, nil
}
