package packets

import (
	"fmt"

	"github.com/pkg/errors"
)

// PropertyID is a MQTT v5.0 property identifier.
type PropertyID = byte

const (
	PropPayloadFormat          PropertyID = 0x01
	PropMessageExpiry          PropertyID = 0x02
	PropContentType            PropertyID = 0x03
	PropResponseTopic          PropertyID = 0x08
	PropCorrelationData        PropertyID = 0x09
	PropSubscriptionIdentifier PropertyID = 0x0B
	PropSessionExpiryInterval  PropertyID = 0x11
	PropAssignedClientID       PropertyID = 0x12
	PropServerKeepAlive        PropertyID = 0x13
	PropAuthMethod             PropertyID = 0x15
	PropAuthData               PropertyID = 0x16
	PropRequestProblemInfo     PropertyID = 0x17
	PropWillDelayInterval      PropertyID = 0x18
	PropRequestResponseInfo    PropertyID = 0x19
	PropResponseInfo           PropertyID = 0x1A
	PropServerReference        PropertyID = 0x1C
	PropReasonString           PropertyID = 0x1F
	PropReceiveMaximum         PropertyID = 0x21
	PropTopicAliasMaximum      PropertyID = 0x22
	PropTopicAlias             PropertyID = 0x23
	PropMaximumQOS             PropertyID = 0x24
	PropRetainAvailable        PropertyID = 0x25
	PropUserProperty           PropertyID = 0x26
	PropMaximumPacketSize      PropertyID = 0x27
	PropWildcardSubAvailable   PropertyID = 0x28
	PropSubIDAvailable         PropertyID = 0x29
	PropSharedSubAvailable     PropertyID = 0x2A
)

// PropertyType is the wire type of a property value.
type PropertyType byte

const (
	PropTypeInvalid PropertyType = iota
	PropTypeByte
	PropTypeTwoByteInt
	PropTypeFourByteInt
	PropTypeVarInt
	PropTypeUTF8String
	PropTypeBinary
	PropTypeStringPair
)

func (t PropertyType) String() string {
	switch t {
	case PropTypeByte:
		return "Byte"
	case PropTypeTwoByteInt:
		return "TwoByteInteger"
	case PropTypeFourByteInt:
		return "FourByteInteger"
	case PropTypeVarInt:
		return "VariableByteInteger"
	case PropTypeUTF8String:
		return "UTF8String"
	case PropTypeBinary:
		return "BinaryData"
	case PropTypeStringPair:
		return "UTF8StringPair"
	}
	return "Invalid"
}

// packetSet is a bit set indexed by packet type.
type packetSet uint16

func packetsOf(types ...byte) packetSet {
	var s packetSet
	for _, t := range types {
		s |= 1 << t
	}
	return s
}

type propertyInfo struct {
	name    string
	typ     PropertyType
	packets packetSet
}

// propertyTable maps every property identifier to its name, wire type and the packet types
// that may carry it. Will properties are carried by CONNECT.
var propertyTable = [PropSharedSubAvailable + 1]propertyInfo{
	PropPayloadFormat:          {"PayloadFormatIndicator", PropTypeByte, packetsOf(CONNECT, PUBLISH)},
	PropMessageExpiry:          {"MessageExpiryInterval", PropTypeFourByteInt, packetsOf(CONNECT, PUBLISH)},
	PropContentType:            {"ContentType", PropTypeUTF8String, packetsOf(CONNECT, PUBLISH)},
	PropResponseTopic:          {"ResponseTopic", PropTypeUTF8String, packetsOf(CONNECT, PUBLISH)},
	PropCorrelationData:        {"CorrelationData", PropTypeBinary, packetsOf(CONNECT, PUBLISH)},
	PropSubscriptionIdentifier: {"SubscriptionIdentifier", PropTypeVarInt, packetsOf(PUBLISH, SUBSCRIBE)},
	PropSessionExpiryInterval:  {"SessionExpiryInterval", PropTypeFourByteInt, packetsOf(CONNECT, CONNACK, DISCONNECT)},
	PropAssignedClientID:       {"AssignedClientIdentifier", PropTypeUTF8String, packetsOf(CONNACK)},
	PropServerKeepAlive:        {"ServerKeepAlive", PropTypeTwoByteInt, packetsOf(CONNACK)},
	PropAuthMethod:             {"AuthenticationMethod", PropTypeUTF8String, packetsOf(CONNECT, CONNACK, AUTH)},
	PropAuthData:               {"AuthenticationData", PropTypeBinary, packetsOf(CONNECT, CONNACK, AUTH)},
	PropRequestProblemInfo:     {"RequestProblemInformation", PropTypeByte, packetsOf(CONNECT)},
	PropWillDelayInterval:      {"WillDelayInterval", PropTypeFourByteInt, packetsOf(CONNECT)},
	PropRequestResponseInfo:    {"RequestResponseInformation", PropTypeByte, packetsOf(CONNECT)},
	PropResponseInfo:           {"ResponseInformation", PropTypeUTF8String, packetsOf(CONNACK)},
	PropServerReference:        {"ServerReference", PropTypeUTF8String, packetsOf(CONNACK, DISCONNECT)},
	PropReasonString:           {"ReasonString", PropTypeUTF8String, packetsOf(CONNACK, PUBACK, PUBREC, PUBREL, PUBCOMP, SUBACK, UNSUBACK, DISCONNECT, AUTH)},
	PropReceiveMaximum:         {"ReceiveMaximum", PropTypeTwoByteInt, packetsOf(CONNECT, CONNACK)},
	PropTopicAliasMaximum:      {"TopicAliasMaximum", PropTypeTwoByteInt, packetsOf(CONNECT, CONNACK)},
	PropTopicAlias:             {"TopicAlias", PropTypeTwoByteInt, packetsOf(PUBLISH)},
	PropMaximumQOS:             {"MaximumQoS", PropTypeByte, packetsOf(CONNACK)},
	PropRetainAvailable:        {"RetainAvailable", PropTypeByte, packetsOf(CONNACK)},
	PropUserProperty:           {"UserProperty", PropTypeStringPair, packetsOf(CONNECT, CONNACK, PUBLISH, PUBACK, PUBREC, PUBREL, PUBCOMP, SUBSCRIBE, SUBACK, UNSUBSCRIBE, UNSUBACK, DISCONNECT, AUTH)},
	PropMaximumPacketSize:      {"MaximumPacketSize", PropTypeFourByteInt, packetsOf(CONNECT, CONNACK)},
	PropWildcardSubAvailable:   {"WildcardSubscriptionAvailable", PropTypeByte, packetsOf(CONNACK)},
	PropSubIDAvailable:         {"SubscriptionIdentifierAvailable", PropTypeByte, packetsOf(CONNACK)},
	PropSharedSubAvailable:     {"SharedSubscriptionAvailable", PropTypeByte, packetsOf(CONNACK)},
}

func lookupProperty(id PropertyID) (propertyInfo, bool) {
	if int(id) >= len(propertyTable) || propertyTable[id].typ == PropTypeInvalid {
		return propertyInfo{}, false
	}
	return propertyTable[id], true
}

// PropertyTypeOf returns the wire type of the property, PropTypeInvalid if id is unknown.
func PropertyTypeOf(id PropertyID) PropertyType {
	info, _ := lookupProperty(id)
	return info.typ
}

// PropertyName returns the name of the property as named by MQTT v5.0,
// without spaces.
func PropertyName(id PropertyID) string {
	if info, ok := lookupProperty(id); ok {
		return info.name
	}
	return fmt.Sprintf("Unknown(0x%02X)", id)
}

// ValidateID takes a PacketType and a property identifier and returns
// a boolean indicating if that property is valid for that PacketType.
func ValidateID(packetType byte, id PropertyID) bool {
	info, ok := lookupProperty(id)
	if !ok || packetType > AUTH {
		return false
	}
	return info.packets&(1<<packetType) != 0
}

// PropertyVisitor is called by ForEachProperty for every property record.
// For integer types num holds the value and data is nil. For string and binary types data
// holds the value. For user properties data is the key and value is the pair value.
// All slices alias the buffer passed to ForEachProperty.
type PropertyVisitor func(id PropertyID, num uint32, data []byte, value []byte) error

// ForEachProperty walks the property records in props, which must not include the property length prefix.
// It stops at the first malformed record and returns an error wrapping ErrBadResponse, or at the first
// error returned by fn.
func ForEachProperty(props []byte, fn PropertyVisitor) error {
	for len(props) > 0 {
		id := props[0]
		props = props[1:]
		info, ok := lookupProperty(id)
		if !ok {
			return errors.Wrapf(ErrBadResponse, "unknown property identifier 0x%02X", id)
		}
		var (
			num         uint32
			data, value []byte
			n           int
			err         error
		)
		switch info.typ {
		case PropTypeByte:
			if len(props) < 1 {
				return errors.Wrapf(ErrBadResponse, "truncated %s", info.name)
			}
			num, n = uint32(props[0]), 1
		case PropTypeTwoByteInt:
			if len(props) < 2 {
				return errors.Wrapf(ErrBadResponse, "truncated %s", info.name)
			}
			num, n = uint32(readUint16(props)), 2
		case PropTypeFourByteInt:
			if len(props) < 4 {
				return errors.Wrapf(ErrBadResponse, "truncated %s", info.name)
			}
			num, n = readUint32(props), 4
		case PropTypeVarInt:
			var v int
			v, n, err = DecodeRemainLength(props)
			num = uint32(v)
		case PropTypeUTF8String:
			data, n, err = readUTF8String(true, props)
		case PropTypeBinary:
			data, n, err = readUTF8String(false, props)
		case PropTypeStringPair:
			var up UserProperty
			up, n, err = decodeUserProperty(props)
			data, value = up.Key, up.Value
		}
		if err != nil {
			return errors.WithMessagef(err, "property %s", info.name)
		}
		if err = fn(id, num, data, value); err != nil {
			return err
		}
		props = props[n:]
	}
	return nil
}
