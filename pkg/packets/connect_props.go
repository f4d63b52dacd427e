package packets

import (
	"github.com/pkg/errors"
)

// CONNECT property fields
const (
	ConnSessionExpiryField Field = iota
	ConnReceiveMaxField
	ConnMaxPacketSizeField
	ConnTopicAliasMaxField
	ConnRequestRespInfoField
	ConnRequestProbInfoField
	ConnUserPropsField
	ConnAuthMethodField
	ConnAuthDataField
)

// AddConnSessionExpiry adds the Session Expiry Interval property of CONNECT.
func (b *PropBuilder) AddConnSessionExpiry(interval uint32) error {
	return b.Encode(PropSessionExpiryInterval, interval, nil, ConnSessionExpiryField)
}

// AddConnReceiveMax adds the Receive Maximum property of CONNECT. 0 is a protocol error.
func (b *PropBuilder) AddConnReceiveMax(max uint16) error {
	if max == 0 {
		return errors.Wrap(ErrBadParameter, "receive maximum must be greater than 0")
	}
	return b.Encode(PropReceiveMaximum, uint32(max), nil, ConnReceiveMaxField)
}

// AddConnMaxPacketSize adds the Maximum Packet Size property of CONNECT. 0 is a protocol error.
func (b *PropBuilder) AddConnMaxPacketSize(size uint32) error {
	if size == 0 {
		return errors.Wrap(ErrBadParameter, "maximum packet size must be greater than 0")
	}
	return b.Encode(PropMaximumPacketSize, size, nil, ConnMaxPacketSizeField)
}

// AddConnTopicAliasMax adds the Topic Alias Maximum property of CONNECT.
func (b *PropBuilder) AddConnTopicAliasMax(max uint16) error {
	return b.Encode(PropTopicAliasMaximum, uint32(max), nil, ConnTopicAliasMaxField)
}

// AddConnRequestRespInfo adds the Request Response Information property of CONNECT.
func (b *PropBuilder) AddConnRequestRespInfo(request bool) error {
	return b.Encode(PropRequestResponseInfo, boolByte(request), nil, ConnRequestRespInfoField)
}

// AddConnRequestProbInfo adds the Request Problem Information property of CONNECT.
func (b *PropBuilder) AddConnRequestProbInfo(request bool) error {
	return b.Encode(PropRequestProblemInfo, boolByte(request), nil, ConnRequestProbInfoField)
}

// AddConnUserProps adds user properties to CONNECT.
func (b *PropBuilder) AddConnUserProps(props []UserProperty) error {
	return b.addUserProps(props, ConnUserPropsField)
}

// AddConnAuthMethod adds the Authentication Method property of CONNECT.
func (b *PropBuilder) AddConnAuthMethod(method []byte) error {
	return b.encodeString(PropAuthMethod, method, ConnAuthMethodField)
}

// AddConnAuthData adds the Authentication Data property of CONNECT.
func (b *PropBuilder) AddConnAuthData(data []byte) error {
	return b.encodeString(PropAuthData, data, ConnAuthDataField)
}
