package packets

import (
	"github.com/pkg/errors"
)

// PUBLISH property fields
const (
	PubPayloadFormatField Field = iota
	PubMessageExpiryField
	PubTopicAliasField
	PubResponseTopicField
	PubCorrelationDataField
	PubUserPropsField
	PubContentTypeField
)

// AddPubPayloadFormat adds the Payload Format Indicator property. true means the payload is UTF-8 encoded.
func (b *PropBuilder) AddPubPayloadFormat(utf8Payload bool) error {
	return b.Encode(PropPayloadFormat, boolByte(utf8Payload), nil, PubPayloadFormatField)
}

// AddPubMessageExpiry adds the Message Expiry Interval property in seconds.
func (b *PropBuilder) AddPubMessageExpiry(interval uint32) error {
	return b.Encode(PropMessageExpiry, interval, nil, PubMessageExpiryField)
}

// AddPubTopicAlias adds the Topic Alias property. 0 is not a valid alias.
func (b *PropBuilder) AddPubTopicAlias(alias uint16) error {
	if alias == 0 {
		return errors.Wrap(ErrBadParameter, "topic alias must be greater than 0")
	}
	return b.Encode(PropTopicAlias, uint32(alias), nil, PubTopicAliasField)
}

// AddPubResponseTopic adds the Response Topic property. The topic must not contain wildcards.
func (b *PropBuilder) AddPubResponseTopic(topic []byte) error {
	if len(topic) != 0 && !ValidTopicName(topic) {
		return errors.Wrapf(ErrBadParameter, "invalid response topic %q", topic)
	}
	return b.encodeString(PropResponseTopic, topic, PubResponseTopicField)
}

// AddPubCorrelationData adds the Correlation Data property, binary data copied verbatim.
func (b *PropBuilder) AddPubCorrelationData(data []byte) error {
	return b.encodeString(PropCorrelationData, data, PubCorrelationDataField)
}

// AddPubUserProps adds user properties to a PUBLISH packet, one record per element in order.
func (b *PropBuilder) AddPubUserProps(props []UserProperty) error {
	return b.addUserProps(props, PubUserPropsField)
}

// AddPubContentType adds the Content Type property.
func (b *PropBuilder) AddPubContentType(contentType []byte) error {
	return b.encodeString(PropContentType, contentType, PubContentTypeField)
}
