package packets

// ACK-family property fields. DISCONNECT and AUTH share the namespace.
const (
	AckReasonStringField Field = iota
	AckUserPropsField
	DisconnSessionExpiryField
	DisconnServerReferenceField
	AuthMethodField
	AuthDataField
)

// AddAckReasonString adds the Reason String property to an ACK-family packet.
func (b *PropBuilder) AddAckReasonString(reason []byte) error {
	return b.encodeString(PropReasonString, reason, AckReasonStringField)
}

// AddAckUserProps adds user properties to an ACK-family packet.
func (b *PropBuilder) AddAckUserProps(props []UserProperty) error {
	return b.addUserProps(props, AckUserPropsField)
}

// AddDisconnSessionExpiry adds the Session Expiry Interval property of DISCONNECT.
func (b *PropBuilder) AddDisconnSessionExpiry(interval uint32) error {
	return b.Encode(PropSessionExpiryInterval, interval, nil, DisconnSessionExpiryField)
}

// AddDisconnServerReference adds the Server Reference property of DISCONNECT.
func (b *PropBuilder) AddDisconnServerReference(ref []byte) error {
	return b.encodeString(PropServerReference, ref, DisconnServerReferenceField)
}

// AddAuthMethod adds the Authentication Method property of AUTH.
func (b *PropBuilder) AddAuthMethod(method []byte) error {
	return b.encodeString(PropAuthMethod, method, AuthMethodField)
}

// AddAuthData adds the Authentication Data property of AUTH.
func (b *PropBuilder) AddAuthData(data []byte) error {
	return b.encodeString(PropAuthData, data, AuthDataField)
}
