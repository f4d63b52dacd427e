package packets

import (
	"github.com/pkg/errors"

	"github.com/DrmagicE/coremqtt/pkg/codes"
)

// AckProperties bundles the reason string, user properties and reason codes of an ACK-family packet.
// All slices are borrowed, usually from the buffer the packet was read into.
type AckProperties struct {
	ReasonString   []byte
	UserProperties []UserProperty
	ReasonCodes    []codes.Code
}

// Reset clears all fields.
func (p *AckProperties) Reset() error {
	if p == nil {
		return errors.Wrap(ErrBadParameter, "nil ack properties")
	}
	*p = AckProperties{}
	return nil
}

func (p *AckProperties) SetReasonString(reason []byte) error {
	if p == nil || len(reason) == 0 {
		return errors.Wrap(ErrBadParameter, "empty reason string")
	}
	p.ReasonString = reason
	return nil
}

// SetUserProperties sets the user properties. Nothing is changed if any of props is invalid.
func (p *AckProperties) SetUserProperties(props []UserProperty) error {
	if p == nil || len(props) == 0 {
		return errors.Wrap(ErrBadParameter, "empty user properties")
	}
	for i := range props {
		if !props[i].IsValid() {
			return errors.Wrapf(ErrBadParameter, "invalid user property %d", i)
		}
	}
	p.UserProperties = props
	return nil
}

func (p *AckProperties) SetReasonCodes(reasonCodes []codes.Code) error {
	if p == nil || len(reasonCodes) == 0 {
		return errors.Wrap(ErrBadParameter, "empty reason codes")
	}
	p.ReasonCodes = reasonCodes
	return nil
}

// IsValid returns whether at least one field is set and every user property is valid.
func (p *AckProperties) IsValid() bool {
	if p == nil {
		return false
	}
	if len(p.ReasonString) == 0 && len(p.UserProperties) == 0 && len(p.ReasonCodes) == 0 {
		return false
	}
	for i := range p.UserProperties {
		if !p.UserProperties[i].IsValid() {
			return false
		}
	}
	return true
}

// Size returns the encoded length of the reason string and user property records.
// Reason codes are not part of the property section and are not counted.
func (p *AckProperties) Size() int {
	if p == nil {
		return 0
	}
	var n int
	if len(p.ReasonString) > 0 {
		n += 1 + 2 + len(p.ReasonString)
	}
	for i := range p.UserProperties {
		n += p.UserProperties[i].Size()
	}
	return n
}

// AddTo encodes the reason string and user properties into b.
func (p *AckProperties) AddTo(b *PropBuilder) error {
	if !p.IsValid() {
		return errors.Wrap(ErrBadParameter, "invalid ack properties")
	}
	if len(p.ReasonString) > 0 {
		if err := b.AddAckReasonString(p.ReasonString); err != nil {
			return err
		}
	}
	if len(p.UserProperties) > 0 {
		return b.AddAckUserProps(p.UserProperties)
	}
	return nil
}
