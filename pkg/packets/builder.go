package packets

import (
	"github.com/pkg/errors"

	"github.com/DrmagicE/coremqtt/pkg/bitmap"
)

// Field identifies a property inside the field namespace of one packet type.
// A field can be encoded at most once per builder until Reset.
type Field = uint8

// PropBuilder encodes MQTT v5.0 properties into a caller owned buffer.
// It never allocates and never grows the buffer.
// A PropBuilder must not be used by more than one goroutine at a time.
//
// When any Add or Encode call fails the builder may already hold part of the batch,
// Reset it before building again.
type PropBuilder struct {
	buf    []byte
	cursor int
	fields bitmap.Bitmap
}

// NewPropBuilder returns a builder bound to buf.
func NewPropBuilder(buf []byte) (*PropBuilder, error) {
	b := &PropBuilder{}
	if err := b.Init(buf); err != nil {
		return nil, err
	}
	return b, nil
}

// Init binds the builder to buf and clears any encoded property.
func (b *PropBuilder) Init(buf []byte) error {
	if b == nil {
		return errors.Wrap(ErrBadParameter, "nil builder")
	}
	if len(buf) == 0 {
		return errors.Wrap(ErrBadParameter, "empty property buffer")
	}
	b.buf = buf
	b.cursor = 0
	b.fields.Reset()
	return nil
}

// IsValid returns whether the builder is bound to a buffer and its cursor is in range.
func (b *PropBuilder) IsValid() bool {
	return b != nil && len(b.buf) > 0 && b.cursor >= 0 && b.cursor <= len(b.buf)
}

// Reset clears the cursor and the encoded fields. The buffer stays bound.
func (b *PropBuilder) Reset() error {
	if b == nil {
		return errors.Wrap(ErrBadParameter, "nil builder")
	}
	b.cursor = 0
	b.fields.Reset()
	return nil
}

// Size returns the number of bytes encoded so far.
func (b *PropBuilder) Size() int {
	if b == nil {
		return 0
	}
	return b.cursor
}

// Cap returns the capacity of the bound buffer.
func (b *PropBuilder) Cap() int {
	if b == nil {
		return 0
	}
	return len(b.buf)
}

// Bytes returns the encoded properties. The slice aliases the bound buffer.
func (b *PropBuilder) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.buf[:b.cursor]
}

// Has reports whether field has been encoded.
func (b *PropBuilder) Has(field Field) bool {
	return b != nil && b.fields.Get(field) == 1
}

func (b *PropBuilder) checkField(field Field) error {
	if !b.IsValid() {
		return errors.Wrap(ErrBadParameter, "invalid builder")
	}
	if field >= bitmap.Size {
		return errors.Wrapf(ErrBadParameter, "field %d out of range", field)
	}
	if b.fields.Get(field) == 1 {
		return errors.Wrapf(ErrBadParameter, "field %d already encoded", field)
	}
	return nil
}

// Encode writes the property record of id and marks field as encoded.
// Integer types take their value from num, UTF-8 string and binary data types from data.
// The record is written only if all of it fits. Otherwise ErrNoSpace is returned and the builder
// is left untouched.
//
// User properties can not be encoded by Encode, use the AddXXXUserProps methods.
func (b *PropBuilder) Encode(id PropertyID, num uint32, data []byte, field Field) error {
	if err := b.checkField(field); err != nil {
		return err
	}
	info, ok := lookupProperty(id)
	if !ok {
		return errors.Wrapf(ErrBadParameter, "unknown property identifier 0x%02X", id)
	}
	var size int
	switch info.typ {
	case PropTypeByte:
		if num > 0xFF {
			return errors.Wrapf(ErrBadParameter, "%s %d exceeds one byte", info.name, num)
		}
		size = 1
	case PropTypeTwoByteInt:
		if num > 0xFFFF {
			return errors.Wrapf(ErrBadParameter, "%s %d exceeds two bytes", info.name, num)
		}
		size = 2
	case PropTypeFourByteInt:
		size = 4
	case PropTypeVarInt:
		if num == 0 || num > MaxRemainLength {
			return errors.Wrapf(ErrBadParameter, "%s %d out of range", info.name, num)
		}
		size = RemainLengthSize(int(num))
	case PropTypeUTF8String, PropTypeBinary:
		if data == nil {
			return errors.Wrapf(ErrBadParameter, "nil %s", info.name)
		}
		if len(data) > MaxStringLength {
			return errors.Wrapf(ErrBadParameter, "%s length %d exceeds %d", info.name, len(data), MaxStringLength)
		}
		if info.typ == PropTypeUTF8String && !ValidUTF8(data) {
			return errors.Wrapf(ErrBadParameter, "%s is not valid utf-8", info.name)
		}
		size = 2 + len(data)
	default:
		return errors.Wrapf(ErrBadParameter, "%s can not be encoded as a single value", info.name)
	}
	if rest := len(b.buf) - b.cursor; rest < 1+size {
		return errors.Wrapf(ErrNoSpace, "%s needs %d bytes, %d left", info.name, 1+size, rest)
	}

	out := b.buf[b.cursor:]
	out[0] = id
	out = out[1:]
	switch info.typ {
	case PropTypeByte:
		out[0] = byte(num)
	case PropTypeTwoByteInt:
		putUint16(out, uint16(num))
	case PropTypeFourByteInt:
		putUint32(out, num)
	case PropTypeVarInt:
		EncodeRemainLength(out, int(num))
	default:
		putBinary(out, data)
	}
	b.cursor += 1 + size
	b.fields.Set(field, 1)
	return nil
}

// addUserProps writes one user property record per element of props and marks field once all succeed.
// On failure the records written before the failing one stay in the buffer.
func (b *PropBuilder) addUserProps(props []UserProperty, field Field) error {
	if err := b.checkField(field); err != nil {
		return err
	}
	if len(props) == 0 {
		return errors.Wrap(ErrBadParameter, "empty user properties")
	}
	for i := range props {
		n, err := encodeUserProperty(b.buf[b.cursor:], props[i])
		if err != nil {
			return errors.WithMessagef(err, "user property %d", i)
		}
		b.cursor += n
	}
	b.fields.Set(field, 1)
	return nil
}

// encodeString encodes a UTF-8 string or binary data property that must not be empty.
func (b *PropBuilder) encodeString(id PropertyID, data []byte, field Field) error {
	if b == nil {
		return errors.Wrap(ErrBadParameter, "nil builder")
	}
	if len(data) == 0 {
		return errors.Wrapf(ErrBadParameter, "empty %s", PropertyName(id))
	}
	return b.Encode(id, 0, data, field)
}

func boolByte(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
