package packets

import (
	"bytes"

	"github.com/pkg/errors"
)

// UserProperty is a MQTT v5.0 user property. Key and Value are borrowed from the caller and never copied.
type UserProperty struct {
	Key   []byte
	Value []byte
}

// NewUserProperty returns a UserProperty of key and value.
func NewUserProperty(key, value []byte) UserProperty {
	return UserProperty{Key: key, Value: value}
}

// IsValid returns whether both key and value are non-empty UTF-8 strings accepted by ValidUTF8.
func (u UserProperty) IsValid() bool {
	return len(u.Key) > 0 && len(u.Key) <= MaxStringLength && ValidUTF8(u.Key) &&
		len(u.Value) > 0 && len(u.Value) <= MaxStringLength && ValidUTF8(u.Value)
}

// Size returns the encoded length of the user property record, including the identifier byte.
func (u UserProperty) Size() int {
	return 1 + 2 + len(u.Key) + 2 + len(u.Value)
}

// Equal reports whether u and v hold the same key and value bytes.
func (u UserProperty) Equal(v UserProperty) bool {
	return bytes.Equal(u.Key, v.Key) && bytes.Equal(u.Value, v.Value)
}

func (u UserProperty) String() string {
	return string(u.Key) + "=" + string(u.Value)
}

// encodeUserProperty writes the record of u at the start of buf and returns the bytes written.
// Nothing is written if buf is too small.
func encodeUserProperty(buf []byte, u UserProperty) (int, error) {
	if !u.IsValid() {
		return 0, errors.Wrap(ErrBadParameter, "invalid user property")
	}
	size := u.Size()
	if len(buf) < size {
		return 0, errors.Wrapf(ErrNoSpace, "user property needs %d bytes, %d left", size, len(buf))
	}
	buf[0] = PropUserProperty
	n := 1
	n += putBinary(buf[n:], u.Key)
	n += putBinary(buf[n:], u.Value)
	return n, nil
}

// decodeUserProperty reads the key and value of a user property record whose identifier
// has already been consumed.
func decodeUserProperty(buf []byte) (UserProperty, int, error) {
	key, kn, err := readUTF8String(true, buf)
	if err != nil {
		return UserProperty{}, 0, errors.WithMessage(err, "user property key")
	}
	value, vn, err := readUTF8String(true, buf[kn:])
	if err != nil {
		return UserProperty{}, 0, errors.WithMessage(err, "user property value")
	}
	return UserProperty{Key: key, Value: value}, kn + vn, nil
}

// putBinary writes the two byte length prefix and b. The caller checks capacity.
func putBinary(buf []byte, b []byte) int {
	putUint16(buf, uint16(len(b)))
	return 2 + copy(buf[2:], b)
}
