package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFailure(t *testing.T) {
	var tt = []struct {
		code Code
		want bool
	}{
		{code: Success},
		{code: NotMatchingSubscribers},
		{code: GrantedQoS2},
		{code: UnspecifiedError, want: true},
		{code: MalformedPacket, want: true},
		{code: ProtocolError, want: true},
		{code: ServerShuttingDown, want: true},
	}
	for _, v := range tt {
		assert.Equal(t, v.want, IsFailure(v.code), "0x%02X", v.code)
	}
}

func TestError(t *testing.T) {
	a := assert.New(t)
	e := NewError(MalformedPacket)
	e.ReasonString = []byte("bad")
	a.Equal("operation error: Code = 81, reasonString: bad", e.Error())
	var nilErr *Error
	a.Equal("", nilErr.Error())
}
