package stun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageTypeBitInterleaveRoundTrip(t *testing.T) {
	classes := []Class{ClassRequest, ClassIndication, ClassSuccessResponse, ClassErrorResponse}
	methods := []Method{0x000, 0x001, 0x07f, 0x3ff, 0xfff, MethodBinding}

	for _, class := range classes {
		for _, method := range methods {
			mt := MessageType{Class: class, Method: method}
			v := mt.Value()

			// Leading two bits must always be zero.
			assert.Equal(t, uint16(0), v&0xC000, "class=%v method=%v", class, method)

			got := ReadMessageType(v)
			assert.Equal(t, mt, got, "round trip class=%v method=%v", class, method)
		}
	}
}

func TestMessageTypeKnownWireValues(t *testing.T) {
	// RFC 5389 worked examples: Binding Request = 0x0001, Binding
	// Success Response = 0x0101, Binding Error Response = 0x0111,
	// Binding Indication = 0x0011.
	cases := []struct {
		mt   MessageType
		wire uint16
	}{
		{MessageType{ClassRequest, MethodBinding}, 0x0001},
		{MessageType{ClassIndication, MethodBinding}, 0x0011},
		{MessageType{ClassSuccessResponse, MethodBinding}, 0x0101},
		{MessageType{ClassErrorResponse, MethodBinding}, 0x0111},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.wire, tc.mt.Value())
		assert.Equal(t, tc.mt, ReadMessageType(tc.wire))
	}
}

func TestAttrTypeComprehension(t *testing.T) {
	assert.True(t, AttrType(0x0001).IsComprehensionRequired())
	assert.True(t, AttrType(0x7fff).IsComprehensionRequired())
	assert.False(t, AttrType(0x8000).IsComprehensionRequired())
	assert.False(t, AttrType(0xffff).IsComprehensionRequired())
}

func TestMessageGetDecodesInPlace(t *testing.T) {
	m := NewMessage(ClassSuccessResponse, MethodBinding, TransactionID{})
	m.AddRaw(0x0020, []byte{0, 1, 2, 3})

	attr, ok, err := m.Get(echoDecoder{})
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, AttrType(0x0020), attr.AttrType())

	_, ok, err = m.Get(echoDecoder{typ: 0x0099})
	assert.False(t, ok)
	assert.NoError(t, err)
}

type echoAttr struct {
	typ   AttrType
	value []byte
}

func (a echoAttr) AttrType() AttrType { return a.typ }
func (a echoAttr) Encode(*Message) RawAttribute {
	return RawAttribute{Type: a.typ, Value: a.value}
}

type echoDecoder struct{ typ AttrType }

func (d echoDecoder) AttrType() AttrType {
	if d.typ == 0 {
		return 0x0020
	}
	return d.typ
}
func (d echoDecoder) Decode(raw RawAttribute, _ *Message) (Attr, error) {
	return echoAttr{typ: raw.Type, value: raw.Value}, nil
}
