package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-systems/gostun"
)

func txID(b byte) stun.TransactionID {
	var id stun.TransactionID
	for i := range id {
		id[i] = b
	}
	return id
}

// passthrough accepts any value of its type, so the round-trip cases'
// comprehension-required attributes count as understood by the codec.
type passthrough struct{ typ stun.AttrType }

func (p passthrough) AttrType() stun.AttrType { return p.typ }
func (p passthrough) Decode(stun.RawAttribute, *stun.Message) (stun.Attr, error) {
	return nil, nil
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(passthrough{typ: 0x0001}, passthrough{typ: 0x0009}, passthrough{typ: 0x0020})

	cases := []struct {
		name string
		msg  *stun.Message
	}{
		{"no attributes", stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(1))},
		{"one attribute, unpadded", func() *stun.Message {
			m := stun.NewMessage(stun.ClassSuccessResponse, stun.MethodBinding, txID(2))
			m.AddRaw(0x0001, []byte{1, 2, 3, 4})
			return m
		}()},
		{"one attribute, needs padding", func() *stun.Message {
			m := stun.NewMessage(stun.ClassSuccessResponse, stun.MethodBinding, txID(3))
			m.AddRaw(0x0001, []byte{1, 2, 3})
			return m
		}()},
		{"multiple attributes preserve order", func() *stun.Message {
			m := stun.NewMessage(stun.ClassErrorResponse, stun.MethodBinding, txID(4))
			m.AddRaw(0x0009, []byte{0, 0, 4, 0o1})
			m.AddRaw(0x0020, []byte{0, 1, 0x21, 0x12, 0x0A, 0x43})
			m.AddRaw(0x8022, []byte("gostun"))
			return m
		}()},
		{"empty value attribute", func() *stun.Message {
			m := stun.NewMessage(stun.ClassIndication, stun.MethodBinding, txID(5))
			m.AddRaw(0x0001, nil)
			return m
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire, err := c.Encode(tc.msg)
			require.NoError(t, err)
			assert.Equal(t, 0, len(wire)%4, "encoded message must be a multiple of 4 bytes")

			decoded, broken, err := c.Decode(wire)
			require.NoError(t, err)
			require.Nil(t, broken)
			require.NotNil(t, decoded)
			assert.True(t, tc.msg.Equal(decoded))

			// Invariant 1: encode(decode(m)) == m byte-exact.
			again, err := c.Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, wire, again)
		})
	}
}

func TestDecodeRejectsLeadingTypeBits(t *testing.T) {
	c := New()
	raw := make([]byte, 20)
	raw[0] = 0xC0 // sets both leading bits
	_, _, err := c.Decode(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, stun.ErrNotStun)
}

func TestDecodeRejectsBadMagicCookie(t *testing.T) {
	c := New()
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(9))
	wire, err := c.Encode(msg)
	require.NoError(t, err)
	wire[4] ^= 0xff // corrupt magic cookie
	_, _, err = c.Decode(wire)
	require.Error(t, err)
	assert.ErrorIs(t, err, stun.ErrNotStun)
}

func TestDecodeRejectsUnalignedLength(t *testing.T) {
	c := New()
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(9))
	msg.AddRaw(0x0001, []byte{1, 2, 3, 4})
	wire, err := c.Encode(msg)
	require.NoError(t, err)
	wire[3]-- // claim one byte less than a multiple of 4
	_, _, err = c.Decode(wire)
	require.Error(t, err)
	assert.ErrorIs(t, err, stun.ErrNotStun)
}

func TestDecodeRejectsTruncatedAttributeSection(t *testing.T) {
	c := New()
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(9))
	msg.AddRaw(0x0001, []byte{1, 2, 3, 4})
	wire, err := c.Encode(msg)
	require.NoError(t, err)
	_, _, err = c.Decode(wire[:len(wire)-4])
	require.Error(t, err)
	assert.ErrorIs(t, err, stun.ErrMalformed)
}

func TestEncodeRejectsOversizedAttributeSection(t *testing.T) {
	c := New()
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(9))
	msg.AddRaw(0x0001, make([]byte, stun.MaxAttrSectionSize+4))
	_, err := c.Encode(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, stun.ErrTooLarge)
}

// fakeRequired decodes nothing usable; it is registered under a
// comprehension-required type to exercise the BrokenMessage path.
type fakeRequired struct{ typ stun.AttrType }

func (f fakeRequired) AttrType() stun.AttrType { return f.typ }
func (f fakeRequired) Decode(raw stun.RawAttribute, msg *stun.Message) (stun.Attr, error) {
	return nil, assertErr
}

var assertErr = stun.NewError(stun.KindMalformed, nil, "fake decode failure")

func TestDecodeUnknownComprehensionRequiredYieldsBrokenMessage(t *testing.T) {
	c := New()
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(7))
	msg.AddRaw(0x0001, []byte{1, 2, 3, 4}) // high bit clear: comprehension-required, unregistered
	wire, err := c.Encode(msg)
	require.NoError(t, err)

	decoded, broken, err := c.Decode(wire)
	require.NoError(t, err)
	assert.Nil(t, decoded)
	require.NotNil(t, broken)
	assert.Equal(t, stun.ClassRequest, broken.Class)
	assert.Equal(t, stun.MethodBinding, broken.Method)
	assert.Equal(t, txID(7), broken.TransactionID)
	assert.ErrorIs(t, broken.Err, stun.ErrUnsupported)

	var unsupported *stun.UnsupportedAttributesError
	require.ErrorAs(t, broken.Err, &unsupported)
	assert.Equal(t, []stun.AttrType{0x0001}, unsupported.Types)
}

func TestDecodeComprehensionOptionalFailureIsSkippedSilently(t *testing.T) {
	c := New()
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(8))
	msg.AddRaw(0x8001, []byte{1, 2, 3, 4}) // high bit set: comprehension-optional
	wire, err := c.Encode(msg)
	require.NoError(t, err)

	decoded, broken, err := c.Decode(wire)
	require.NoError(t, err)
	require.Nil(t, broken)
	require.NotNil(t, decoded)
	// the raw attribute is preserved for wire fidelity even though no
	// decoder understands it.
	_, ok := decoded.GetRaw(0x8001)
	assert.True(t, ok)
}

func TestDecodeRegisteredDecoderErrorOnRequiredAttributeIsBroken(t *testing.T) {
	c := New(fakeRequired{typ: 0x0003})
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, txID(10))
	msg.AddRaw(0x0003, []byte{0, 0, 0, 0})
	wire, err := c.Encode(msg)
	require.NoError(t, err)

	decoded, broken, err := c.Decode(wire)
	require.NoError(t, err)
	assert.Nil(t, decoded)
	require.NotNil(t, broken)
	var unsupported *stun.UnsupportedAttributesError
	require.ErrorAs(t, broken.Err, &unsupported)
	assert.Equal(t, []stun.AttrType{0x0003}, unsupported.Types)
}
