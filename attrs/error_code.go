package attrs

import (
	"encoding/binary"

	"github.com/halcyon-systems/gostun"
)

// ErrorCode is RFC 5389 §15.6: a numeric error code in [300, 599] plus a
// UTF-8 reason phrase of at most 127 characters.
type ErrorCode struct {
	Code   uint16
	Reason string
}

// AttrType implements stun.Attr.
func (e ErrorCode) AttrType() stun.AttrType { return TypeErrorCode }

// Encode implements stun.Attr.
func (e ErrorCode) Encode(*stun.Message) stun.RawAttribute {
	value := make([]byte, 4+len(e.Reason))
	value[2] = byte(e.Code / 100)
	value[3] = byte(e.Code % 100)
	copy(value[4:], e.Reason)
	return stun.RawAttribute{Type: TypeErrorCode, Value: value}
}

// ErrorCodeDecoder decodes TypeErrorCode attributes.
type ErrorCodeDecoder struct{}

// AttrType implements stun.AttrDecoder.
func (ErrorCodeDecoder) AttrType() stun.AttrType { return TypeErrorCode }

// Decode implements stun.AttrDecoder.
func (ErrorCodeDecoder) Decode(raw stun.RawAttribute, _ *stun.Message) (stun.Attr, error) {
	if len(raw.Value) < 4 {
		return nil, stun.NewError(stun.KindMalformed, nil, "error-code: short value (%d bytes)", len(raw.Value))
	}
	class := raw.Value[2] & 0x07
	number := raw.Value[3]
	code := uint16(class)*100 + uint16(number)
	return ErrorCode{Code: code, Reason: string(raw.Value[4:])}, nil
}

// UnknownAttributes is RFC 5389 §15.9: the list of comprehension-required
// attribute types a server could not understand in a request, carried in
// a 420 error response.
type UnknownAttributes struct {
	Types []stun.AttrType
}

// AttrType implements stun.Attr.
func (UnknownAttributes) AttrType() stun.AttrType { return TypeUnknownAttributes }

// Encode implements stun.Attr.
func (u UnknownAttributes) Encode(*stun.Message) stun.RawAttribute {
	value := make([]byte, 2*len(u.Types))
	for i, t := range u.Types {
		binary.BigEndian.PutUint16(value[2*i:], uint16(t))
	}
	return stun.RawAttribute{Type: TypeUnknownAttributes, Value: value}
}

// UnknownAttributesDecoder decodes TypeUnknownAttributes attributes.
type UnknownAttributesDecoder struct{}

// AttrType implements stun.AttrDecoder.
func (UnknownAttributesDecoder) AttrType() stun.AttrType { return TypeUnknownAttributes }

// Decode implements stun.AttrDecoder.
func (UnknownAttributesDecoder) Decode(raw stun.RawAttribute, _ *stun.Message) (stun.Attr, error) {
	if len(raw.Value)%2 != 0 {
		return nil, stun.NewError(stun.KindMalformed, nil, "unknown-attributes: odd value length %d", len(raw.Value))
	}
	types := make([]stun.AttrType, len(raw.Value)/2)
	for i := range types {
		types[i] = stun.AttrType(binary.BigEndian.Uint16(raw.Value[2*i:]))
	}
	return UnknownAttributes{Types: types}, nil
}
