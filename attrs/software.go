package attrs

import "github.com/halcyon-systems/gostun"

// Software is RFC 5389 §15.10: a UTF-8 description of the software in
// use, comprehension-optional so unrecognizing receivers skip it
// silently rather than rejecting the message.
type Software struct {
	Description string
}

// AttrType implements stun.Attr.
func (Software) AttrType() stun.AttrType { return TypeSoftware }

// Encode implements stun.Attr.
func (s Software) Encode(*stun.Message) stun.RawAttribute {
	return stun.RawAttribute{Type: TypeSoftware, Value: []byte(s.Description)}
}

// SoftwareDecoder decodes TypeSoftware attributes.
type SoftwareDecoder struct{}

// AttrType implements stun.AttrDecoder.
func (SoftwareDecoder) AttrType() stun.AttrType { return TypeSoftware }

// Decode implements stun.AttrDecoder.
func (SoftwareDecoder) Decode(raw stun.RawAttribute, _ *stun.Message) (stun.Attr, error) {
	return Software{Description: string(raw.Value)}, nil
}
