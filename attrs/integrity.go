package attrs

import "github.com/halcyon-systems/gostun"

// MessageIntegrity carries a MESSAGE-INTEGRITY (RFC 5389 §15.4) value
// verbatim. Computing or verifying the HMAC-SHA1 digest is explicitly
// out of scope for the core; a caller that wants enforcement computes
// Value itself (typically over every byte preceding this attribute,
// with the header length field set as if this attribute were the last)
// and checks it on the decoded side.
type MessageIntegrity struct {
	Value [20]byte
}

// AttrType implements stun.Attr.
func (MessageIntegrity) AttrType() stun.AttrType { return TypeMessageIntegrity }

// Encode implements stun.Attr.
func (m MessageIntegrity) Encode(*stun.Message) stun.RawAttribute {
	return stun.RawAttribute{Type: TypeMessageIntegrity, Value: append([]byte(nil), m.Value[:]...)}
}

// MessageIntegrityDecoder decodes TypeMessageIntegrity attributes
// without verifying them.
type MessageIntegrityDecoder struct{}

// AttrType implements stun.AttrDecoder.
func (MessageIntegrityDecoder) AttrType() stun.AttrType { return TypeMessageIntegrity }

// Decode implements stun.AttrDecoder.
func (MessageIntegrityDecoder) Decode(raw stun.RawAttribute, _ *stun.Message) (stun.Attr, error) {
	if len(raw.Value) != 20 {
		return nil, stun.NewError(stun.KindMalformed, nil, "message-integrity: want 20 bytes, got %d", len(raw.Value))
	}
	var m MessageIntegrity
	copy(m.Value[:], raw.Value)
	return m, nil
}

// Fingerprint carries a FINGERPRINT (RFC 5389 §15.5) CRC-32 value
// verbatim; like MessageIntegrity, the core carries it but never
// computes or validates it.
type Fingerprint struct {
	Value [4]byte
}

// AttrType implements stun.Attr.
func (Fingerprint) AttrType() stun.AttrType { return TypeFingerprint }

// Encode implements stun.Attr.
func (f Fingerprint) Encode(*stun.Message) stun.RawAttribute {
	return stun.RawAttribute{Type: TypeFingerprint, Value: append([]byte(nil), f.Value[:]...)}
}

// FingerprintDecoder decodes TypeFingerprint attributes without
// validating them.
type FingerprintDecoder struct{}

// AttrType implements stun.AttrDecoder.
func (FingerprintDecoder) AttrType() stun.AttrType { return TypeFingerprint }

// Decode implements stun.AttrDecoder.
func (FingerprintDecoder) Decode(raw stun.RawAttribute, _ *stun.Message) (stun.Attr, error) {
	if len(raw.Value) != 4 {
		return nil, stun.NewError(stun.KindMalformed, nil, "fingerprint: want 4 bytes, got %d", len(raw.Value))
	}
	var f Fingerprint
	copy(f.Value[:], raw.Value)
	return f, nil
}
