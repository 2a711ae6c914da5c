// Package codec implements C1: bit-exact encode/decode of the STUN
// header, message type field, and attribute TLVs with 4-byte padding.
//
// The wire layout follows RFC 5389 §6: header write/read, then the
// attribute TLV section with its padding arithmetic. Attributes are
// accessed through fixed-offset byte-slice views rather than a generic
// TLV walker.
package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/halcyon-systems/gostun"
)

// Codec encodes and decodes messages against a fixed set of attribute
// plug-ins. A comprehension-required attribute yields a BrokenMessage when
// no decoder is registered for its type or its registered decoder reports
// an error, so a Codec with no decoders (including the zero value) turns
// every message carrying a comprehension-required attribute into a
// BrokenMessage. Comprehension-optional attributes are kept raw either way.
type Codec struct {
	decoders map[stun.AttrType]stun.AttrDecoder
}

// New builds a Codec carrying the given attribute plug-ins.
func New(decoders ...stun.AttrDecoder) *Codec {
	c := &Codec{decoders: make(map[stun.AttrType]stun.AttrDecoder, len(decoders))}
	for _, d := range decoders {
		c.decoders[d.AttrType()] = d
	}
	return c
}

// Register adds (or replaces) a single attribute plug-in.
func (c *Codec) Register(d stun.AttrDecoder) {
	if c.decoders == nil {
		c.decoders = make(map[stun.AttrType]stun.AttrDecoder)
	}
	c.decoders[d.AttrType()] = d
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}

// Encode renders msg to its wire bytes. It fails with stun.ErrTooLarge if
// the attribute section would exceed 65535 bytes.
func (c *Codec) Encode(msg *stun.Message) ([]byte, error) {
	attrSize := 0
	for _, a := range msg.Attributes {
		attrSize += stun.AttrHeaderSize + roundUp4(len(a.Value))
	}
	if attrSize > stun.MaxAttrSectionSize {
		return nil, stun.ErrTooLarge
	}

	buf := make([]byte, stun.MessageHeaderSize, stun.MessageHeaderSize+attrSize)
	binary.BigEndian.PutUint16(buf[0:2], msg.Type().Value())
	binary.BigEndian.PutUint32(buf[4:8], stun.MagicCookie)
	copy(buf[8:20], msg.TransactionID[:])

	for _, a := range msg.Attributes {
		header := make([]byte, stun.AttrHeaderSize)
		binary.BigEndian.PutUint16(header[0:2], uint16(a.Type))
		binary.BigEndian.PutUint16(header[2:4], uint16(len(a.Value)))
		buf = append(buf, header...)
		buf = append(buf, a.Value...)
		if pad := roundUp4(len(a.Value)) - len(a.Value); pad > 0 {
			buf = append(buf, make([]byte, pad)...)
		}
	}

	// Backfill the length field now that the attribute section is
	// fully written.
	binary.BigEndian.PutUint16(buf[2:4], uint16(attrSize))
	return buf, nil
}

// Decode parses raw into a Message. It fails with stun.ErrNotStun if the
// leading two bits of the type word are non-zero, the length is not a
// multiple of 4, or the magic cookie mismatches; it fails with
// stun.ErrMalformed on a partial read within the header or an attribute.
//
// On success it returns either a fully decoded Message, or, if a
// comprehension-required attribute could not be understood, a
// BrokenMessage preserving class, method, transaction id and the
// decode error, with both return values distinguishing which happened.
func (c *Codec) Decode(raw []byte) (*stun.Message, *stun.BrokenMessage, error) {
	if len(raw) < stun.MessageHeaderSize {
		return nil, nil, errors.Wrap(stun.ErrMalformed, "short header")
	}

	typeWord := binary.BigEndian.Uint16(raw[0:2])
	if typeWord&0xc000 != 0 {
		return nil, nil, errors.Wrap(stun.ErrNotStun, "leading type bits set")
	}
	length := int(binary.BigEndian.Uint16(raw[2:4]))
	if length%4 != 0 {
		return nil, nil, errors.Wrap(stun.ErrNotStun, "length not a multiple of 4")
	}
	cookie := binary.BigEndian.Uint32(raw[4:8])
	if cookie != stun.MagicCookie {
		return nil, nil, errors.Wrap(stun.ErrNotStun, "bad magic cookie")
	}

	mt := stun.ReadMessageType(typeWord)
	msg := &stun.Message{Class: mt.Class, Method: mt.Method}
	copy(msg.TransactionID[:], raw[8:20])

	full := stun.MessageHeaderSize + length
	if len(raw) < full {
		return nil, nil, errors.Wrapf(stun.ErrMalformed, "attribute section truncated: have %d want %d", len(raw)-stun.MessageHeaderSize, length)
	}

	var unsupported []stun.AttrType
	body := raw[stun.MessageHeaderSize:full]
	offset := 0
	for offset < length {
		if len(body) < stun.AttrHeaderSize {
			return nil, nil, errors.Wrap(stun.ErrMalformed, "short attribute header")
		}
		aType := stun.AttrType(binary.BigEndian.Uint16(body[0:2]))
		aLen := int(binary.BigEndian.Uint16(body[2:4]))
		padded := roundUp4(aLen)
		body = body[stun.AttrHeaderSize:]
		offset += stun.AttrHeaderSize

		if len(body) < padded {
			return nil, nil, errors.Wrap(stun.ErrMalformed, "short attribute value")
		}
		value := body[:aLen]
		raw := stun.RawAttribute{Type: aType, Value: value}
		msg.Attributes = append(msg.Attributes, raw)

		if dec, ok := c.decoders[aType]; ok {
			if _, err := dec.Decode(raw, msg); err != nil {
				if aType.IsComprehensionRequired() {
					unsupported = append(unsupported, aType)
				}
				// comprehension-optional attributes that fail to decode
				// are skipped silently: the raw bytes stay in
				// msg.Attributes for wire fidelity, but the decode error
				// is otherwise dropped.
			}
		} else if aType.IsComprehensionRequired() {
			unsupported = append(unsupported, aType)
		}

		body = body[padded:]
		offset += padded
	}

	if len(unsupported) > 0 {
		return nil, &stun.BrokenMessage{
			Class:         msg.Class,
			Method:        msg.Method,
			TransactionID: msg.TransactionID,
			Err:           stun.NewError(stun.KindUnsupported, &stun.UnsupportedAttributesError{Types: unsupported}, "decode"),
		}, nil
	}
	return msg, nil, nil
}
