package stun

import "fmt"

// TransactionID is the 96-bit token RFC 5389 uses to correlate a response
// (or error response) with the request that triggered it.
type TransactionID [12]byte

func (t TransactionID) String() string {
	return fmt.Sprintf("%x", [12]byte(t))
}

// Class is one of {Request, Indication, SuccessResponse, ErrorResponse},
// carried in two bits of the wire message type.
type Class uint8

const (
	ClassRequest Class = iota
	ClassIndication
	ClassSuccessResponse
	ClassErrorResponse
)

func (c Class) String() string {
	switch c {
	case ClassRequest:
		return "request"
	case ClassIndication:
		return "indication"
	case ClassSuccessResponse:
		return "success response"
	case ClassErrorResponse:
		return "error response"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// IsResponse reports whether c is SuccessResponse or ErrorResponse.
func (c Class) IsResponse() bool {
	return c == ClassSuccessResponse || c == ClassErrorResponse
}

// Method is the 12-bit opaque operation code of a message.
type Method uint16

// MethodBinding is the canonical STUN method, RFC 5389 §3.
const MethodBinding Method = 0x001

func (m Method) String() string {
	if m == MethodBinding {
		return "binding"
	}
	return fmt.Sprintf("method(0x%03x)", uint16(m))
}

// MessageType is the 16-bit wire type field: two zero bits, then class and
// method bits interleaved per RFC 5389 §6 Figure 3.
type MessageType struct {
	Class  Class
	Method Method
}

const (
	methodABits = 0xf
	methodBBits = 0x70
	methodDBits = 0xf80

	methodBShift = 1
	methodDShift = 2

	c0Bit = 0x1
	c1Bit = 0x2

	classC0Shift = 4
	classC1Shift = 7
)

// Value bit-interleaves Class and Method into the 16-bit wire type.
func (t MessageType) Value() uint16 {
	m := uint16(t.Method)
	a := m & methodABits
	b := m & methodBBits
	d := m & methodDBits
	m = a + (b << methodBShift) + (d << methodDShift)

	c := uint16(t.Class)
	c0 := (c & c0Bit) << classC0Shift
	c1 := (c & c1Bit) << classC1Shift

	return m + c0 + c1
}

// ReadMessageType decodes the 16-bit wire type field into its Class and
// Method. The caller is responsible for having verified the two leading
// bits of v are zero.
func ReadMessageType(v uint16) MessageType {
	c0 := (v >> classC0Shift) & c0Bit
	c1 := (v >> classC1Shift) & c1Bit

	a := v & methodABits
	b := (v >> methodBShift) & methodBBits
	d := (v >> methodDShift) & methodDBits

	return MessageType{
		Class:  Class(c0 + c1),
		Method: Method(a + b + d),
	}
}

// AttrType is the 16-bit attribute type field. The high bit distinguishes
// comprehension-required (clear) from comprehension-optional (set) types.
type AttrType uint16

// IsComprehensionRequired reports whether a receiver must understand this
// attribute type or reject the enclosing message.
func (t AttrType) IsComprehensionRequired() bool {
	return t&0x8000 == 0
}

func (t AttrType) String() string {
	return fmt.Sprintf("0x%04x", uint16(t))
}

// RawAttribute is an attribute as it appears (or will appear) on the wire:
// a type, and the value bytes with padding already stripped. Attribute
// order is preserved verbatim from encode to decode and back.
type RawAttribute struct {
	Type  AttrType
	Value []byte
}

// Equal compares two raw attributes by type and value.
func (a RawAttribute) Equal(b RawAttribute) bool {
	if a.Type != b.Type || len(a.Value) != len(b.Value) {
		return false
	}
	for i := range a.Value {
		if a.Value[i] != b.Value[i] {
			return false
		}
	}
	return true
}

// Message is a fully, structurally decoded STUN message: a 20-byte header
// plus an ordered attribute section. Message never carries padding bytes
// or the wire-level length field; those are codec concerns.
type Message struct {
	Class         Class
	Method        Method
	TransactionID TransactionID
	Attributes    []RawAttribute
}

// NewMessage builds a message with the given class, method and
// transaction id and no attributes.
func NewMessage(class Class, method Method, txID TransactionID) *Message {
	return &Message{Class: class, Method: method, TransactionID: txID}
}

// Type returns the bit-interleaved wire MessageType for m.
func (m *Message) Type() MessageType {
	return MessageType{Class: m.Class, Method: m.Method}
}

// AddRaw appends a raw attribute to the message, preserving call order.
func (m *Message) AddRaw(t AttrType, value []byte) {
	m.Attributes = append(m.Attributes, RawAttribute{Type: t, Value: value})
}

// Add encodes attr against m (so far) and appends the resulting raw
// attribute, preserving call order.
func (m *Message) Add(attr Attr) {
	m.Attributes = append(m.Attributes, attr.Encode(m))
}

// GetRaw returns the first raw attribute of the given type, if any.
func (m *Message) GetRaw(t AttrType) (RawAttribute, bool) {
	for _, a := range m.Attributes {
		if a.Type == t {
			return a, true
		}
	}
	return RawAttribute{}, false
}

// Get decodes the first attribute matching dec's type using dec, against
// the enclosing message m. It returns ok=false if no such attribute is
// present; it returns a non-nil error if the attribute is present but
// dec failed to decode it.
func (m *Message) Get(dec AttrDecoder) (attr Attr, ok bool, err error) {
	raw, found := m.GetRaw(dec.AttrType())
	if !found {
		return nil, false, nil
	}
	attr, err = dec.Decode(raw, m)
	return attr, true, err
}

// Equal compares two messages by class, method, transaction id and the
// full (ordered) attribute list. Used by the codec round-trip tests.
func (m *Message) Equal(o *Message) bool {
	if m.Class != o.Class || m.Method != o.Method || m.TransactionID != o.TransactionID {
		return false
	}
	if len(m.Attributes) != len(o.Attributes) {
		return false
	}
	for i := range m.Attributes {
		if !m.Attributes[i].Equal(o.Attributes[i]) {
			return false
		}
	}
	return true
}

func (m *Message) String() string {
	return fmt.Sprintf("%s %s id=%s attrs=%d", m.Method, m.Class, m.TransactionID, len(m.Attributes))
}

// BrokenMessage is yielded by the codec when structural decoding succeeds
// but a comprehension-required attribute could not be decoded (either
// because no codec plug-in understands its type, or because a registered
// plug-in's Decode returned an error). It preserves exactly the three
// fields the channel needs to possibly synthesize an error response.
type BrokenMessage struct {
	Class         Class
	Method        Method
	TransactionID TransactionID
	Err           error
}

func (b *BrokenMessage) Error() string {
	return fmt.Sprintf("broken message (%s %s id=%s): %v", b.Method, b.Class, b.TransactionID, b.Err)
}

// Attr is a decoded, typed attribute value. Implementations are produced
// by value and keep no back-pointer to the raw bytes they came from.
type Attr interface {
	// AttrType returns the wire attribute type this value encodes as.
	AttrType() AttrType
	// Encode renders the value as a RawAttribute. msg is the
	// partially-constructed enclosing message (attributes added before
	// this one are already present), for codecs that must hash-chain
	// prior bytes (e.g. MESSAGE-INTEGRITY).
	Encode(msg *Message) RawAttribute
}

// AttrDecoder is the user-supplied attribute codec plug-in contract
// described in spec §6: it knows how to recognize and decode exactly one
// attribute type.
type AttrDecoder interface {
	// AttrType is the wire type this decoder understands.
	AttrType() AttrType
	// Decode converts a raw attribute into a typed Attr. msg is the
	// enclosing message, for codecs needing that context: during codec
	// decoding it holds the header and the attributes up to and including
	// raw; from Message.Get it is the whole message.
	Decode(raw RawAttribute, msg *Message) (Attr, error)
}

// UnsupportedAttributesError is the error a BrokenMessage carries when one
// or more comprehension-required attributes could not be understood: no
// AttrDecoder is registered for their type, or a registered decoder's
// Decode call failed. Types preserves the offending attribute types in
// encounter order, so a server can enumerate them in an UNKNOWN-ATTRIBUTES
// attribute on its synthesized 420 response.
type UnsupportedAttributesError struct {
	Types []AttrType
}

func (e *UnsupportedAttributesError) Error() string {
	return fmt.Sprintf("unsupported comprehension-required attributes: %v", e.Types)
}
