package attrs

import (
	"encoding/binary"
	"net"

	"github.com/halcyon-systems/gostun"
)

const (
	familyIPv4 = 0x01
	familyIPv6 = 0x02
)

// XORMappedAddress is RFC 5389 §15.2: a reflexive transport address,
// XOR-masked against the magic cookie (and, for IPv6, the transaction
// id) so that NATs rewriting addresses in transit don't corrupt it.
type XORMappedAddress struct {
	IP   net.IP
	Port int
}

// AttrType implements stun.Attr.
func (a XORMappedAddress) AttrType() stun.AttrType { return TypeXORMappedAddress }

// Encode implements stun.Attr.
func (a XORMappedAddress) Encode(msg *stun.Message) stun.RawAttribute {
	ip4 := a.IP.To4()
	family := byte(familyIPv6)
	addrLen := net.IPv6len
	if ip4 != nil {
		family = familyIPv4
		addrLen = net.IPv4len
	}

	value := make([]byte, 4+addrLen)
	value[1] = family
	xport := uint16(a.Port) ^ uint16(stun.MagicCookie>>16)
	binary.BigEndian.PutUint16(value[2:4], xport)

	mask := xorMask(msg.TransactionID)
	src := ip4
	if src == nil {
		src = a.IP.To16()
	}
	for i := 0; i < addrLen; i++ {
		value[4+i] = src[i] ^ mask[i]
	}
	return stun.RawAttribute{Type: TypeXORMappedAddress, Value: value}
}

// xorMask returns the 16-byte XOR pad: the magic cookie followed by the
// transaction id, per RFC 5389 §15.2.
func xorMask(txID stun.TransactionID) [16]byte {
	var mask [16]byte
	binary.BigEndian.PutUint32(mask[0:4], stun.MagicCookie)
	copy(mask[4:], txID[:])
	return mask
}

// XORMappedAddressDecoder decodes TypeXORMappedAddress attributes.
type XORMappedAddressDecoder struct{}

// AttrType implements stun.AttrDecoder.
func (XORMappedAddressDecoder) AttrType() stun.AttrType { return TypeXORMappedAddress }

// Decode implements stun.AttrDecoder.
func (XORMappedAddressDecoder) Decode(raw stun.RawAttribute, msg *stun.Message) (stun.Attr, error) {
	if len(raw.Value) < 4 {
		return nil, stun.NewError(stun.KindMalformed, nil, "xor-mapped-address: short value (%d bytes)", len(raw.Value))
	}
	family := raw.Value[1]
	var addrLen int
	switch family {
	case familyIPv4:
		addrLen = net.IPv4len
	case familyIPv6:
		addrLen = net.IPv6len
	default:
		return nil, stun.NewError(stun.KindMalformed, nil, "xor-mapped-address: unknown family 0x%02x", family)
	}
	if len(raw.Value) != 4+addrLen {
		return nil, stun.NewError(stun.KindMalformed, nil, "xor-mapped-address: length %d does not match family", len(raw.Value))
	}

	xport := binary.BigEndian.Uint16(raw.Value[2:4])
	port := int(xport ^ uint16(stun.MagicCookie>>16))

	mask := xorMask(msg.TransactionID)
	ip := make(net.IP, addrLen)
	for i := 0; i < addrLen; i++ {
		ip[i] = raw.Value[4+i] ^ mask[i]
	}
	return XORMappedAddress{IP: ip, Port: port}, nil
}
