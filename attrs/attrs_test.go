package attrs

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-systems/gostun"
)

func TestXORMappedAddressRoundTripIPv4(t *testing.T) {
	msg := stun.NewMessage(stun.ClassSuccessResponse, stun.MethodBinding, stun.TransactionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	attr := XORMappedAddress{IP: net.IPv4(203, 0, 113, 5).To4(), Port: 54321}
	msg.Add(attr)

	decoded, ok, err := msg.Get(XORMappedAddressDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	got := decoded.(XORMappedAddress)
	assert.Equal(t, 54321, got.Port)
	assert.True(t, got.IP.Equal(attr.IP), "want %v got %v", attr.IP, got.IP)
}

func TestXORMappedAddressRoundTripIPv6(t *testing.T) {
	msg := stun.NewMessage(stun.ClassSuccessResponse, stun.MethodBinding, stun.TransactionID{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9})
	ip := net.ParseIP("2001:db8::1")
	attr := XORMappedAddress{IP: ip, Port: 1}
	msg.Add(attr)

	decoded, ok, err := msg.Get(XORMappedAddressDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	got := decoded.(XORMappedAddress)
	assert.Equal(t, 1, got.Port)
	assert.True(t, got.IP.Equal(ip))
}

func TestErrorCodeRoundTrip(t *testing.T) {
	msg := stun.NewMessage(stun.ClassErrorResponse, stun.MethodBinding, stun.TransactionID{})
	attr := ErrorCode{Code: 420, Reason: "Unknown Attribute"}
	msg.Add(attr)

	decoded, ok, err := msg.Get(ErrorCodeDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	got := decoded.(ErrorCode)
	assert.Equal(t, uint16(420), got.Code)
	assert.Equal(t, "Unknown Attribute", got.Reason)
}

func TestUnknownAttributesRoundTrip(t *testing.T) {
	msg := stun.NewMessage(stun.ClassErrorResponse, stun.MethodBinding, stun.TransactionID{})
	attr := UnknownAttributes{Types: []stun.AttrType{0x0001, 0x0007}}
	msg.Add(attr)

	decoded, ok, err := msg.Get(UnknownAttributesDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	got := decoded.(UnknownAttributes)
	assert.Equal(t, attr.Types, got.Types)
}

func TestSoftwareRoundTrip(t *testing.T) {
	msg := stun.NewMessage(stun.ClassRequest, stun.MethodBinding, stun.TransactionID{})
	msg.Add(Software{Description: "gostun/1.0"})

	decoded, ok, err := msg.Get(SoftwareDecoder{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gostun/1.0", decoded.(Software).Description)
}

func TestDeriveLongTermKeyIsDeterministicAndSaltedByIdentity(t *testing.T) {
	k1 := DeriveLongTermKey("alice", "example.org", "hunter2", 4096)
	k2 := DeriveLongTermKey("alice", "example.org", "hunter2", 4096)
	assert.Equal(t, k1, k2)

	k3 := DeriveLongTermKey("bob", "example.org", "hunter2", 4096)
	assert.NotEqual(t, k1, k3)
}
