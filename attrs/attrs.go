// Package attrs provides a sample attribute codec plug-in set: the
// handful of RFC 5389 attributes a BINDING exchange actually needs
// (XOR-MAPPED-ADDRESS, ERROR-CODE, UNKNOWN-ATTRIBUTES, SOFTWARE), plus
// carry-only stand-ins for MESSAGE-INTEGRITY and FINGERPRINT and a
// long-term-credential key derivation helper. None of these interpret
// or enforce security semantics: message integrity, fingerprint
// validation and credential checking are explicitly out of scope; the
// core only needs to encode and decode their bytes.
package attrs

import "github.com/halcyon-systems/gostun"

// RFC 5389 §18.2 attribute registry entries this package understands.
const (
	TypeMappedAddress     stun.AttrType = 0x0001
	TypeUsername          stun.AttrType = 0x0006
	TypeMessageIntegrity  stun.AttrType = 0x0008
	TypeErrorCode         stun.AttrType = 0x0009
	TypeUnknownAttributes stun.AttrType = 0x000a
	TypeRealm             stun.AttrType = 0x0014
	TypeNonce             stun.AttrType = 0x0015
	TypeXORMappedAddress  stun.AttrType = 0x0020
	TypeSoftware          stun.AttrType = 0x8022
	TypeFingerprint       stun.AttrType = 0x8028
)
