package attrs

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveLongTermKey derives a long-term-credential key from username,
// realm and password, for use as the key input to a MESSAGE-INTEGRITY
// plug-in that wants stronger key stretching than RFC 5389's plain
// MD5(username:realm:password) construction. iterations should be tuned
// to the deployment's key-derivation cost budget.
func DeriveLongTermKey(username, realm, password string, iterations int) []byte {
	salt := []byte(username + ":" + realm)
	return pbkdf2.Key([]byte(password), salt, iterations, sha256.Size, sha256.New)
}
