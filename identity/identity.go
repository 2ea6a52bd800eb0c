// Package identity derives an identity's key material from a seed and
// renders/parses/verifies the external identity string (spec §3, §4.7).
package identity

import (
	"fmt"
	"strings"

	"github.com/energyledger/client/xcrypto"
)

// ValidateSeed reports whether seed is exactly 55 lowercase Latin letters.
func ValidateSeed(seed string) error {
	if len(seed) != seedLength {
		return ErrInvalidSeed
	}
	for _, c := range seed {
		if c < 'a' || c > 'z' {
			return ErrInvalidSeed
		}
	}
	return nil
}

// PrivateKeyPreimage computes the 55-byte preimage fed to H to derive the
// private key for (seed, index): start from seed converted to bytes
// (seed[i]-'a'), then apply index successive odometer-style increments.
func PrivateKeyPreimage(seed string, index int) ([55]byte, error) {
	var pre [55]byte
	if err := ValidateSeed(seed); err != nil {
		return pre, err
	}
	if index < 0 {
		return pre, ErrInvalidIndex
	}
	for i := 0; i < seedLength; i++ {
		pre[i] = byte(seed[i] - 'a')
	}
	for k := 0; k < index; k++ {
		incrementOdometer(&pre)
	}
	return pre, nil
}

// incrementOdometer performs one odometer-style increment in place:
// repeatedly add 1 to pre[0]; if the byte strictly exceeds 26 reset it to 1
// and carry into the next index; otherwise stop.
func incrementOdometer(pre *[55]byte) {
	i := 0
	for {
		pre[i]++
		if pre[i] > 26 {
			pre[i] = 1
			i++
			if i == len(pre) {
				return
			}
			continue
		}
		return
	}
}

// PrivateKey derives the 32-byte private key for (seed, index) using h.
func PrivateKey(h xcrypto.Hasher, seed string, index int) ([32]byte, error) {
	var out [32]byte
	pre, err := PrivateKeyPreimage(seed, index)
	if err != nil {
		return out, err
	}
	copy(out[:], h.Hash(pre[:], 32))
	return out, nil
}

// Identity is a committee identity: a 32-byte public key plus its 3-byte
// checksum.
type Identity struct {
	PublicKey [32]byte
	Checksum  [3]byte
}

// Derive computes the checksum for a public key using h and returns the
// resulting Identity.
func Derive(h xcrypto.Hasher, publicKey [32]byte) Identity {
	var id Identity
	id.PublicKey = publicKey
	copy(id.Checksum[:], h.Hash(publicKey[:], checksumLength))
	return id
}

// String renders the identity as its 70-character uppercased shifted-hex
// external form.
func (id Identity) String() string {
	buf := make([]byte, 0, publicKeyLength+checksumLength)
	buf = append(buf, id.PublicKey[:]...)
	buf = append(buf, id.Checksum[:]...)
	return strings.ToUpper(ToShiftedHex(buf))
}

// Parse decodes an external identity string back into an Identity.
func Parse(s string) (Identity, error) {
	var id Identity
	if len(s) != IdentityLength {
		return id, fmt.Errorf("identity: expected %d characters, got %d", IdentityLength, len(s))
	}
	raw, err := FromShiftedHex(s)
	if err != nil {
		return id, fmt.Errorf("identity: %w", err)
	}
	copy(id.PublicKey[:], raw[:publicKeyLength])
	copy(id.Checksum[:], raw[publicKeyLength:])
	return id, nil
}

// Verify recomputes the checksum over id.PublicKey using h and reports
// whether it matches id.Checksum.
func Verify(h xcrypto.Hasher, id Identity) bool {
	want := h.Hash(id.PublicKey[:], checksumLength)
	for i := range id.Checksum {
		if id.Checksum[i] != want[i] {
			return false
		}
	}
	return true
}

// VerifyString parses s and verifies its checksum in one step.
func VerifyString(h xcrypto.Hasher, s string) (bool, error) {
	id, err := Parse(s)
	if err != nil {
		return false, err
	}
	return Verify(h, id), nil
}

// SeedChecksum returns seedChecksum(seed): the first 3 shifted-hex
// characters of H(seedBytes, 2), uppercased.
func SeedChecksum(h xcrypto.Hasher, seed string) (string, error) {
	seedBytes, err := PrivateKeyPreimage(seed, 0)
	if err != nil {
		return "", err
	}
	digest := h.Hash(seedBytes[:], 2)
	encoded := ToShiftedHex(digest)
	return strings.ToUpper(encoded[:3]), nil
}
