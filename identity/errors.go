package identity

import "errors"

var (
	// ErrInvalidSeed is returned when a seed is not exactly 55 lowercase
	// Latin letters.
	ErrInvalidSeed = errors.New("identity: seed must be 55 lowercase latin letters")
	// ErrInvalidIndex is returned when a derivation index is negative.
	ErrInvalidIndex = errors.New("identity: index must be a non-negative integer")
	// ErrInvalidChecksum reports that the trailing checksum bytes of an
	// identity string do not match the recomputed checksum. Verify itself
	// returns false in that case; transfer.Build returns this error for a
	// destination that fails the check.
	ErrInvalidChecksum = errors.New("identity: invalid checksum")
)

const (
	seedLength      = 55
	publicKeyLength = 32
	checksumLength  = 3
	// IdentityLength is the external identity string length: 35 bytes
	// (32-byte public key + 3-byte checksum) rendered two shifted-hex
	// characters per byte.
	IdentityLength = (publicKeyLength + checksumLength) * 2
)
