package ledger

import "errors"

var (
	// ErrPersistenceFailed is returned when a store batch write fails.
	ErrPersistenceFailed = errors.New("ledger: persistence failed")
	// ErrSignatureVerificationFailed is returned by Replay when the final
	// essence signature fails to verify; a record whose own embedded
	// signature fails is logged and skipped instead. Receipt verification
	// in package transfer returns it as well.
	ErrSignatureVerificationFailed = errors.New("ledger: signature verification failed")
	// ErrCorruptRecord is returned when a decrypted numeric-key value
	// cannot be parsed as a tagged record.
	ErrCorruptRecord = errors.New("ledger: corrupt record")
)
