package transfer

import (
	"fmt"

	"github.com/energyledger/client/identity"
	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xcrypto"
)

// Build validates inputs and produces a signed, hash-frozen transfer
// record (spec §4.5 "Build").
func Build(h xcrypto.Hasher, signer xcrypto.Signer, destination string, energy uint64, clock Clock) (wire.TransferRecord, [32]byte, error) {
	id, err := identity.Parse(destination)
	if err != nil {
		return wire.TransferRecord{}, [32]byte{}, fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}
	if !identity.Verify(h, id) {
		return wire.TransferRecord{}, [32]byte{}, identity.ErrInvalidChecksum
	}
	if energy < wire.MinEnergyAmount {
		return wire.TransferRecord{}, [32]byte{}, fmt.Errorf("%w: energy", ErrIllegalArgument)
	}

	var record wire.TransferRecord
	record.Source = signer.PublicKey()
	record.Destination = id.PublicKey
	record.Timestamp = clock.Now()
	record.Energy = energy

	digestInput := record.SigningDigestInput()
	var digest [32]byte
	copy(digest[:], h.Hash(digestInput[:], 32))
	sig, err := signer.Sign(digest)
	if err != nil {
		return wire.TransferRecord{}, [32]byte{}, fmt.Errorf("transfer: sign: %w", err)
	}
	record.Signature = sig

	encoded := record.Encode()
	var hash [32]byte
	copy(hash[:], h.Hash(encoded[:], 32))
	return record, hash, nil
}
