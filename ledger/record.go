package ledger

import (
	"fmt"

	"github.com/energyledger/client/wire"
)

// Tags for the one-byte prefix of a decrypted numeric-key value (spec
// §3 "Local ledger record").
const (
	TagUnprocessed byte = 0
	TagProcessed   byte = 1
)

// StoredRecord is the decoded form of a numeric store key's decrypted
// value: a transfer, optionally followed by its processed-quorum
// receipt.
type StoredRecord struct {
	Tag      byte
	Transfer wire.TransferRecord
	Receipt  []byte
}

// Encode packs the record as tag || 144-byte transfer || receipt.
func (r StoredRecord) Encode() []byte {
	transfer := r.Transfer.Encode()
	buf := make([]byte, 0, 1+len(transfer)+len(r.Receipt))
	buf = append(buf, r.Tag)
	buf = append(buf, transfer[:]...)
	buf = append(buf, r.Receipt...)
	return buf
}

// DecodeStoredRecord unpacks a StoredRecord from its on-disk form.
func DecodeStoredRecord(buf []byte) (StoredRecord, error) {
	var r StoredRecord
	if len(buf) < 1+wire.TransferRecordSize {
		return r, fmt.Errorf("%w: stored record too short (%d bytes)", ErrCorruptRecord, len(buf))
	}
	r.Tag = buf[0]
	transfer, err := wire.DecodeTransferRecord(buf[1 : 1+wire.TransferRecordSize])
	if err != nil {
		return r, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	r.Transfer = transfer
	if len(buf) > 1+wire.TransferRecordSize {
		r.Receipt = append([]byte{}, buf[1+wire.TransferRecordSize:]...)
	}
	return r, nil
}
