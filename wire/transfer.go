package wire

import (
	"encoding/binary"
	"fmt"
)

// TransferRecord is the packed 144-byte transfer record of spec.md §3.
type TransferRecord struct {
	Source      [32]byte
	Destination [32]byte
	Timestamp   uint64
	Energy      uint64
	Signature   [64]byte
}

// Encode packs the record into its 144-byte wire form.
func (t TransferRecord) Encode() [TransferRecordSize]byte {
	var buf [TransferRecordSize]byte
	copy(buf[0:32], t.Source[:])
	copy(buf[32:64], t.Destination[:])
	binary.LittleEndian.PutUint64(buf[64:72], t.Timestamp)
	binary.LittleEndian.PutUint64(buf[72:80], t.Energy)
	copy(buf[80:144], t.Signature[:])
	return buf
}

// DecodeTransferRecord unpacks a 144-byte transfer record.
func DecodeTransferRecord(buf []byte) (TransferRecord, error) {
	var t TransferRecord
	if len(buf) != TransferRecordSize {
		return t, fmt.Errorf("wire: transfer record must be %d bytes, got %d", TransferRecordSize, len(buf))
	}
	copy(t.Source[:], buf[0:32])
	copy(t.Destination[:], buf[32:64])
	t.Timestamp = binary.LittleEndian.Uint64(buf[64:72])
	t.Energy = binary.LittleEndian.Uint64(buf[72:80])
	copy(t.Signature[:], buf[80:144])
	return t, nil
}

// SigningDigestInput returns the 80-byte unsigned prefix of the record
// with byte 0 XORed by 1, ready to be hashed into the signing digest
// (spec §3: "the signing digest is H(record[0..80] with byte[0] XOR 1, 32)").
func (t TransferRecord) SigningDigestInput() [80]byte {
	var in [80]byte
	copy(in[0:32], t.Source[:])
	copy(in[32:64], t.Destination[:])
	binary.LittleEndian.PutUint64(in[64:72], t.Timestamp)
	binary.LittleEndian.PutUint64(in[72:80], t.Energy)
	in[0] ^= 1
	return in
}
