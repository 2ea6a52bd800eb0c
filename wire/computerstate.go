package wire

import (
	"encoding/binary"
	"fmt"
)

// computerStateFixedHeaderSize is computorIndex(u16)+epoch(u16)+tick(u32)+timestamp(u64).
const computerStateFixedHeaderSize = 2 + 2 + 4 + 8

// ComputerStateRecord is the admin-signed committee snapshot of spec §3:
// {computorIndex, epoch, tick, timestamp, 676 computor public keys, admin
// signature}.
type ComputerStateRecord struct {
	ComputorIndex     uint16
	Epoch             uint16
	Tick              uint32
	Timestamp         uint64
	ComputorPublicKeys [NumberOfComputors][32]byte
	AdminSignature    [64]byte
}

// DecodeComputerStateRecord unpacks a ComputerStateRecordSize-byte record.
func DecodeComputerStateRecord(buf []byte) (ComputerStateRecord, error) {
	var r ComputerStateRecord
	if len(buf) != ComputerStateRecordSize {
		return r, fmt.Errorf("wire: computer-state record must be %d bytes, got %d", ComputerStateRecordSize, len(buf))
	}
	r.ComputorIndex = binary.LittleEndian.Uint16(buf[0:2])
	r.Epoch = binary.LittleEndian.Uint16(buf[2:4])
	r.Tick = binary.LittleEndian.Uint32(buf[4:8])
	r.Timestamp = binary.LittleEndian.Uint64(buf[8:16])
	offset := computerStateFixedHeaderSize
	for i := 0; i < NumberOfComputors; i++ {
		copy(r.ComputorPublicKeys[i][:], buf[offset:offset+32])
		offset += 32
	}
	copy(r.AdminSignature[:], buf[offset:offset+64])
	return r, nil
}

// Encode packs the record into its wire form.
func (r ComputerStateRecord) Encode() []byte {
	buf := make([]byte, ComputerStateRecordSize)
	binary.LittleEndian.PutUint16(buf[0:2], r.ComputorIndex)
	binary.LittleEndian.PutUint16(buf[2:4], r.Epoch)
	binary.LittleEndian.PutUint32(buf[4:8], r.Tick)
	binary.LittleEndian.PutUint64(buf[8:16], r.Timestamp)
	offset := computerStateFixedHeaderSize
	for i := 0; i < NumberOfComputors; i++ {
		copy(buf[offset:offset+32], r.ComputorPublicKeys[i][:])
		offset += 32
	}
	copy(buf[offset:offset+64], r.AdminSignature[:])
	return buf
}

// SignedRegion returns the bytes covered by the admin signature:
// [computorIndex .. computorPublicKeys_end].
func (r ComputerStateRecord) SignedRegion() []byte {
	full := r.Encode()
	return full[:len(full)-64]
}
