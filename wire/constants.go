// Package wire implements the fixed-width little-endian binary records and
// frames described in spec.md §3 and §4.1.
package wire

const (
	// ProtocolVersion is the wire protocol version carried in every frame.
	ProtocolVersion uint16 = 256

	// NumberOfComputors is the committee size (26 x 26).
	NumberOfComputors = 676
	// NumberOfConnections is the number of peer sockets the quorum engine
	// maintains concurrently.
	NumberOfConnections = 3
	// StatusQuorumThreshold is the number of concurring computors required
	// to declare a transfer's status (> 2/3 of 675, since a computor does
	// not report on itself).
	StatusQuorumThreshold = 451

	// FrameHeaderSize is the size of the common frame header: size(u32) +
	// protocol version(u16) + request kind(u16).
	FrameHeaderSize = 4 + 2 + 2

	// Request kinds.
	RequestKindSubTyped       uint16 = 0
	RequestKindExchangePeers  uint16 = 1
	RequestKindBroadcastTransfer uint16 = 3

	// Sub-kinds carried by RequestKindSubTyped.
	SubKindGetComputerState uint16 = 1
	SubKindGetTransferStatus uint16 = 3

	// TransferRecordSize is the packed size of a transfer record.
	TransferRecordSize = 144
	// ComputerStateRecordSize is the packed size of a computer-state
	// record: 2+2+4+8 + 676*32 + 64.
	ComputerStateRecordSize = 2 + 2 + 4 + 8 + NumberOfComputors*32 + 64
	// StatusBitfieldSize is the packed size of the 2-bit-per-computor vote
	// bitfield (676 votes need ceil(676*2/8) = 169 bytes; the spec's
	// field table reserves 170, one byte of trailing padding).
	StatusBitfieldSize = 170
	// TransferStatusRecordSize is the packed size of a single per-computor
	// transfer-status slab: 32 + 170 + 2 + 2 + 4 + 64 (spec.md §3's field
	// table; see DESIGN.md for the reconciliation with §4.4's prose).
	TransferStatusRecordSize = 32 + StatusBitfieldSize + 2 + 2 + 4 + 64
	// TransferStatusSignedRegionSize is the signed region of a
	// transfer-status slab: transferHash..tick.
	TransferStatusSignedRegionSize = 32 + StatusBitfieldSize + 2 + 2 + 4

	// MinEnergyAmount is the minimum energy value accepted by transfer().
	MinEnergyAmount uint64 = 1_000_000
)

// VoteStatus is a decoded two-bit vote from a transfer-status bitfield.
type VoteStatus byte

const (
	VoteUnseen    VoteStatus = 0
	VoteSeen      VoteStatus = 1
	VoteProcessed VoteStatus = 2
	VoteReserved  VoteStatus = 3
)

func (v VoteStatus) String() string {
	switch v {
	case VoteUnseen:
		return "unseen"
	case VoteSeen:
		return "seen"
	case VoteProcessed:
		return "processed"
	default:
		return "reserved"
	}
}
