package ledger

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/energyledger/client/xcrypto"
)

// ComputeEssence builds counter || energy || sorted-hashes (spec §3
// "Essence").
func ComputeEssence(counter uint32, energy uint64, hashes [][32]byte) []byte {
	sorted := append([][32]byte{}, hashes...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })

	buf := make([]byte, 0, 4+8+32*len(sorted))
	var head [12]byte
	binary.LittleEndian.PutUint32(head[0:4], counter)
	binary.LittleEndian.PutUint64(head[4:12], energy)
	buf = append(buf, head[:]...)
	for _, h := range sorted {
		buf = append(buf, h[:]...)
	}
	return buf
}

// SignEssence signs H(essence, 32) with signer.
func SignEssence(h xcrypto.Hasher, signer xcrypto.Signer, essence []byte) ([64]byte, error) {
	var digest [32]byte
	copy(digest[:], h.Hash(essence, 32))
	return signer.Sign(digest)
}

// VerifyEssence checks essence's signature against publicKey.
func VerifyEssence(h xcrypto.Hasher, verifier xcrypto.Verifier, publicKey [32]byte, essence []byte, signature [64]byte) bool {
	var digest [32]byte
	copy(digest[:], h.Hash(essence, 32))
	return verifier.Verify(publicKey, digest, signature)
}
