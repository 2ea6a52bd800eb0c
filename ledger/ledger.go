package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xcrypto"
	"github.com/energyledger/client/xlog"
	"go.uber.org/zap"
)

var (
	keyCounter   = []byte("counter")
	keyEnergy    = []byte("energy")
	keySignature = []byte("signature")
)

// numericKey encodes integer store key k with a 0x00 prefix so it sorts
// before the ASCII "counter"/"energy"/"signature" keys during iteration.
func numericKey(k uint32) []byte {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf[1:], k)
	return buf
}

func isNumericKey(key []byte) (uint32, bool) {
	if len(key) != 5 || key[0] != 0x00 {
		return 0, false
	}
	return binary.BigEndian.Uint32(key[1:]), true
}

// PendingTransfer is an unprocessed (tag-0) transfer still awaiting a
// processed-quorum receipt.
type PendingTransfer struct {
	Hash       [32]byte
	Record     wire.TransferRecord
	NumericKey uint32
}

// Ledger is the per-identity encrypted local ledger (spec §4.6).
type Ledger struct {
	store    Store
	cipher   *StreamCipher
	hasher   xcrypto.Hasher
	signer   xcrypto.Signer
	verifier xcrypto.Verifier
	log      xlog.Logger

	identityPublicKey [32]byte

	counter   uint32
	energy    uint64
	signature [64]byte
	hashes    map[[32]byte]uint32
	pending   map[[32]byte]PendingTransfer
}

// New constructs a Ledger over store, keyed by seedBytes.
func New(store Store, hasher xcrypto.Hasher, signer xcrypto.Signer, verifier xcrypto.Verifier, seedBytes []byte, log xlog.Logger) *Ledger {
	return &Ledger{
		store:             store,
		cipher:            NewStreamCipher(hasher, seedBytes),
		hasher:            hasher,
		signer:            signer,
		verifier:          verifier,
		log:               log,
		identityPublicKey: signer.PublicKey(),
		hashes:            make(map[[32]byte]uint32),
		pending:           make(map[[32]byte]PendingTransfer),
	}
}

// Energy returns the current in-memory energy balance.
func (l *Ledger) Energy() uint64 { return l.energy }

// Counter returns the current in-memory numeric-key counter.
func (l *Ledger) Counter() uint32 { return l.counter }

// HasHash reports whether hash is already recorded (in either state).
func (l *Ledger) HasHash(hash [32]byte) bool {
	_, ok := l.hashes[hash]
	return ok
}

// PendingTransfers returns every unprocessed transfer, for scheduling
// status polls and stale re-broadcast at launch.
func (l *Ledger) PendingTransfers() []PendingTransfer {
	out := make([]PendingTransfer, 0, len(l.pending))
	for _, p := range l.pending {
		out = append(out, p)
	}
	return out
}

// Replay reads the entire store, verifying every embedded signature,
// and only commits the resulting in-memory state if the final essence
// signature (over {counter, energy, sorted-hashes}) also verifies
// (spec §4.6 "Replay"). On failure the Ledger's in-memory state remains
// zeroed.
func (l *Ledger) Replay(adminPublicKey [32]byte) error {
	var scratchCounter uint32
	var scratchEnergy uint64
	var scratchSignature [64]byte
	scratchHashes := make(map[[32]byte]uint32)
	scratchPending := make(map[[32]byte]PendingTransfer)

	if v, ok, err := l.store.Get(keyCounter); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	} else if ok && len(v) == 4 {
		scratchCounter = binary.LittleEndian.Uint32(v)
	}
	if v, ok, err := l.store.Get(keyEnergy); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	} else if ok && len(v) == 8 {
		scratchEnergy = binary.LittleEndian.Uint64(v)
	}
	if v, ok, err := l.store.Get(keySignature); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	} else if ok && len(v) == 64 {
		copy(scratchSignature[:], v)
	}

	it := l.store.NewIterator()
	defer it.Release()
	for it.Next() {
		numKey, ok := isNumericKey(it.Key())
		if !ok {
			continue
		}
		plaintext, err := l.cipher.XOR(numKey, it.Value())
		if err != nil {
			l.log.Warn("ledger: decrypt failed during replay", zap.Uint32("key", numKey), zap.Error(err))
			continue
		}
		record, err := DecodeStoredRecord(plaintext)
		if err != nil {
			l.log.Warn("ledger: corrupt stored record during replay", zap.Uint32("key", numKey), zap.Error(err))
			continue
		}

		switch record.Tag {
		case TagUnprocessed:
			if !l.verifyTransferSignature(record.Transfer, l.identityPublicKey) {
				l.log.Warn("ledger: tag-0 record failed self-signature check", zap.Uint32("key", numKey))
				continue
			}
			hash := l.transferHash(record.Transfer)
			scratchHashes[hash] = numKey
			scratchPending[hash] = PendingTransfer{Hash: hash, Record: record.Transfer, NumericKey: numKey}
		case TagProcessed:
			hash := l.transferHash(record.Transfer)
			if !l.verifyProcessedRecord(record, adminPublicKey) {
				l.log.Warn("ledger: tag-1 record failed receipt verification", zap.Uint32("key", numKey))
				continue
			}
			scratchHashes[hash] = numKey
		default:
			l.log.Warn("ledger: unknown record tag during replay", zap.Uint32("key", numKey), zap.Uint8("tag", record.Tag))
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	essence := ComputeEssence(scratchCounter, scratchEnergy, hashKeys(scratchHashes))
	if !VerifyEssence(l.hasher, l.verifier, l.identityPublicKey, essence, scratchSignature) {
		return ErrSignatureVerificationFailed
	}

	l.counter = scratchCounter
	l.energy = scratchEnergy
	l.signature = scratchSignature
	l.hashes = scratchHashes
	l.pending = scratchPending
	return nil
}

func hashKeys(m map[[32]byte]uint32) [][32]byte {
	out := make([][32]byte, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	return out
}

func (l *Ledger) verifyTransferSignature(t wire.TransferRecord, publicKey [32]byte) bool {
	digest := t.SigningDigestInput()
	var h [32]byte
	copy(h[:], l.hasher.Hash(digest[:], 32))
	return l.verifier.Verify(publicKey, h, t.Signature)
}

func (l *Ledger) transferHash(t wire.TransferRecord) [32]byte {
	encoded := t.Encode()
	var h [32]byte
	copy(h[:], l.hasher.Hash(encoded[:], 32))
	return h
}

// verifyProcessedRecord checks a tag-1 record's embedded transfer
// signature (against its own source key), the embedded computer-state
// snapshot's admin signature, and every appended status slab's
// signature against that snapshot's computor keys.
func (l *Ledger) verifyProcessedRecord(record StoredRecord, adminPublicKey [32]byte) bool {
	if !l.verifyTransferSignature(record.Transfer, record.Transfer.Source) {
		return false
	}
	if len(record.Receipt) < wire.ComputerStateRecordSize {
		return false
	}
	snapshot, err := wire.DecodeComputerStateRecord(record.Receipt[:wire.ComputerStateRecordSize])
	if err != nil {
		return false
	}
	var snapDigest [32]byte
	copy(snapDigest[:], l.hasher.Hash(snapshot.SignedRegion(), 32))
	if !l.verifier.Verify(adminPublicKey, snapDigest, snapshot.AdminSignature) {
		return false
	}

	rest := record.Receipt[wire.ComputerStateRecordSize:]
	if len(rest)%wire.TransferStatusRecordSize != 0 {
		return false
	}
	for offset := 0; offset < len(rest); offset += wire.TransferStatusRecordSize {
		slab, err := wire.DecodeTransferStatusRecord(rest[offset : offset+wire.TransferStatusRecordSize])
		if err != nil {
			return false
		}
		if int(slab.ComputorIndex) >= wire.NumberOfComputors {
			return false
		}
		var digest [32]byte
		copy(digest[:], l.hasher.Hash(slab.SignedRegionXORed(), 32))
		if !l.verifier.Verify(snapshot.ComputorPublicKeys[slab.ComputorIndex], digest, slab.Signature) {
			return false
		}
	}
	return true
}

// PersistProvisional writes a freshly built, unprocessed transfer (spec
// §4.5 "Persist"): bumps the counter, recomputes the essence signature,
// and atomically writes {counter, signature, counter->encrypt(tag 0 ||
// record)}.
func (l *Ledger) PersistProvisional(record wire.TransferRecord, hash [32]byte) error {
	newKey := l.counter + 1
	stored := StoredRecord{Tag: TagUnprocessed, Transfer: record}
	ciphertext, err := l.cipher.XOR(newKey, stored.Encode())
	if err != nil {
		return err
	}

	newHashes := cloneHashes(l.hashes)
	newHashes[hash] = newKey

	essence := ComputeEssence(newKey, l.energy, hashKeys(newHashes))
	sig, err := SignEssence(l.hasher, l.signer, essence)
	if err != nil {
		return err
	}

	batch := NewBatch()
	batch.Put(keyCounter, encodeUint32(newKey))
	batch.Put(keySignature, sig[:])
	batch.Put(numericKey(newKey), ciphertext)
	if err := l.store.WriteBatch(batch); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	l.counter = newKey
	l.signature = sig
	l.hashes = newHashes
	l.pending[hash] = PendingTransfer{Hash: hash, Record: record, NumericKey: newKey}
	return nil
}

// PersistProcessed rewrites hash's record with its processed-quorum
// receipt (spec §4.5 "Confirm"): a new numeric key holding tag 1 ||
// record || receipt, the old numeric key deleted, energy updated to
// newEnergy, all in one atomic batch.
func (l *Ledger) PersistProcessed(hash [32]byte, receipt []byte, newEnergy uint64) error {
	oldKey, ok := l.hashes[hash]
	if !ok {
		return fmt.Errorf("%w: unknown transfer hash", ErrCorruptRecord)
	}
	ciphertext, found, err := l.store.Get(numericKey(oldKey))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if !found {
		return fmt.Errorf("%w: missing stored record for pending hash", ErrCorruptRecord)
	}
	plaintext, err := l.cipher.XOR(oldKey, ciphertext)
	if err != nil {
		return err
	}
	old, err := DecodeStoredRecord(plaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	newKey := l.counter + 1
	stored := StoredRecord{Tag: TagProcessed, Transfer: old.Transfer, Receipt: receipt}
	newCiphertext, err := l.cipher.XOR(newKey, stored.Encode())
	if err != nil {
		return err
	}

	newHashes := cloneHashes(l.hashes)
	newHashes[hash] = newKey

	essence := ComputeEssence(newKey, newEnergy, hashKeys(newHashes))
	sig, err := SignEssence(l.hasher, l.signer, essence)
	if err != nil {
		return err
	}

	batch := NewBatch()
	batch.Put(keyCounter, encodeUint32(newKey))
	batch.Put(keyEnergy, encodeUint64(newEnergy))
	batch.Put(keySignature, sig[:])
	batch.Put(numericKey(newKey), newCiphertext)
	batch.Delete(numericKey(oldKey))
	if err := l.store.WriteBatch(batch); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	l.counter = newKey
	l.energy = newEnergy
	l.signature = sig
	l.hashes = newHashes
	delete(l.pending, hash)
	return nil
}

func cloneHashes(m map[[32]byte]uint32) map[[32]byte]uint32 {
	out := make(map[[32]byte]uint32, len(m)+1)
	for h, k := range m {
		out[h] = k
	}
	return out
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}
