// Package ledger implements the encrypted, append-structured local
// ledger of spec.md §4.6: a per-identity record store over an ordered
// key-value store, with per-record stream-cipher-at-rest and an
// essence signature sealing the whole state.
package ledger

// Store is the ordered key-value store with atomic multi-key batch
// writes the local ledger requires. LevelDBStore is the default
// implementation; a test double only needs to satisfy this interface.
type Store interface {
	Get(key []byte) ([]byte, bool, error)
	NewIterator() Iterator
	WriteBatch(batch *Batch) error
	Close() error
}

// Iterator walks a Store's keys in ascending lexicographic order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Batch accumulates puts and deletes to be applied atomically by
// Store.WriteBatch. Order of operations is preserved so a delete and a
// put touching the same key behave as the caller intended.
type Batch struct {
	ops []BatchOp
}

// BatchOp is a single staged operation within a Batch.
type BatchOp struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages a key/value write.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, BatchOp{Key: append([]byte{}, key...), Value: append([]byte{}, value...)})
}

// Delete stages a key removal.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, BatchOp{Key: append([]byte{}, key...), Delete: true})
}

// Ops exposes the staged operations in order, for Store implementations.
func (b *Batch) Ops() []BatchOp {
	return b.ops
}
