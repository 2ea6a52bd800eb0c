package ledger

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
)

// LevelDBStore is the default Store, backed by goleveldb.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDBStore opens (creating if absent) the database at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open leveldb at %q: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *LevelDBStore) NewIterator() Iterator {
	return &levelDBIterator{it: s.db.NewIterator(nil, nil)}
}

func (s *LevelDBStore) WriteBatch(b *Batch) error {
	lb := new(leveldb.Batch)
	for _, op := range b.Ops() {
		if op.Delete {
			lb.Delete(op.Key)
		} else {
			lb.Put(op.Key, op.Value)
		}
	}
	if err := s.db.Write(lb, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

type levelDBIterator struct {
	it iterator.Iterator
}

func (i *levelDBIterator) Next() bool     { return i.it.Next() }
func (i *levelDBIterator) Key() []byte    { return i.it.Key() }
func (i *levelDBIterator) Value() []byte  { return i.it.Value() }
func (i *levelDBIterator) Release()       { i.it.Release() }
func (i *levelDBIterator) Error() error   { return i.it.Error() }
