package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelDBStoreRoundTrip(t *testing.T) {
	store, err := OpenLevelDBStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	batch := NewBatch()
	batch.Put([]byte("counter"), encodeUint32(1))
	require.NoError(t, store.WriteBatch(batch))

	v, ok, err := store.Get([]byte("counter"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, encodeUint32(1), v)

	it := store.NewIterator()
	defer it.Release()
	require.True(t, it.Next())
	require.Equal(t, "counter", string(it.Key()))
	require.False(t, it.Next())
}
