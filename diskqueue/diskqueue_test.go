package diskqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/storage/kvstore"
)

func newTestQueue(t *testing.T, maxSize int) *DiskQueue[string] {
	t.Helper()
	store, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return New[string](store, "q", maxSize)
}

func TestPushGetFIFOOrder(t *testing.T) {
	q := newTestQueue(t, 0)

	id1, err := q.Push("first")
	require.NoError(t, err)
	id2, err := q.Push("second")
	require.NoError(t, err)
	require.Less(t, id1, id2)

	results, err := q.Iter()
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.Equal(t, "first", results[0].Item.Item)
	require.Equal(t, "second", results[1].Item.Item)
}

func TestUpdateAndRemove(t *testing.T) {
	q := newTestQueue(t, 0)

	id, err := q.Push("original")
	require.NoError(t, err)

	require.NoError(t, q.Update(id, "updated"))
	item, ok, err := q.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "updated", item)

	require.NoError(t, q.Remove(id))
	_, ok, err = q.Get(id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	q := newTestQueue(t, 2)

	_, err := q.Push("a")
	require.NoError(t, err)
	_, err = q.Push("b")
	require.NoError(t, err)
	_, err = q.Push("c")
	require.NoError(t, err)

	results, err := q.Iter()
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "b", results[0].Item.Item)
	require.Equal(t, "c", results[1].Item.Item)
}

func TestIterIsolatesMalformedEntry(t *testing.T) {
	q := newTestQueue(t, 0)

	id1, err := q.Push("first")
	require.NoError(t, err)
	id2, err := q.Push("second")
	require.NoError(t, err)
	id3, err := q.Push("third")
	require.NoError(t, err)

	// Corrupt the middle entry directly, bypassing Update's marshaling, to
	// simulate a malformed envelope without a way to legitimately produce one.
	require.NoError(t, q.store.Put(q.subtree, encodeKey(id2), []byte("not json")))

	results, err := q.Iter()
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.Equal(t, id1, results[0].Item.Id)
	require.Equal(t, "first", results[0].Item.Item)

	require.Error(t, results[1].Err)

	require.NoError(t, results[2].Err)
	require.Equal(t, id3, results[2].Item.Id)
	require.Equal(t, "third", results[2].Item.Item)
}

func TestKeyEncodingPreservesNumericOrder(t *testing.T) {
	k1 := encodeKey(1)
	k2 := encodeKey(2)
	k9 := encodeKey(9)
	k10 := encodeKey(10)

	require.Len(t, k1, keyWidth)
	require.True(t, string(k1) < string(k2))
	require.True(t, string(k9) < string(k10))

	decoded, err := decodeKey(k10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), decoded)
}
