package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.Has("events", []byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put("events", []byte("a"), []byte("1")))

	ok, err = s.Has("events", []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)

	v, err := s.Get("events", []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, s.Delete("events", []byte("a")))

	v, err = s.Get("events", []byte("a"))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSubtreeIsolation(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("chain", []byte("x"), []byte("chain-value")))
	require.NoError(t, s.Put("offchain", []byte("x"), []byte("offchain-value")))

	v, err := s.Get("chain", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("chain-value"), v)

	v, err = s.Get("offchain", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("offchain-value"), v)
}

func TestIterIsOrderedByKey(t *testing.T) {
	s := newTestStore(t)

	for _, k := range []string{"0000000003", "0000000001", "0000000002"} {
		require.NoError(t, s.Put("q", []byte(k), []byte(k)))
	}

	entries, err := s.Iter("q")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "0000000001", string(entries[0].Key))
	require.Equal(t, "0000000002", string(entries[1].Key))
	require.Equal(t, "0000000003", string(entries[2].Key))
}

func TestNextIDIsMonotonic(t *testing.T) {
	s := newTestStore(t)

	prev, err := s.NextID("events")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		id, err := s.NextID("events")
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
}
