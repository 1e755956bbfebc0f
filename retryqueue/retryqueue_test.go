package retryqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/storage/kvstore"
	"github.com/RyanW02/wineventchain/xerrors"
)

func newTestStore(t *testing.T) *kvstore.Store {
	t.Helper()
	s, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestRetrySucceedsAndCallsSuccessCallback(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	var succeeded []string

	q := New[string, string](store, Options{
		QueueName:     "test",
		MaxQueueSize:  100,
		Backoff:       []time.Duration{0, 5 * time.Second},
		CheckInterval: 10 * time.Millisecond,
	},
		func(_ context.Context, item string) (string, error) {
			if item == "fail" {
				return "", errors.New("fail")
			}
			return item, nil
		},
		func(_ context.Context, res string) {
			mu.Lock()
			defer mu.Unlock()
			succeeded = append(succeeded, res)
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))

	_, err := q.Push("success")
	require.NoError(t, err)
	_, err = q.Push("fail")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(succeeded) == 1
	}, time.Second, 5*time.Millisecond)

	remaining, err := q.Len()
	require.NoError(t, err)
	require.Equal(t, 1, remaining)
}

func TestExhaustsAttempts(t *testing.T) {
	store := newTestStore(t)

	q := New[string, struct{}](store, Options{
		QueueName:     "exhaust",
		MaxQueueSize:  100,
		Backoff:       []time.Duration{10 * time.Millisecond},
		CheckInterval: 10 * time.Millisecond,
	},
		func(_ context.Context, _ string) (struct{}, error) {
			return struct{}{}, errors.New("always fails")
		},
		func(_ context.Context, _ struct{}) {},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))

	_, err := q.Push("fail")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := q.Len()
		require.NoError(t, err)
		return n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestScanSkipsMalformedEntryAndContinuesOthers(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	var succeeded []string

	q := New[string, string](store, Options{
		QueueName:     "corrupt",
		MaxQueueSize:  100,
		Backoff:       []time.Duration{0},
		CheckInterval: 10 * time.Millisecond,
	},
		func(_ context.Context, item string) (string, error) { return item, nil },
		func(_ context.Context, res string) {
			mu.Lock()
			defer mu.Unlock()
			succeeded = append(succeeded, res)
		},
	)

	_, err := q.Push("good")
	require.NoError(t, err)

	// Corrupt a sibling entry directly, bypassing Push's marshaling, to
	// simulate a malformed envelope Iter cannot decode. A single bad entry
	// must not stall the rest of the scan.
	badId, err := store.NextID("corrupt")
	require.NoError(t, err)
	require.NoError(t, store.Put("corrupt", []byte(fmt.Sprintf("%0*b", 64, badId)), []byte("not json")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(succeeded) == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"good"}, succeeded)
}

func TestStartTwiceErrors(t *testing.T) {
	store := newTestStore(t)

	q := New[string, struct{}](store, Options{
		QueueName:     "twice",
		Backoff:       []time.Duration{time.Second},
		CheckInterval: time.Second,
	},
		func(_ context.Context, _ string) (struct{}, error) { return struct{}{}, nil },
		func(_ context.Context, _ struct{}) {},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Start(ctx))
	require.ErrorIs(t, q.Start(ctx), xerrors.ErrRetryQueueAlreadyStarted)
}
