package verifyingclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/xerrors"
)

type testClient struct {
	id      int
	mu      *sync.Mutex
	isAlive *bool
}

func newTestClient(id int, alive bool) testClient {
	a := alive
	return testClient{id: id, mu: &sync.Mutex{}, isAlive: &a}
}

type mockTester struct{}

func (mockTester) Test(_ context.Context, c testClient) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.isAlive
}

func fastBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 200 * time.Millisecond
	b.Multiplier = 1
	return b
}

func TestGetOne(t *testing.T) {
	clients := []testClient{newTestClient(0, true)}
	vc := New[testClient](clients, mockTester{}, DefaultOptions())

	got, ok := vc.Get(context.Background(), nil)
	require.True(t, ok)
	require.Equal(t, clients[0].id, got.Client.id)
}

func TestGetNDistinct(t *testing.T) {
	clients := []testClient{newTestClient(0, true), newTestClient(1, true), newTestClient(2, true)}
	vc := New[testClient](clients, mockTester{}, DefaultOptions())

	got := vc.GetN(context.Background(), 3, nil)
	require.Len(t, got, 3)

	seen := map[uint64]bool{}
	for _, c := range got {
		require.False(t, seen[c.Id])
		seen[c.Id] = true
	}
}

func TestGetNCapsAtAvailable(t *testing.T) {
	clients := []testClient{newTestClient(0, true), newTestClient(1, true)}
	vc := New[testClient](clients, mockTester{}, DefaultOptions())

	got := vc.GetN(context.Background(), 3, nil)
	require.Len(t, got, 2)
}

func TestRunSuccess(t *testing.T) {
	clients := []testClient{newTestClient(0, true), newTestClient(1, true)}
	vc := New[testClient](clients, mockTester{}, DefaultOptions())

	res, err := Run[testClient, bool](context.Background(), vc, fastBackOff,
		func(_ context.Context, _ testClient) (bool, error) { return true, nil },
		func(_ context.Context, _ testClient, _ bool) (bool, error) { return true, nil },
	)
	require.NoError(t, err)
	require.True(t, res)
}

func TestRunFailureStrategyError(t *testing.T) {
	clients := []testClient{newTestClient(0, true), newTestClient(1, true)}
	vc := New[testClient](clients, mockTester{}, DefaultOptions())

	_, err := Run[testClient, bool](context.Background(), vc, fastBackOff,
		func(_ context.Context, _ testClient) (bool, error) { return true, nil },
		func(_ context.Context, _ testClient, _ bool) (bool, error) { return false, nil },
	)
	require.ErrorIs(t, err, xerrors.ErrVerificationFailed)
}

func TestRunAcceptsPartialSuccess(t *testing.T) {
	clients := []testClient{newTestClient(0, true), newTestClient(1, true), newTestClient(2, true)}
	opts := DefaultOptions()
	opts.VerificationClientCount = 2
	opts.FailureStrategy = FailureStrategy{Kind: FailureStrategyAcceptWithNSuccess, N: 1}

	vc := New[testClient](clients, mockTester{}, opts)

	callCount := 0
	var mu sync.Mutex
	res, err := Run[testClient, bool](context.Background(), vc, fastBackOff,
		func(_ context.Context, _ testClient) (bool, error) { return true, nil },
		func(_ context.Context, _ testClient, _ bool) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			callCount++
			return callCount == 1, nil
		},
	)
	require.NoError(t, err)
	require.True(t, res)
}
