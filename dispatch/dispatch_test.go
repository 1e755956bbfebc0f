package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/model/rpc"
	"github.com/RyanW02/wineventchain/offchain"
	"github.com/RyanW02/wineventchain/state"
	"github.com/RyanW02/wineventchain/storage/kvstore"
)

type fakeChain struct {
	err     error
	eventId rpc.HexBytes
	txHash  rpc.HexBytes
	submits []events.ScrubbedEvent
}

func (f *fakeChain) Submit(_ context.Context, event events.ScrubbedEvent) (events.Metadata, rpc.HexBytes, error) {
	f.submits = append(f.submits, event)
	if f.err != nil {
		return events.Metadata{}, nil, f.err
	}
	return events.Metadata{EventId: f.eventId}, f.txHash, nil
}

type fakeChainRetry struct {
	pushed []events.EventWithData
}

func (f *fakeChainRetry) Push(event events.EventWithData) {
	f.pushed = append(f.pushed, event)
}

type fakeOffChain struct {
	err  error
	subs int
}

func (f *fakeOffChain) Submit(_ context.Context, _, _ rpc.HexBytes, _ events.EventData) error {
	f.subs++
	return f.err
}

type fakeOffChainRetry struct {
	pushed []offchain.QueuedEvent
}

func (f *fakeOffChainRetry) Push(event offchain.QueuedEvent) {
	f.pushed = append(f.pushed, event)
}

func newTestState(t *testing.T) *state.Store {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, kv.Close()) })
	return state.New(kv)
}

func sampleEvent(recordId uint64) events.EventWithData {
	return events.EventWithData{
		System: events.System{
			Channel:       "Security",
			EventRecordId: recordId,
			TimeCreated:   events.TimeCreated{SystemTime: time.Now()},
		},
		EventData: events.EventData{{Name: strPtr("Name"), Value: strPtr("Value")}},
	}
}

func strPtr(s string) *string { return &s }

func TestHandleSubmitsOnChainAndOffChainOnSuccess(t *testing.T) {
	chain := &fakeChain{eventId: rpc.HexBytes("abc"), txHash: rpc.HexBytes("hash")}
	chainRetry := &fakeChainRetry{}
	offChain := &fakeOffChain{}
	offChainRetry := &fakeOffChainRetry{}

	o := New(newTestState(t), chain, chainRetry, offChain, offChainRetry)

	require.NoError(t, o.Handle(context.Background(), sampleEvent(1)))

	require.Len(t, chain.submits, 1)
	require.Equal(t, 1, offChain.subs)
	require.Empty(t, chainRetry.pushed)
	require.Empty(t, offChainRetry.pushed)
}

func TestHandleSkipsAlreadySeenEvent(t *testing.T) {
	chain := &fakeChain{eventId: rpc.HexBytes("abc"), txHash: rpc.HexBytes("hash")}
	o := New(newTestState(t), chain, &fakeChainRetry{}, &fakeOffChain{}, &fakeOffChainRetry{})

	ctx := context.Background()
	event := sampleEvent(5)
	require.NoError(t, o.Handle(ctx, event))
	require.Len(t, chain.submits, 1)

	require.NoError(t, o.Handle(ctx, event))
	require.Len(t, chain.submits, 1, "duplicate event should not be resubmitted")
}

func TestHandleQueuesChainRetryOnFailureAndStillAdvancesWatermark(t *testing.T) {
	chain := &fakeChain{err: errors.New("node unreachable")}
	chainRetry := &fakeChainRetry{}
	offChain := &fakeOffChain{}
	st := newTestState(t)
	o := New(st, chain, chainRetry, offChain, &fakeOffChainRetry{})

	event := sampleEvent(10)
	require.NoError(t, o.Handle(context.Background(), event))

	require.Len(t, chainRetry.pushed, 1)
	require.Equal(t, event.System.EventRecordId, chainRetry.pushed[0].System.EventRecordId)
	require.Zero(t, offChain.subs, "off-chain submission should be skipped when on-chain submission fails")

	watermark, err := st.GetLatestRecord(event.System.Channel)
	require.NoError(t, err)
	require.NotNil(t, watermark)
	require.Equal(t, event.System.EventRecordId, watermark.EventRecordId)
}

func TestHandleQueuesOffChainRetryOnFailure(t *testing.T) {
	chain := &fakeChain{eventId: rpc.HexBytes("abc"), txHash: rpc.HexBytes("hash")}
	offChain := &fakeOffChain{err: errors.New("peer unreachable")}
	offChainRetry := &fakeOffChainRetry{}
	o := New(newTestState(t), chain, &fakeChainRetry{}, offChain, offChainRetry)

	require.NoError(t, o.Handle(context.Background(), sampleEvent(20)))

	require.Len(t, offChainRetry.pushed, 1)
	require.Equal(t, rpc.HexBytes("abc"), offChainRetry.pushed[0].EventId)
}
