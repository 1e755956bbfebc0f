package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/model/events"
)

const sampleEvent = `
<Event>
    <System>
        <Provider />
        <EventID>1</EventID>
        <TimeCreated SystemTime="2024-02-20T00:59:00Z" />
        <EventRecordID>1</EventRecordID>
        <Correlation />
        <Execution />
        <Channel>Security</Channel>
        <Computer>laptop</Computer>
    </System>
    <EventData></EventData>
</Event>
`

func TestCollectorDispatchesDecodedEvents(t *testing.T) {
	source := NewReplaySource(Security, [][]byte{[]byte(sampleEvent), []byte(sampleEvent)})

	var mu sync.Mutex
	var handled []events.EventWithData
	handler := func(_ context.Context, e events.EventWithData) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, e)
		return nil
	}

	c := New(source, handler)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestCollectorReportsDecodeErrorsWithoutStopping(t *testing.T) {
	source := NewReplaySource(Security, [][]byte{[]byte("<not-xml"), []byte(sampleEvent)})

	handled := make(chan events.EventWithData, 1)
	handler := func(_ context.Context, e events.EventWithData) error {
		handled <- e
		return nil
	}

	c := New(source, handler)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go c.Run(ctx)

	select {
	case e := <-handled:
		require.Equal(t, uint64(1), e.System.EventRecordId)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
