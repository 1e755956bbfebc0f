package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/storage/kvstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, kv.Close()) })
	return New(kv)
}

func makeEvent(channel string, recordId uint64, ts time.Time) events.Event {
	return events.Event{System: events.System{
		Channel:       channel,
		EventRecordId: recordId,
		TimeCreated:   events.TimeCreated{SystemTime: ts},
	}}
}

func TestIsNewWithNoWatermark(t *testing.T) {
	s := newTestStore(t)
	isNew, err := s.IsNew(makeEvent("Security", 1, time.Now()))
	require.NoError(t, err)
	require.True(t, isNew)
}

func TestIsNewAdvancesOnEitherField(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.StoreLatestRecord(makeEvent("Security", 10, base)))

	isNew, err := s.IsNew(makeEvent("Security", 11, base))
	require.NoError(t, err)
	require.True(t, isNew, "higher record id should count as new even with same timestamp")

	isNew, err = s.IsNew(makeEvent("Security", 10, base.Add(time.Second)))
	require.NoError(t, err)
	require.True(t, isNew, "later timestamp should count as new even with same record id")

	isNew, err = s.IsNew(makeEvent("Security", 10, base))
	require.NoError(t, err)
	require.False(t, isNew)

	isNew, err = s.IsNew(makeEvent("Security", 9, base.Add(-time.Second)))
	require.NoError(t, err)
	require.False(t, isNew)
}

func TestWatermarksAreIsolatedPerChannel(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()

	require.NoError(t, s.StoreLatestRecord(makeEvent("Security", 100, base)))

	isNew, err := s.IsNew(makeEvent("System", 1, base.Add(-time.Hour)))
	require.NoError(t, err)
	require.True(t, isNew)
}
