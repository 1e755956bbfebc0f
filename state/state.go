// Package state tracks, per channel, the last event-log record this agent
// has accepted (submitted, or queued for retry after a failed submission),
// so the dispatcher can skip records IsNew does not report as new.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/storage/kvstore"
)

const subtree = "state"

// LatestRecord is the watermark recorded for a single channel.
type LatestRecord struct {
	EventRecordId uint64    `json:"event_record_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Store persists per-channel watermarks.
type Store struct {
	kv *kvstore.Store
}

// New returns a Store backed by kv.
func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

func latestRecordKey(channel string) []byte {
	return []byte("latest_record_" + channel)
}

// GetLatestRecord returns the watermark recorded for channel, or nil if
// none has been recorded yet.
func (s *Store) GetLatestRecord(channel string) (*LatestRecord, error) {
	raw, err := s.kv.Get(subtree, latestRecordKey(channel))
	if err != nil {
		return nil, fmt.Errorf("state: reading watermark for %s: %w", channel, err)
	}
	if raw == nil {
		return nil, nil
	}

	var record LatestRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("state: decoding watermark for %s: %w", channel, err)
	}
	return &record, nil
}

// StoreLatestRecord records event as the new watermark for its channel,
// unconditionally overwriting whatever was previously stored.
func (s *Store) StoreLatestRecord(event events.Event) error {
	record := LatestRecord{
		EventRecordId: event.System.EventRecordId,
		Timestamp:     event.System.TimeCreated.SystemTime,
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("state: encoding watermark: %w", err)
	}

	if err := s.kv.Put(subtree, latestRecordKey(event.System.Channel), encoded); err != nil {
		return fmt.Errorf("state: writing watermark for %s: %w", event.System.Channel, err)
	}
	return nil
}

// IsNew reports whether event is new relative to the stored watermark for
// its channel: true if either the event's record id or its timestamp
// exceeds the watermark (a disjunction, not a conjunction — an event that
// advances either field is treated as new, since a source can reuse
// timestamps across record ids or vice versa).
func (s *Store) IsNew(event events.Event) (bool, error) {
	record, err := s.GetLatestRecord(event.System.Channel)
	if err != nil {
		return false, err
	}
	if record == nil {
		return true, nil
	}

	return event.System.EventRecordId > record.EventRecordId ||
		event.System.TimeCreated.SystemTime.After(record.Timestamp), nil
}
