// Package events defines the event-log data model exchanged between the
// collector, the blockchain submitter and the off-chain submitter: the raw
// event as read off a channel (EventWithData), its scrubbed on-chain form
// (ScrubbedEvent), and the metadata a blockchain node assigns once it has
// been recorded (Metadata).
package events

import (
	"crypto/sha256"
	"time"

	"github.com/RyanW02/wineventchain/model/rpc"
)

// EventData is the ordered list of named fields attached to an event log
// record. Either Name or Value may be absent on an individual entry.
type EventData []Data

// Data is a single name/value pair from an event's data section. Either
// field may be omitted by the source event.
type Data struct {
	Name  *string `json:"name,omitempty"`
	Value *string `json:"value,omitempty"`
}

// Hash derives the binding used to tie an off-chain record back to the
// scrubbed event recorded on-chain: sha256 over the concatenated bytes of
// every present Name then Value, in order, skipping absent fields silently
// and without any separator between fields.
func (d EventData) Hash() [32]byte {
	h := sha256.New()
	for _, entry := range d {
		if entry.Name != nil {
			h.Write([]byte(*entry.Name))
		}
		if entry.Value != nil {
			h.Write([]byte(*entry.Value))
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EventId is the numeric identifier of the event *type* (not a per-record
// identifier).
type EventId = uint64

// EventWithData is the full event as read from the source channel, prior
// to scrubbing.
type EventWithData struct {
	System    System    `json:"system"`
	EventData EventData `json:"event_data"`
}

// Event is the scrubbed, channel-agnostic envelope stored on-chain: the
// System section only, with EventData removed (it is represented solely by
// ScrubbedEvent.OffchainHash).
type Event struct {
	System System `json:"system"`
}

// ScrubbedEvent is what is actually submitted to the blockchain: the event
// envelope plus the hash binding it to its off-chain data.
type ScrubbedEvent struct {
	OffchainHash string `json:"offchain_hash"`
	Event        Event  `json:"event"`
}

// NewScrubbedEvent derives a ScrubbedEvent from a raw EventWithData.
func NewScrubbedEvent(e EventWithData) ScrubbedEvent {
	hash := e.EventData.Hash()
	return ScrubbedEvent{
		OffchainHash: rpc.HexBytes(hash[:]).String(),
		Event:        Event{System: e.System},
	}
}

// EventWithMetadata is a ScrubbedEvent enriched with the metadata assigned
// by the blockchain node that recorded it.
type EventWithMetadata struct {
	ScrubbedEvent
	Metadata Metadata `json:"metadata"`
}

// Metadata is assigned by the blockchain node once an event has been
// recorded: its on-chain identifier, when it was received, and the
// identity of the entity that submitted it.
type Metadata struct {
	EventId      rpc.HexBytes `json:"event_id"`
	ReceivedTime time.Time    `json:"received_time"`
	Principal    Principal    `json:"principal"`
}

// Principal identifies the entity on whose behalf an event was recorded.
// It mirrors the identity handle carried alongside signed blockchain
// payloads; this agent only ever reads it back off responses, it never
// constructs one directly (that is the signer's job, see blockchain.Signer
// and offchain.Signer).
type Principal struct {
	Id string `json:"id"`
}

// System carries the OS-event-log envelope fields common to every event,
// independent of the event's type-specific data fields.
type System struct {
	Provider      Provider    `json:"provider"`
	EventId       EventId     `json:"event_id"`
	TimeCreated   TimeCreated `json:"time_created"`
	EventRecordId uint64      `json:"event_record_id"`
	Correlation   Correlation `json:"correlation"`
	Execution     Execution   `json:"execution"`
	Channel       string      `json:"channel"`
	Computer      string      `json:"computer"`
}

// Provider identifies the source that generated an event.
type Provider struct {
	Name            *string `json:"name,omitempty"`
	Guid            *Guid   `json:"guid,omitempty"`
	EventSourceName *string `json:"event_source_name,omitempty"`
}

// TimeCreated carries the instant the event was generated, as given by the
// record's RFC 3339 SystemTime attribute.
type TimeCreated struct {
	SystemTime time.Time `json:"system_time"`
}

// Correlation carries an optional activity identifier used to correlate
// multiple related events.
type Correlation struct {
	ActivityId *Guid `json:"activity_id,omitempty"`
}

// Execution identifies the process and thread that generated an event.
type Execution struct {
	ProcessId *uint64 `json:"process_id,omitempty"`
	ThreadId  *uint64 `json:"thread_id,omitempty"`
}
