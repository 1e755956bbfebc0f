package collector

import (
	"context"

	"github.com/RyanW02/wineventchain/model/events"
)

// Source delivers decoded events from a single channel. Its production
// implementation subscribes via the Win32 event log API (EvtSubscribe) and
// renders each notified record through ParseEventXML before handing it to
// Events; that OS binding is outside the scope of this package, which only
// owns the data contract (Channel naming and XML decoding) a Source must
// honor.
type Source interface {
	// Channel is the channel this source was opened against.
	Channel() Channel

	// Events returns the channel events are delivered on. It is closed once
	// the source's context is canceled or Close is called.
	Events() <-chan events.EventWithData

	// Errs returns the channel decode/subscription errors are delivered on,
	// e.g. a record that failed to parse. Errs does not carry fatal errors;
	// the source keeps running after reporting one.
	Errs() <-chan error

	// Close releases any OS resources held by the source.
	Close() error
}

// StartFromOldestRecord controls whether a Source backfills every record
// currently in the channel's log on startup, or only delivers records
// produced after it begins watching.
type StartFromOldestRecord bool

const (
	FromOldestRecord     StartFromOldestRecord = true
	FromFutureEventsOnly StartFromOldestRecord = false
)

// OpenFunc opens a Source for channel. NewReplaySource provides an
// in-memory Source that replays canned XML without touching the OS event
// log.
type OpenFunc func(ctx context.Context, channel Channel, start StartFromOldestRecord) (Source, error)

// replaySource is a Source backed by a fixed, in-memory list of raw XML
// records, used to exercise the collector's decode and dispatch path
// without a real event log subscription.
type replaySource struct {
	channel Channel
	events  chan events.EventWithData
	errs    chan error
	done    chan struct{}
}

// NewReplaySource returns a Source that decodes each of raw in order and
// delivers them on Events, then idles until Close is called. Malformed
// records are reported on Errs rather than stopping the source.
func NewReplaySource(channel Channel, raw [][]byte) Source {
	s := &replaySource{
		channel: channel,
		events:  make(chan events.EventWithData, len(raw)),
		errs:    make(chan error, len(raw)),
		done:    make(chan struct{}),
	}

	for _, r := range raw {
		event, err := ParseEventXML(r)
		if err != nil {
			s.errs <- err
			continue
		}
		s.events <- event
	}

	return s
}

func (s *replaySource) Channel() Channel                    { return s.channel }
func (s *replaySource) Events() <-chan events.EventWithData { return s.events }
func (s *replaySource) Errs() <-chan error                  { return s.errs }

func (s *replaySource) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
		close(s.events)
		close(s.errs)
	}
	return nil
}
