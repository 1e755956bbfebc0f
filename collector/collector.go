package collector

import (
	"context"

	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/model/events"
)

// Handler processes a single decoded event. Errors are logged; the
// collector keeps consuming the source regardless of whether a given
// event's handling succeeds.
type Handler func(ctx context.Context, event events.EventWithData) error

// Collector pumps events from a Source into a Handler until its context is
// canceled or the source is closed.
type Collector struct {
	source  Source
	handler Handler
	logger  *log.Logger
}

// New returns a Collector reading from source and dispatching to handler.
func New(source Source, handler Handler) *Collector {
	return &Collector{
		source:  source,
		handler: handler,
		logger:  log.NewModuleLogger(log.ModuleCollector).With("channel", source.Channel().String()),
	}
}

// Run consumes source until ctx is canceled or the source's channels are
// closed, dispatching every successfully decoded event to the handler.
func (c *Collector) Run(ctx context.Context) {
	events, errs := c.source.Events(), c.source.Errs()
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := c.handler(ctx, event); err != nil {
				c.logger.Error("failed to handle event", "eventRecordId", event.System.EventRecordId, "err", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Warn("failed to decode event", "err", err)
		}
	}
}
