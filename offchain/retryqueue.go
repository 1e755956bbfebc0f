package offchain

import (
	"context"

	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/model/rpc"
	"github.com/RyanW02/wineventchain/retryqueue"
	"github.com/RyanW02/wineventchain/storage/kvstore"
)

const retryQueueName = "retry_off_chain"

// QueuedEvent is a single off-chain submission pending retry.
type QueuedEvent struct {
	EventId   rpc.HexBytes     `json:"event_id"`
	TxHash    rpc.HexBytes     `json:"tx_hash"`
	EventData events.EventData `json:"event_data"`
}

// RetryQueue retries off-chain submissions that failed their initial
// verified submission.
type RetryQueue struct {
	inner  *retryqueue.RetryQueue[QueuedEvent, rpc.HexBytes]
	logger *log.Logger
}

// NewRetryQueue builds the off-chain retry queue bound to client.
func NewRetryQueue(store *kvstore.Store, client *Client, opts retryqueue.Options) *RetryQueue {
	opts.QueueName = retryQueueName
	logger := log.NewModuleLogger(log.ModuleOffChain).With("component", "retry")

	inner := retryqueue.New[QueuedEvent, rpc.HexBytes](store, opts,
		func(ctx context.Context, item QueuedEvent) (rpc.HexBytes, error) {
			if err := client.Submit(ctx, item.EventId, item.TxHash, item.EventData); err != nil {
				logger.Error("failed to store event on retry", "eventId", item.EventId.String(), "err", err)
				return nil, err
			}
			return item.EventId, nil
		},
		func(ctx context.Context, eventId rpc.HexBytes) {
			logger.Info("stored event off-chain successfully after retry", "eventId", eventId.String())
		},
	)

	return &RetryQueue{inner: inner, logger: logger}
}

// Start begins the background retry loop.
func (q *RetryQueue) Start(ctx context.Context) error {
	return q.inner.Start(ctx)
}

// Push enqueues event for retry.
func (q *RetryQueue) Push(event QueuedEvent) {
	if _, err := q.inner.Push(event); err != nil {
		q.logger.Error("failed to add event to the off-chain retry queue", "eventId", event.EventId.String(), "err", err)
		return
	}
	q.logger.Info("event added to the off-chain retry queue", "eventId", event.EventId.String())
}
