package blockchain

import (
	"context"

	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/model/rpc"
	"github.com/RyanW02/wineventchain/retryqueue"
	"github.com/RyanW02/wineventchain/storage/kvstore"
)

const retryQueueName = "retry_blockchain"

type submitOutcome struct {
	metadata events.Metadata
	txHash   rpc.HexBytes
	event    events.EventWithData
}

// OffChainSubmitter is implemented by offchain.Client; declared here as an
// interface so this package does not need to import offchain, avoiding a
// dependency cycle between the two submitters' retry-queue wiring.
type OffChainSubmitter interface {
	Submit(ctx context.Context, eventId, txHash rpc.HexBytes, data events.EventData) error
}

// OffChainRetryEnqueuer receives events whose blockchain retry succeeded
// but whose subsequent off-chain submission failed, so they re-enter the
// off-chain retry queue rather than being dropped.
type OffChainRetryEnqueuer interface {
	Push(event OffChainRetryItem)
}

// OffChainRetryItem mirrors offchain.QueuedEvent's shape without importing
// the offchain package directly.
type OffChainRetryItem struct {
	EventId   rpc.HexBytes
	TxHash    rpc.HexBytes
	EventData events.EventData
}

// RetryQueue retries blockchain submissions that failed their initial
// verified submission, cascading into the off-chain retry queue on
// success.
type RetryQueue struct {
	inner  *retryqueue.RetryQueue[events.EventWithData, submitOutcome]
	logger *log.Logger
}

// NewRetryQueue builds the blockchain retry queue bound to chainClient,
// cascading successful retries into offChainClient (submitted directly)
// and, if that submission fails, into offChainRetry.
func NewRetryQueue(
	store *kvstore.Store,
	chainClient *Client,
	offChainClient OffChainSubmitter,
	offChainRetry OffChainRetryEnqueuer,
	opts retryqueue.Options,
) *RetryQueue {
	opts.QueueName = retryQueueName
	logger := log.NewModuleLogger(log.ModuleBlockchain).With("component", "retry")

	inner := retryqueue.New[events.EventWithData, submitOutcome](store, opts,
		func(ctx context.Context, item events.EventWithData) (submitOutcome, error) {
			scrubbed := events.NewScrubbedEvent(item)
			metadata, txHash, err := chainClient.Submit(ctx, scrubbed)
			if err != nil {
				logger.Error("failed to submit event to the blockchain on retry",
					"channel", item.System.Channel, "eventRecordId", item.System.EventRecordId, "err", err)
				return submitOutcome{}, err
			}
			return submitOutcome{metadata: metadata, txHash: txHash, event: item}, nil
		},
		func(ctx context.Context, res submitOutcome) {
			logger.Info("stored event on the blockchain successfully after retry", "eventId", res.metadata.EventId.String())

			if err := offChainClient.Submit(ctx, res.metadata.EventId, res.txHash, res.event.EventData); err != nil {
				logger.Error("failed to store event off-chain after successful blockchain retry, adding to off-chain retry queue",
					"eventId", res.metadata.EventId.String(), "err", err)
				offChainRetry.Push(OffChainRetryItem{
					EventId:   res.metadata.EventId,
					TxHash:    res.txHash,
					EventData: res.event.EventData,
				})
				return
			}
			logger.Info("stored event off-chain successfully after retry", "eventId", res.metadata.EventId.String())
		},
	)

	return &RetryQueue{inner: inner, logger: logger}
}

// Start begins the background retry loop.
func (q *RetryQueue) Start(ctx context.Context) error {
	return q.inner.Start(ctx)
}

// Push enqueues event for retry.
func (q *RetryQueue) Push(event events.EventWithData) {
	if _, err := q.inner.Push(event); err != nil {
		q.logger.Error("failed to add event to the blockchain retry queue",
			"channel", event.System.Channel, "eventRecordId", event.System.EventRecordId, "err", err)
		return
	}
	q.logger.Info("event added to the blockchain retry queue",
		"channel", event.System.Channel, "eventRecordId", event.System.EventRecordId)
}
