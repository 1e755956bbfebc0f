// Package dispatch wires the collector's decoded events into the
// blockchain and off-chain submitters, in the order the rest of this
// agent's packages require: check the watermark, submit on-chain
// (enqueueing for retry on failure), record the watermark regardless of the
// submission's outcome, then submit off-chain only if the on-chain
// submission succeeded (likewise enqueueing for retry on failure).
package dispatch

import (
	"context"

	"github.com/RyanW02/wineventchain/blockchain"
	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/model/rpc"
	"github.com/RyanW02/wineventchain/offchain"
	"github.com/RyanW02/wineventchain/state"
)

// ChainSubmitter is satisfied by *blockchain.Client.
type ChainSubmitter interface {
	Submit(ctx context.Context, event events.ScrubbedEvent) (events.Metadata, rpc.HexBytes, error)
}

// ChainRetryQueue is satisfied by *blockchain.RetryQueue.
type ChainRetryQueue interface {
	Push(event events.EventWithData)
}

// OffChainSubmitter is satisfied by *offchain.Client.
type OffChainSubmitter interface {
	Submit(ctx context.Context, eventId, txHash rpc.HexBytes, data events.EventData) error
}

// OffChainRetryQueue is satisfied by *offchain.RetryQueue.
type OffChainRetryQueue interface {
	Push(event offchain.QueuedEvent)
}

// Orchestrator is the single entry point collected events are handed to.
type Orchestrator struct {
	state         *state.Store
	chain         ChainSubmitter
	chainRetry    ChainRetryQueue
	offChain      OffChainSubmitter
	offChainRetry OffChainRetryQueue
	logger        *log.Logger
}

// New builds an Orchestrator.
func New(
	stateStore *state.Store,
	chain ChainSubmitter,
	chainRetry ChainRetryQueue,
	offChain OffChainSubmitter,
	offChainRetry OffChainRetryQueue,
) *Orchestrator {
	return &Orchestrator{
		state:         stateStore,
		chain:         chain,
		chainRetry:    chainRetry,
		offChain:      offChain,
		offChainRetry: offChainRetry,
		logger:        log.NewModuleLogger(log.ModuleDispatch),
	}
}

// OffChainRetryAdapter returns an adapter satisfying
// blockchain.OffChainRetryEnqueuer over offChainRetry, for use when
// constructing the blockchain retry queue.
func OffChainRetryAdapter(offChainRetry *offchain.RetryQueue) blockchain.OffChainRetryEnqueuer {
	return offChainRetryAdapter{queue: offChainRetry}
}

// Handle processes a single decoded event end to end. It never returns an
// error for a downstream submission failure: every such failure is logged
// and pushed to a retry queue, matching this agent's "never drop an event
// on the floor" posture. It returns an error only when the local state
// store itself cannot be read or written.
func (o *Orchestrator) Handle(ctx context.Context, event events.EventWithData) error {
	channel := event.System.Channel
	recordId := event.System.EventRecordId

	o.logger.Debug("received event", "channel", channel, "eventId", event.System.EventId,
		"eventRecordId", recordId, "timeCreated", event.System.TimeCreated.SystemTime)

	isNew, err := o.state.IsNew(events.Event{System: event.System})
	if err != nil {
		o.logger.Error("failed to read watermark, dropping event", "channel", channel, "err", err)
		return err
	}
	if !isNew {
		o.logger.Debug("already received event, skipping", "channel", channel, "eventRecordId", recordId)
		return nil
	}

	scrubbed := events.NewScrubbedEvent(event)

	var chainResult *chainOutcome
	metadata, txHash, err := o.chain.Submit(ctx, scrubbed)
	if err != nil {
		o.logger.Error("failed to submit event to the blockchain, adding to retry queue",
			"channel", channel, "eventRecordId", recordId, "err", err)
		o.chainRetry.Push(event)
	} else {
		o.logger.Info("stored event on the blockchain", "channel", channel, "eventRecordId", recordId,
			"eventId", metadata.EventId.String())
		chainResult = &chainOutcome{metadata: metadata, txHash: txHash}
	}

	// The watermark advances regardless of whether the on-chain submission
	// succeeded: the event has already been durably queued for retry, so
	// re-reading it from the source on the next poll would only duplicate
	// work rather than recover anything.
	if err := o.state.StoreLatestRecord(events.Event{System: event.System}); err != nil {
		o.logger.Error("failed to store watermark", "channel", channel, "eventRecordId", recordId, "err", err)
		return err
	}

	if chainResult == nil {
		return nil
	}

	if err := o.offChain.Submit(ctx, chainResult.metadata.EventId, chainResult.txHash, event.EventData); err != nil {
		o.logger.Error("failed to store event off-chain, adding to retry queue",
			"eventId", chainResult.metadata.EventId.String(), "err", err)
		o.offChainRetry.Push(offchain.QueuedEvent{
			EventId:   chainResult.metadata.EventId,
			TxHash:    chainResult.txHash,
			EventData: event.EventData,
		})
		return nil
	}

	o.logger.Info("stored event off-chain", "eventId", chainResult.metadata.EventId.String())
	return nil
}

type chainOutcome struct {
	metadata events.Metadata
	txHash   rpc.HexBytes
}
