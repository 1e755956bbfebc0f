package dispatch

import (
	"github.com/RyanW02/wineventchain/blockchain"
	"github.com/RyanW02/wineventchain/offchain"
)

// offChainRetryAdapter satisfies blockchain.OffChainRetryEnqueuer by
// translating its item shape into offchain.QueuedEvent, keeping the
// blockchain and offchain packages from needing to import each other.
type offChainRetryAdapter struct {
	queue *offchain.RetryQueue
}

func (a offChainRetryAdapter) Push(item blockchain.OffChainRetryItem) {
	a.queue.Push(offchain.QueuedEvent{
		EventId:   item.EventId,
		TxHash:    item.TxHash,
		EventData: item.EventData,
	})
}
