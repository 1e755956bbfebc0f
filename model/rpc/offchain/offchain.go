// Package offchain defines the request/response bodies exchanged with the
// off-chain HTTP store: event submission, status checks, and the stored
// record returned for round-trip verification.
package offchain

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/model/rpc"
	"github.com/RyanW02/wineventchain/xerrors"
)

// ErrorResponse is returned alongside a non-2xx HTTP status by any
// off-chain endpoint.
type ErrorResponse struct {
	Error *string `json:"error,omitempty"`
}

// Status reports a peer's self-assessed health.
type Status string

const (
	StatusOk    Status = "ok"
	StatusError Status = "error"
)

// StatusResponse is returned by the off-chain peer's health endpoint.
type StatusResponse struct {
	Status Status  `json:"status"`
	Error  *string `json:"error,omitempty"`
}

// SubmitRequest is posted to record the full, unscrubbed event alongside
// the chain transaction that recorded its scrubbed counterpart. Signature
// is computed over the raw sha256 digest of EventData, not over the JSON
// encoding of the request — binding the off-chain record to exactly the
// same hash that was bound on-chain.
type SubmitRequest struct {
	EventId   rpc.HexBytes     `json:"event_id"`
	TxHash    rpc.HexBytes     `json:"tx_hash"`
	EventData events.EventData `json:"event_data"`
	Principal events.Principal `json:"principal"`
	Signature string           `json:"signature"`
}

// NewSubmitRequest builds a SubmitRequest, signing the raw event-data hash
// with key.
func NewSubmitRequest(eventId, txHash rpc.HexBytes, data events.EventData, principalId string, key ed25519.PrivateKey) SubmitRequest {
	digest := data.Hash()
	signature := ed25519.Sign(key, digest[:])
	return SubmitRequest{
		EventId:   eventId,
		TxHash:    txHash,
		EventData: data,
		Principal: events.Principal{Id: principalId},
		Signature: hex.EncodeToString(signature),
	}
}

// StoredEvent is returned when fetching a previously submitted event back
// from an off-chain peer.
type StoredEvent struct {
	Event    events.EventWithData `json:"event"`
	Metadata events.Metadata      `json:"metadata"`
	TxHash   rpc.Base64Bytes      `json:"tx_hash"`
}

// ChainEventGetter fetches the scrubbed event recorded on-chain under
// eventId, used by Validate to re-derive the expected off-chain hash.
type ChainEventGetter interface {
	GetEvent(ctx context.Context, eventId rpc.HexBytes) (*events.EventWithMetadata, error)
}

// Validate re-derives the off-chain hash binding for this StoredEvent and
// checks it against the hash recorded on-chain under eventId, detecting
// tampering or corruption of the off-chain copy independent of the
// original submission path.
func (s StoredEvent) Validate(ctx context.Context, eventId rpc.HexBytes, chain ChainEventGetter) error {
	hash := s.Event.EventData.Hash()
	got := hex.EncodeToString(hash[:])

	onChain, err := chain.GetEvent(ctx, eventId)
	if err != nil {
		return fmt.Errorf("offchain: fetching on-chain event: %w", err)
	}
	if onChain == nil {
		return xerrors.ErrBlockchainEventNotFound
	}

	if onChain.OffchainHash != got {
		return &xerrors.OffChainHashMismatchError{Expected: onChain.OffchainHash, Got: got}
	}
	return nil
}
