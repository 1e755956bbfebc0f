// Package blockchain submits scrubbed events to the chain and verifies
// their inclusion with a quorum of peers, following the submit/poll/verify
// protocol of a Tendermint-style application: broadcast, poll for
// inclusion via the transaction hash, then independently re-query that
// same transaction from separate peers to confirm the recorded metadata
// matches.
package blockchain

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/RyanW02/wineventchain/jsonrpc"
	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/model/events"
	blockchainrpc "github.com/RyanW02/wineventchain/model/rpc/blockchain"
	"github.com/RyanW02/wineventchain/model/rpc"
	"github.com/RyanW02/wineventchain/verifyingclient"
	"github.com/RyanW02/wineventchain/xerrors"
)

type tester struct{}

func (tester) Test(ctx context.Context, n *node) bool {
	return n.Health(ctx) == nil
}

// Signer identifies and signs requests on this agent's behalf.
type Signer struct {
	PrincipalId string
	PrivateKey  ed25519.PrivateKey
}

// PropagationOptions tunes how long and how often the submitter polls for
// a broadcast transaction's inclusion.
type PropagationOptions struct {
	RetryDelay       time.Duration
	MaxPropagationDelay time.Duration
}

// Client submits scrubbed events to a pool of chain nodes and verifies
// their inclusion.
type Client struct {
	client  *verifyingclient.VerifyingClient[*node]
	signer  Signer
	propagation PropagationOptions
	logger  *log.Logger
}

// New builds a Client over the given node endpoints.
func New(endpoints []string, callTimeout time.Duration, signer Signer, verifyOpts verifyingclient.Options, propagation PropagationOptions) *Client {
	nodes := make([]*node, len(endpoints))
	for i, endpoint := range endpoints {
		nodes[i] = newNode(jsonrpc.New(endpoint, callTimeout))
	}

	return &Client{
		client:      verifyingclient.New[*node](nodes, tester{}, verifyOpts),
		signer:      signer,
		propagation: propagation,
		logger:      log.NewModuleLogger(log.ModuleBlockchain),
	}
}

// Health reports whether at least one configured chain node is reachable.
func (c *Client) Health(ctx context.Context) bool {
	_, ok := c.client.Get(ctx, nil)
	return ok
}

type submitResult struct {
	txHash   rpc.HexBytes
	metadata events.Metadata
}

// Submit signs and broadcasts event, then polls for its inclusion and
// verifies the recorded metadata against independent peers. It returns the
// metadata the chain assigned the event and the transaction hash it was
// recorded under.
func (c *Client) Submit(ctx context.Context, event events.ScrubbedEvent) (events.Metadata, rpc.HexBytes, error) {
	newBackOff := func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.propagation.RetryDelay
		b.Multiplier = 1.25
		b.MaxInterval = c.propagation.RetryDelay * 4
		b.MaxElapsedTime = c.propagation.MaxPropagationDelay
		return b
	}

	task := func(ctx context.Context, n *node) (submitResult, error) {
		return c.submitToNode(ctx, n, event, newBackOff())
	}

	verifier := func(ctx context.Context, n *node, res submitResult) (bool, error) {
		return c.verifyOnNode(ctx, n, res)
	}

	res, err := verifyingclient.Run[*node, submitResult](ctx, c.client, newBackOff, task, verifier)
	if err != nil {
		return events.Metadata{}, nil, err
	}
	return res.metadata, res.txHash, nil
}

func (c *Client) submitToNode(ctx context.Context, n *node, event events.ScrubbedEvent, bo backoff.BackOff) (submitResult, error) {
	createReq := blockchainrpc.NewCreateRequest(event)
	payload, err := blockchainrpc.NewPayload(blockchainrpc.RequestEventCreate, createReq)
	if err != nil {
		return submitResult{}, err
	}

	signed, err := payload.Sign(c.signer.PrincipalId, c.signer.PrivateKey)
	if err != nil {
		return submitResult{}, err
	}

	muxed := blockchainrpc.MuxedRequest{App: blockchainrpc.AppEvents, Data: signed}

	marshalled, err := marshalMuxedRequest(muxed)
	if err != nil {
		return submitResult{}, err
	}

	broadcast, err := n.BroadcastTxSync(ctx, marshalled)
	if err != nil {
		return submitResult{}, err
	}
	if broadcast.Code != 0 {
		c.logger.Error("error submitting transaction", "code", broadcast.Code, "log", broadcast.Log)
		return submitResult{}, &xerrors.BlockchainError{Codespace: "", Code: broadcast.Code, Log: broadcast.Log}
	}

	metadata, err := backoff.RetryWithData(func() (events.Metadata, error) {
		return c.pollForInclusion(ctx, n, broadcast.Hash)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return submitResult{}, err
	}

	return submitResult{txHash: broadcast.Hash, metadata: metadata}, nil
}

func (c *Client) pollForInclusion(ctx context.Context, n *node, hash rpc.HexBytes) (events.Metadata, error) {
	query, err := n.Tx(ctx, hash, true)
	if err != nil {
		var notFound *errTxNotFound
		if errors.As(err, &notFound) {
			return events.Metadata{}, err // transient, retried by caller's backoff
		}
		return events.Metadata{}, backoff.Permanent(err)
	}

	if query.TxResult.Code != 0 {
		c.logger.Error("transaction execution failed", "code", query.TxResult.Code, "log", query.TxResult.Log)
		return events.Metadata{}, backoff.Permanent(&xerrors.BlockchainError{Code: query.TxResult.Code, Log: query.TxResult.Log})
	}

	decoded, err := base64.StdEncoding.DecodeString(query.TxResult.Data)
	if err != nil {
		return events.Metadata{}, backoff.Permanent(fmt.Errorf("blockchain: decoding tx_result.data: %w", err))
	}

	resp, err := unmarshalCreateResponse(decoded)
	if err != nil {
		return events.Metadata{}, backoff.Permanent(err)
	}
	return resp.Metadata, nil
}

func (c *Client) verifyOnNode(ctx context.Context, n *node, res submitResult) (bool, error) {
	query, err := n.Tx(ctx, res.txHash, true)
	if err != nil {
		var notFound *errTxNotFound
		if errors.As(err, &notFound) {
			return false, err
		}
		return false, backoff.Permanent(err)
	}

	if query.TxResult.Code != 0 {
		return false, backoff.Permanent(&xerrors.BlockchainError{Code: query.TxResult.Code, Log: query.TxResult.Log})
	}

	decoded, err := base64.StdEncoding.DecodeString(query.TxResult.Data)
	if err != nil {
		return false, backoff.Permanent(err)
	}

	resp, err := unmarshalCreateResponse(decoded)
	if err != nil {
		return false, backoff.Permanent(err)
	}

	return metadataEqual(resp.Metadata, res.metadata), nil
}

// GetEvent looks up a previously recorded event by its on-chain id.
func (c *Client) GetEvent(ctx context.Context, eventId rpc.HexBytes) (*events.EventWithMetadata, error) {
	n, ok := c.client.Get(ctx, nil)
	if !ok {
		return nil, xerrors.ErrNoClientsAvailable
	}

	path := "/event-by-id/" + eventId.String()
	data, err := marshalQueryData(blockchainrpc.QueryData{App: blockchainrpc.AppEvents})
	if err != nil {
		return nil, err
	}

	res, err := n.ABCIQuery(ctx, path, data, true)
	if err != nil {
		return nil, err
	}

	if res.Code != 0 && res.Codespace == blockchainrpc.Codespace {
		code := blockchainrpc.Code(res.Code)
		if code == blockchainrpc.CodeEventNotFound {
			return nil, nil
		}
		return nil, &xerrors.BlockchainError{Codespace: res.Codespace, Code: res.Code, Log: res.Log}
	}

	event, err := unmarshalEventWithMetadata(res.Value)
	if err != nil {
		return nil, err
	}
	return event, nil
}
