package offchain

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/RyanW02/wineventchain/log"
	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/model/rpc"
	offchainrpc "github.com/RyanW02/wineventchain/model/rpc/offchain"
	"github.com/RyanW02/wineventchain/verifyingclient"
	"github.com/RyanW02/wineventchain/xerrors"
)

type tester struct{}

func (tester) Test(ctx context.Context, p *httpPeer) bool {
	return p.Status(ctx) == nil
}

// Client submits full event records to a pool of off-chain peers and
// verifies storage by reading the record back.
type Client struct {
	client *verifyingclient.VerifyingClient[*httpPeer]
	logger *log.Logger
}

// New builds a Client over the given peer endpoints.
func New(endpoints []string, callTimeout time.Duration, signer Signer, verifyOpts verifyingclient.Options) (*Client, error) {
	peers := make([]*httpPeer, len(endpoints))
	for i, endpoint := range endpoints {
		p, err := newHTTPPeer(endpoint, callTimeout, signer)
		if err != nil {
			return nil, err
		}
		peers[i] = p
	}

	return &Client{
		client: verifyingclient.New[*httpPeer](peers, tester{}, verifyOpts),
		logger: log.NewModuleLogger(log.ModuleOffChain),
	}, nil
}

// Health reports whether at least one configured peer is reachable.
func (c *Client) Health(ctx context.Context) bool {
	_, ok := c.client.Get(ctx, nil)
	return ok
}

type submitResult struct {
	eventId rpc.HexBytes
	data    events.EventData
}

// Submit stores eventId/txHash/data on a peer and verifies it was stored
// correctly by independently reading it back from other peers.
func (c *Client) Submit(ctx context.Context, eventId, txHash rpc.HexBytes, data events.EventData) error {
	newBackOff := func() backoff.BackOff { return backoff.NewExponentialBackOff() }

	task := func(ctx context.Context, p *httpPeer) (submitResult, error) {
		if err := p.StoreEvent(ctx, eventId, txHash, data); err != nil {
			return submitResult{}, err
		}
		return submitResult{eventId: eventId, data: data}, nil
	}

	verifier := func(ctx context.Context, p *httpPeer, res submitResult) (bool, error) {
		stored, err := p.GetEventData(ctx, res.eventId)
		if err != nil {
			return false, backoff.Permanent(err)
		}
		if stored == nil {
			return false, errors.New("event not found")
		}

		if !eventDataEqual(stored.Event.EventData, res.data) {
			c.logger.Warn("event data mismatch on verification", "eventId", res.eventId.String())
			return false, backoff.Permanent(errors.New("event data mismatch"))
		}
		return true, nil
	}

	_, err := verifyingclient.Run[*httpPeer, submitResult](ctx, c.client, newBackOff, task, verifier)
	return err
}

func eventDataEqual(a, b events.EventData) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !stringPtrEqual(a[i].Name, b[i].Name) || !stringPtrEqual(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// GetEventData is exposed for one-shot operational validation (see
// StoredEvent.Validate) and does not itself verify with a quorum.
func (c *Client) GetEventData(ctx context.Context, eventId rpc.HexBytes) (bool, error) {
	stored, err := c.GetStoredEvent(ctx, eventId)
	if err != nil {
		return false, err
	}
	return stored != nil, nil
}

// GetStoredEvent fetches a previously stored event back from a single
// peer, without quorum verification. Used by operational spot-checks
// (offchainrpc.StoredEvent.Validate) that need the full record rather than
// just a presence check.
func (c *Client) GetStoredEvent(ctx context.Context, eventId rpc.HexBytes) (*offchainrpc.StoredEvent, error) {
	p, ok := c.client.Get(ctx, nil)
	if !ok {
		return nil, xerrors.ErrNoClientsAvailable
	}
	return p.GetEventData(ctx, eventId)
}
