// Package offchain submits full event records to a pool of off-chain HTTP
// peers and verifies their storage by reading them back, following the
// same status/store/fetch HTTP contract the underlying peer exposes at
// /status, /event and /event/<id>.
package offchain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RyanW02/wineventchain/model/events"
	"github.com/RyanW02/wineventchain/model/rpc"
	offchainrpc "github.com/RyanW02/wineventchain/model/rpc/offchain"
	"github.com/RyanW02/wineventchain/xerrors"
)

// httpPeer is a single off-chain HTTP peer.
type httpPeer struct {
	baseURL *url.URL
	client  *http.Client
	signer  Signer
}

// Signer identifies and signs submissions on this agent's behalf.
type Signer struct {
	PrincipalId string
	PrivateKey  ed25519.PrivateKey
}

func newHTTPPeer(endpoint string, timeout time.Duration, signer Signer) (*httpPeer, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("offchain: parsing endpoint %q: %w", endpoint, err)
	}
	u.Path = "/"

	return &httpPeer{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		signer:  signer,
	}, nil
}

func (p *httpPeer) join(segment string) string {
	base := strings.TrimSuffix(p.baseURL.String(), "/")
	return base + "/" + strings.TrimPrefix(segment, "/")
}

// Status checks the peer's self-reported health.
func (p *httpPeer) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.join("status"), nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var status offchainrpc.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return &xerrors.OffChainStatusError{Status: fmt.Sprintf("http %d", resp.StatusCode)}
	}
	msg := "unknown"
	if status.Error != nil {
		msg = *status.Error
	}
	return &xerrors.OffChainStatusError{Status: msg}
}

// StoreEvent submits eventId/txHash/eventData, signed on this agent's
// behalf.
func (p *httpPeer) StoreEvent(ctx context.Context, eventId, txHash rpc.HexBytes, data events.EventData) error {
	body := offchainrpc.NewSubmitRequest(eventId, txHash, data, p.signer.PrincipalId, p.signer.PrivateKey)

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("offchain: marshaling submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.join("event"), bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return responseError(resp)
}

// GetEventData fetches a previously stored event back, returning
// (nil, nil) if the peer reports it does not have it (HTTP 404).
func (p *httpPeer) GetEventData(ctx context.Context, eventId rpc.HexBytes) (*offchainrpc.StoredEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.join("event/"+eventId.String()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var stored offchainrpc.StoredEvent
		if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
			return nil, fmt.Errorf("offchain: decoding stored event: %w", err)
		}
		return &stored, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	default:
		return nil, responseError(resp)
	}
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp offchainrpc.ErrorResponse
	msg := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
		msg = *errResp.Error
	}
	return &xerrors.OffChainResponseError{StatusCode: resp.StatusCode, Body: msg}
}
