// Package jsonrpc implements a minimal JSON-RPC 2.0 HTTP client, the
// transport the blockchain package uses to speak to a Tendermint-like chain
// node. It supports HTTP POST only.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a bare HTTP JSON-RPC 2.0 client bound to a single endpoint.
type Client struct {
	Endpoint   string
	httpClient *http.Client
}

// New returns a Client targeting endpoint, using timeout as the HTTP
// round-trip timeout for every call (callers should additionally pass a
// context.Context with its own deadline for cancellation).
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		Endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("jsonrpc: server returned error %d: %s", e.Code, e.Message)
}

// Call invokes method with params against c.Endpoint and unmarshals the
// result into result (which should be a pointer, as with json.Unmarshal).
// A nil result discards the response body beyond error-checking it.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("jsonrpc: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("jsonrpc: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jsonrpc: calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("jsonrpc: decoding response from %s: %w", method, err)
	}

	if decoded.Error != nil {
		return decoded.Error
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return fmt.Errorf("jsonrpc: unmarshaling result of %s: %w", method, err)
	}
	return nil
}
