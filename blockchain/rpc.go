package blockchain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/RyanW02/wineventchain/jsonrpc"
	"github.com/RyanW02/wineventchain/model/rpc"
)

// node wraps a single chain peer's JSON-RPC client with the four
// Tendermint-style calls this agent needs: a liveness probe, transaction
// broadcast, transaction lookup, and ABCI queries.
type node struct {
	rpc *jsonrpc.Client
}

func newNode(client *jsonrpc.Client) *node {
	return &node{rpc: client}
}

func (n *node) Health(ctx context.Context) error {
	return n.rpc.Call(ctx, "health", nil, nil)
}

type broadcastTxSyncResult struct {
	Code uint32       `json:"code"`
	Log  string       `json:"log"`
	Hash rpc.HexBytes `json:"hash"`
}

func (n *node) BroadcastTxSync(ctx context.Context, tx []byte) (*broadcastTxSyncResult, error) {
	params := map[string]string{"tx": base64.StdEncoding.EncodeToString(tx)}
	var res broadcastTxSyncResult
	if err := n.rpc.Call(ctx, "broadcast_tx_sync", params, &res); err != nil {
		return nil, fmt.Errorf("blockchain: broadcast_tx_sync: %w", err)
	}
	return &res, nil
}

type txResult struct {
	Code uint32 `json:"code"`
	Log  string `json:"log"`
	Data string `json:"data"` // base64-encoded, decoded by caller
}

type txResponse struct {
	Hash     rpc.HexBytes `json:"hash"`
	TxResult txResult     `json:"tx_result"`
}

// errTxNotFound is the sentinel class of error this agent treats as
// transient when polling for a just-broadcast transaction's inclusion: the
// node simply hasn't indexed it yet.
type errTxNotFound struct{ hash string }

func (e *errTxNotFound) Error() string { return fmt.Sprintf("tx %s not found", e.hash) }

func (n *node) Tx(ctx context.Context, hash rpc.HexBytes, prove bool) (*txResponse, error) {
	params := map[string]interface{}{"hash": base64.StdEncoding.EncodeToString(hash), "prove": prove}
	var res txResponse
	if err := n.rpc.Call(ctx, "tx", params, &res); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, &errTxNotFound{hash: hash.String()}
		}
		return nil, fmt.Errorf("blockchain: tx: %w", err)
	}
	return &res, nil
}

type abciQueryResult struct {
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace"`
	Log       string `json:"log"`
	Value     []byte `json:"value"`
}

func (n *node) ABCIQuery(ctx context.Context, path string, data []byte, prove bool) (*abciQueryResult, error) {
	params := map[string]interface{}{
		"path":  path,
		"data":  fmt.Sprintf("%x", data),
		"prove": prove,
	}
	var res abciQueryResult
	if err := n.rpc.Call(ctx, "abci_query", params, &res); err != nil {
		return nil, fmt.Errorf("blockchain: abci_query: %w", err)
	}
	return &res, nil
}
