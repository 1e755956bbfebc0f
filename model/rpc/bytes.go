// Package rpc defines the wire-format helper types shared by the
// blockchain and off-chain JSON-RPC payloads: hex- and base64-encoded byte
// strings, matching the two encodings Tendermint-style chain APIs and
// this agent's off-chain HTTP API use respectively.
package rpc

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HexBytes is a byte string that marshals to and from a lowercase hex
// string, used for transaction hashes and event ids.
type HexBytes []byte

func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("rpc: decoding hex bytes: %w", err)
	}
	*h = decoded
	return nil
}

// Base64Bytes is a byte string that marshals to and from a standard
// base64 string, used for the transaction hash in a stored event returned
// by an off-chain peer.
type Base64Bytes []byte

func (b Base64Bytes) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

func (b Base64Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Base64Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("rpc: decoding base64 bytes: %w", err)
	}
	*b = decoded
	return nil
}
