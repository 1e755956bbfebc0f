// Package blockchain defines the request/response envelopes exchanged with
// the chain's JSON-RPC interface: a signed payload muxed by application
// name, and the events application's create/query types.
package blockchain

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/RyanW02/wineventchain/model/events"
)

// AppName selects which application on the chain a muxed request targets.
// This agent only ever addresses Events; Identity exists on the chain side
// but has no agent-side caller.
type AppName string

const (
	AppIdentity AppName = "identity"
	AppEvents   AppName = "events"
)

// RequestType discriminates the payload carried inside a signed request.
type RequestType string

const (
	RequestEventCreate RequestType = "create"
)

// Payload is a typed request body prior to signing.
type Payload struct {
	Type RequestType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewPayload marshals data and wraps it as a Payload of the given type.
func NewPayload(typ RequestType, data interface{}) (Payload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Payload{}, fmt.Errorf("blockchain: marshaling payload data: %w", err)
	}
	return Payload{Type: typ, Data: raw}, nil
}

// Sign signs Data (not the whole Payload envelope) with key and returns
// the SignedPayload ready to be muxed and submitted.
func (p Payload) Sign(principalId string, key ed25519.PrivateKey) (SignedPayload, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return SignedPayload{}, fmt.Errorf("blockchain: marshaling signed payload: %w", err)
	}
	signature := ed25519.Sign(key, p.Data)
	return SignedPayload{
		Payload:   raw,
		Principal: events.Principal{Id: principalId},
		Signature: hex.EncodeToString(signature),
	}, nil
}

// SignedPayload is a Payload alongside the signature over its Data field
// and the identity of the signer.
type SignedPayload struct {
	Payload   json.RawMessage  `json:"payload"`
	Principal events.Principal `json:"principal"`
	Signature string           `json:"signature"`
}

// MuxedRequest is the top-level request body posted to the chain's RPC
// endpoint: a SignedPayload tagged with the application it targets.
type MuxedRequest struct {
	App  AppName       `json:"app"`
	Data SignedPayload `json:"data"`
}

// QueryData tags an ABCI query with the application it targets.
type QueryData struct {
	App AppName `json:"app"`
}
