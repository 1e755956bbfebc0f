package blockchain

import (
	uuid "github.com/satori/go.uuid"

	"github.com/RyanW02/wineventchain/model/events"
)

// Codespace identifies the events application's ABCI query/response
// namespace, used to distinguish its response codes from those of other
// applications muxed on the same chain.
const Codespace = "events"

// Code is an ABCI response code scoped to Codespace.
type Code uint32

const (
	CodeOk               Code = 0
	CodeUnknownError     Code = 1
	CodeInvalidQueryPath Code = 2
	CodeEventNotFound    Code = 3
)

// CreateRequest submits a scrubbed event for recording. Nonce guards
// against a retried broadcast being recorded twice under at-least-once
// delivery.
type CreateRequest struct {
	Event events.ScrubbedEvent `json:"event"`
	Nonce uuid.UUID            `json:"nonce"`
}

// NewCreateRequest builds a CreateRequest with a freshly generated nonce.
func NewCreateRequest(event events.ScrubbedEvent) CreateRequest {
	return CreateRequest{Event: event, Nonce: uuid.NewV4()}
}

// CreateResponse is returned once an event has been recorded, carrying the
// metadata the chain assigned it.
type CreateResponse struct {
	Metadata events.Metadata `json:"metadata"`
}
