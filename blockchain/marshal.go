package blockchain

import (
	"encoding/json"
	"fmt"

	"github.com/RyanW02/wineventchain/model/events"
	blockchainrpc "github.com/RyanW02/wineventchain/model/rpc/blockchain"
)

func marshalMuxedRequest(req blockchainrpc.MuxedRequest) ([]byte, error) {
	out, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("blockchain: marshaling request: %w", err)
	}
	return out, nil
}

func marshalQueryData(data blockchainrpc.QueryData) ([]byte, error) {
	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("blockchain: marshaling query data: %w", err)
	}
	return out, nil
}

func unmarshalCreateResponse(data []byte) (*blockchainrpc.CreateResponse, error) {
	var res blockchainrpc.CreateResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("blockchain: unmarshaling create response: %w", err)
	}
	return &res, nil
}

func unmarshalEventWithMetadata(data []byte) (*events.EventWithMetadata, error) {
	var e events.EventWithMetadata
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("blockchain: unmarshaling event: %w", err)
	}
	return &e, nil
}

func metadataEqual(a, b events.Metadata) bool {
	return a.EventId.String() == b.EventId.String() &&
		a.ReceivedTime.Equal(b.ReceivedTime) &&
		a.Principal == b.Principal
}
