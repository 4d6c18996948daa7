// Package inferencerelay implements the inferenceRelayRequest variant.
// No inference backend is wired into this host: the variant stays
// decodable so a client that requests it gets a clean error reply
// rather than an unknown-tag rejection, but it never actually relays a
// prompt anywhere.
package inferencerelay

import (
	"github.com/thea-remote/hostd/internal/wire"
)

// Handle always denies. It never dispatches the prompt anywhere.
func Handle(msg wire.Message) (wire.Message, error) {
	var req wire.InferenceRelayRequestPayload
	_ = msg.Decode(&req)
	return wire.NewMessage(wire.TypeInferenceRelayResponse, wire.InferenceRelayResponsePayload{
		Error: "inference relay is not available on this host",
	})
}
