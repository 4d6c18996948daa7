// Package networkproxy exists to keep wire.TypeNetworkProxyRequest
// decodable for backwards compatibility with older clients. The
// variant is permanently disabled: Handle always returns a fixed
// denial and is never registered with the dispatcher.
package networkproxy

import "github.com/thea-remote/hostd/internal/wire"

// Handle decodes req for framing compatibility only and always
// returns a denial. It is never called in normal operation: no
// Service in internal/server registers it with the dispatcher.
func Handle(msg wire.Message) (wire.Message, error) {
	var req wire.NetworkProxyRequestPayload
	_ = msg.Decode(&req) // decode failures are ignored; the response is fixed regardless

	return wire.NewMessage(wire.TypeNetworkProxyResponse, wire.NetworkProxyResponsePayload{
		Error: "network proxy is permanently disabled",
	})
}
