package wire

import "encoding/json"

// Type names the tagged-union variant carried by a Message. Adding new
// variants is backwards compatible: unknown tags produce an
// application-level error reply rather than a decode failure.
type Type string

const (
	TypeAuthChallenge Type = "authChallenge"
	TypeAuthResponse  Type = "authResponse"
	TypeAuthSuccess   Type = "authSuccess"
	TypeAuthFailure   Type = "authFailure"

	TypeScreenRequest  Type = "screenRequest"
	TypeScreenResponse Type = "screenResponse"
	TypeScreenFrame    Type = "screenFrame"

	TypeInputRequest  Type = "inputRequest"
	TypeInputResponse Type = "inputResponse"

	TypeFileRequest  Type = "fileRequest"
	TypeFileResponse Type = "fileResponse"

	TypeSystemRequest  Type = "systemRequest"
	TypeSystemResponse Type = "systemResponse"

	TypeClipboardRequest  Type = "clipboardRequest"
	TypeClipboardResponse Type = "clipboardResponse"

	TypeAnnotationRequest  Type = "annotationRequest"
	TypeAnnotationResponse Type = "annotationResponse"

	TypeRecordingRequest  Type = "recordingRequest"
	TypeRecordingResponse Type = "recordingResponse"

	TypeAudioRequest  Type = "audioRequest"
	TypeAudioResponse Type = "audioResponse"
	TypeAudioFrame    Type = "audioFrame"

	TypeInventoryRequest  Type = "inventoryRequest"
	TypeInventoryResponse Type = "inventoryResponse"

	// TypeNetworkProxyRequest is permanently disabled: decodable, never
	// dispatched. See internal/networkproxy.
	TypeNetworkProxyRequest  Type = "networkProxyRequest"
	TypeNetworkProxyResponse Type = "networkProxyResponse"

	TypeInferenceRelayRequest  Type = "inferenceRelayRequest"
	TypeInferenceRelayResponse Type = "inferenceRelayResponse"

	TypeChat Type = "chat"

	TypePing       Type = "ping"
	TypePong       Type = "pong"
	TypeDisconnect Type = "disconnect"
	TypeError      Type = "error"
)

// Message is the wire-level tagged union: Type names the variant and
// Payload carries its fields as raw JSON, decoded by the handler that
// owns that variant.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the payload for TypeError and any *Response variant's
// error case. No stack traces are ever included.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(t Type, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: raw}, nil
}

// NewError builds an error Message carrying msg as its payload.
func NewError(msg string) Message {
	m, _ := NewMessage(TypeError, ErrorPayload{Message: msg})
	return m
}

// Decode unmarshals m.Payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// Encode serializes a Message to its JSON frame body.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage unmarshals a JSON frame body into a Message.
func DecodeMessage(body []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(body, &m)
	return m, err
}
