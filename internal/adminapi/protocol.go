// Package adminapi implements the loopback-only admin control surface
// theactl talks to: pairing code issuance, Wake-on-LAN, and audit log
// queries that have no place on the client-facing wire protocol.
//
// The admin socket is trusted by filesystem/loopback reachability
// alone (matching the Unix-socket-permission trust model used
// elsewhere in this codebase), so unlike the session wire protocol it
// carries no per-message HMAC: the Envelope is deliberately simpler
// than the client/host handshake.
package adminapi

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/thea-remote/hostd/internal/wire"
)

// Request/response type tags, the admin-socket analog of wire.Type.
const (
	TypePair       = "pair"
	TypeWOL        = "wol"
	TypeAuditStats = "auditStats"
	TypeStatus     = "status"
)

// Envelope is the admin socket's length-prefixed JSON frame: one
// request or response per frame, matched by ID.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PairRequest asks the host to mint a fresh pairing code.
type PairRequest struct {
	ValidForSeconds int `json:"validForSeconds"`
}

// PairResponse carries the minted code.
type PairResponse struct {
	Code      string `json:"code"`
	ExpiresIn int    `json:"expiresIn"`
}

// WOLRequest asks the host to broadcast a magic packet.
type WOLRequest struct {
	MAC       string `json:"mac"`
	Broadcast string `json:"broadcast"`
}

// WOLResponse acknowledges the broadcast.
type WOLResponse struct {
	Sent bool `json:"sent"`
}

// AuditStatsResponse mirrors audit.Stats over the admin socket.
type AuditStatsResponse struct {
	Total         int    `json:"total"`
	Last24Hours   int    `json:"last24Hours"`
	LastWeek      int    `json:"lastWeek"`
	FailedAuth    int    `json:"failedAuth"`
	Blocked       int    `json:"blocked"`
	UniqueClients int    `json:"uniqueClients"`
}

// StatusResponse is a liveness/identity probe, including the
// overall health monitor summary and current session count.
type StatusResponse struct {
	ServerName    string         `json:"serverName"`
	Port          int            `json:"port"`
	ActiveSessions int           `json:"activeSessions"`
	Health        map[string]any `json:"health,omitempty"`
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("adminapi: decode payload: %w", err)
	}
	return nil
}

func newEnvelope(id, typ string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{ID: id, Type: typ}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("adminapi: marshal payload: %w", err)
	}
	return Envelope{ID: id, Type: typ, Payload: raw}, nil
}

func sendEnvelope(w io.Writer, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("adminapi: marshal envelope: %w", err)
	}
	return wire.WriteFrame(w, body)
}

func recvEnvelope(r io.Reader) (Envelope, error) {
	body, err := wire.ReadFrame(r)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("adminapi: unmarshal envelope: %w", err)
	}
	return env, nil
}
