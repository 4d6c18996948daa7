package adminapi

import (
	"fmt"
	"net"
	"time"
)

// Client is a short-lived connection to a host's admin socket, used by
// theactl for one request/response exchange at a time.
type Client struct {
	nc net.Conn
}

// Dial connects to the admin socket at path.
func Dial(path string) (*Client, error) {
	nc, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("adminapi: dial %s: %w", path, err)
	}
	return &Client{nc: nc}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.nc.Close() }

// call sends a request envelope of typ carrying payload and returns
// the decoded response payload into out (if non-nil).
func (c *Client) call(typ string, payload, out any) error {
	req, err := newEnvelope(newRequestID(), typ, payload)
	if err != nil {
		return err
	}
	if err := sendEnvelope(c.nc, req); err != nil {
		return err
	}
	resp, err := recvEnvelope(c.nc)
	if err != nil {
		return fmt.Errorf("adminapi: receive response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("adminapi: %s", resp.Error)
	}
	if out == nil {
		return nil
	}
	return decodePayload(resp.Payload, out)
}

// Pair requests a fresh pairing code valid for validFor.
func (c *Client) Pair(validFor time.Duration) (PairResponse, error) {
	var resp PairResponse
	err := c.call(TypePair, PairRequest{ValidForSeconds: int(validFor.Seconds())}, &resp)
	return resp, err
}

// WakeOnLAN asks the host to broadcast a magic packet to mac.
func (c *Client) WakeOnLAN(mac, broadcast string) (WOLResponse, error) {
	var resp WOLResponse
	err := c.call(TypeWOL, WOLRequest{MAC: mac, Broadcast: broadcast}, &resp)
	return resp, err
}

// AuditStats fetches the host's current audit log summary.
func (c *Client) AuditStats() (AuditStatsResponse, error) {
	var resp AuditStatsResponse
	err := c.call(TypeAuditStats, nil, &resp)
	return resp, err
}

// Status fetches the host's identity/liveness probe.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.call(TypeStatus, nil, &resp)
	return resp, err
}
