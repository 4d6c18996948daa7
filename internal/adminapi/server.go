package adminapi

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thea-remote/hostd/internal/audit"
	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/connmgr"
	"github.com/thea-remote/hostd/internal/logging"
	"github.com/thea-remote/hostd/internal/wol"
)

var log = logging.L("adminapi")

// HealthProvider reports the overall health summary and live session
// count for the status probe. *server.Server satisfies this without
// adminapi importing the server package back.
type HealthProvider interface {
	HealthSummary() (map[string]any, int)
}

// Server listens on a loopback Unix domain socket and answers theactl
// requests: pairing code issuance, Wake-on-LAN, audit stats, status.
type Server struct {
	cfg    *config.Config
	conn   *connmgr.Manager
	aud    *audit.Logger
	health HealthProvider

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	stopping bool
}

// New builds a Server. conn supplies pairing code generation; aud
// supplies the audit stats query; health supplies the status probe's
// health summary. Any may be nil in builds that don't wire those
// components (dispatch then replies with an error, or omits the field,
// for the affected request types).
func New(cfg *config.Config, conn *connmgr.Manager, aud *audit.Logger, health HealthProvider) *Server {
	return &Server{cfg: cfg, conn: conn, aud: aud, health: health}
}

// Start listens on cfg.AdminSocketPath. The socket is removed and
// recreated on each start since a stale socket file from an unclean
// shutdown would otherwise make the bind fail.
func (s *Server) Start() error {
	if s.cfg.AdminSocketPath == "" {
		return fmt.Errorf("adminapi: admin_socket_path not configured")
	}

	os.Remove(s.cfg.AdminSocketPath)
	ln, err := net.Listen("unix", s.cfg.AdminSocketPath)
	if err != nil {
		return fmt.Errorf("adminapi: listen on %s: %w", s.cfg.AdminSocketPath, err)
	}
	if err := os.Chmod(s.cfg.AdminSocketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("adminapi: restrict socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	log.Info("admin socket listening", "path", s.cfg.AdminSocketPath)

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				return nil
			}
			return fmt.Errorf("adminapi: accept: %w", err)
		}
		s.wg.Add(1)
		go s.handleConn(nc)
	}
}

// Stop closes the listener and waits for in-flight requests to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopping = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
	os.Remove(s.cfg.AdminSocketPath)
}

func (s *Server) handleConn(nc net.Conn) {
	defer s.wg.Done()
	defer nc.Close()

	for {
		req, err := recvEnvelope(nc)
		if err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := sendEnvelope(nc, resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Envelope) Envelope {
	switch req.Type {
	case TypePair:
		return s.handlePair(req)
	case TypeWOL:
		return s.handleWOL(req)
	case TypeAuditStats:
		return s.handleAuditStats(req)
	case TypeStatus:
		return s.handleStatus(req)
	default:
		return Envelope{ID: req.ID, Type: req.Type, Error: fmt.Sprintf("adminapi: unsupported request type %q", req.Type)}
	}
}

func (s *Server) handlePair(req Envelope) Envelope {
	if s.conn == nil {
		return Envelope{ID: req.ID, Type: TypePair, Error: "adminapi: pairing not available"}
	}
	var payload PairRequest
	_ = json.Unmarshal(req.Payload, &payload)
	if payload.ValidForSeconds <= 0 {
		payload.ValidForSeconds = 300
	}

	code, err := s.conn.GeneratePairingCode(time.Duration(payload.ValidForSeconds) * time.Second)
	if err != nil {
		return Envelope{ID: req.ID, Type: TypePair, Error: err.Error()}
	}
	env, _ := newEnvelope(req.ID, TypePair, PairResponse{Code: code, ExpiresIn: payload.ValidForSeconds})
	return env
}

func (s *Server) handleWOL(req Envelope) Envelope {
	var payload WOLRequest
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return Envelope{ID: req.ID, Type: TypeWOL, Error: fmt.Sprintf("adminapi: decode request: %v", err)}
	}
	if payload.Broadcast == "" {
		payload.Broadcast = "255.255.255.255"
	}
	if err := wol.SendMagicPacket(payload.MAC, payload.Broadcast); err != nil {
		return Envelope{ID: req.ID, Type: TypeWOL, Error: err.Error()}
	}
	env, _ := newEnvelope(req.ID, TypeWOL, WOLResponse{Sent: true})
	return env
}

func (s *Server) handleAuditStats(req Envelope) Envelope {
	if s.aud == nil {
		return Envelope{ID: req.ID, Type: TypeAuditStats, Error: "adminapi: audit log not available"}
	}
	stats := s.aud.Stats()
	env, _ := newEnvelope(req.ID, TypeAuditStats, AuditStatsResponse{
		Total:         stats.Total,
		Last24Hours:   stats.Last24Hours,
		LastWeek:      stats.LastWeek,
		FailedAuth:    stats.FailedAuth,
		Blocked:       stats.Blocked,
		UniqueClients: stats.UniqueClients,
	})
	return env
}

func (s *Server) handleStatus(req Envelope) Envelope {
	resp := StatusResponse{ServerName: s.cfg.ServerName, Port: s.cfg.Port}
	if s.health != nil {
		summary, sessions := s.health.HealthSummary()
		resp.Health = summary
		resp.ActiveSessions = sessions
	}
	env, _ := newEnvelope(req.ID, TypeStatus, resp)
	return env
}

func newRequestID() string { return uuid.NewString() }
