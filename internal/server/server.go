// Package server wires every connection-management, authentication and
// request-handling component into one running host: it owns the
// TLS listener, drives the per-connection auth handshake, and
// registers every domain service with the dispatcher.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thea-remote/hostd/internal/annotation"
	"github.com/thea-remote/hostd/internal/audio"
	"github.com/thea-remote/hostd/internal/audit"
	"github.com/thea-remote/hostd/internal/authfsm"
	"github.com/thea-remote/hostd/internal/chat"
	"github.com/thea-remote/hostd/internal/clipboard"
	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/connmgr"
	"github.com/thea-remote/hostd/internal/discovery"
	"github.com/thea-remote/hostd/internal/dispatcher"
	"github.com/thea-remote/hostd/internal/events"
	"github.com/thea-remote/hostd/internal/fileservice"
	"github.com/thea-remote/hostd/internal/health"
	"github.com/thea-remote/hostd/internal/inferencerelay"
	"github.com/thea-remote/hostd/internal/inventory"
	"github.com/thea-remote/hostd/internal/livepreview"
	"github.com/thea-remote/hostd/internal/logging"
	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/recording"
	"github.com/thea-remote/hostd/internal/recording/archive"
	"github.com/thea-remote/hostd/internal/screen"
	"github.com/thea-remote/hostd/internal/secretstore"
	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/sysservice"
	"github.com/thea-remote/hostd/internal/wire"
)

var log = logging.L("server")

// Backends groups the platform capability constructors a Server needs.
// Hosts supply the native implementations; tests and headless builds
// pass the synthetic/noop fallbacks.
type Backends struct {
	NewCapturer      func() (platform.Capturer, error)
	NewAudioCapturer func() (platform.AudioCapturer, error)
	Clipboard        platform.Clipboard
	SystemControl    platform.SystemControl
	Confirm          sysservice.ConfirmFunc
}

// Server owns every long-lived component and drives the accept loop.
type Server struct {
	cfg   *config.Config
	conn  *connmgr.Manager
	sess  *sessionmgr.Manager
	auth  *authfsm.Authenticator
	disp  *dispatcher.Dispatcher
	bus   *events.Bus
	audit *audit.Logger
	store secretstore.Store

	screenSvc *screenAdapter
	fileSvc   *fileservice.Service
	sysSvc    *sysservice.Service
	recSvc    *recording.Service
	clipSvc   *clipboard.Service
	chatSvc   *chat.Service
	annotSvc  *annotation.Service
	audioSvc  *audioAdapter
	invSvc    *inventory.Service
	preview   *livepreview.Hub
	advertise *discovery.Advertiser
	health    *health.Monitor

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	stopping bool
}

// screenAdapter and audioAdapter exist only to hold the streaming
// services without the dispatcher's plain HandlerFunc needing to know
// about their extra sink parameter.
type screenAdapter struct{ svc *screen.Service }
type audioAdapter struct{ svc *audio.Service }

// New builds a Server from cfg and store, constructing every domain
// service. It does not start listening; call Start for that.
func New(cfg *config.Config, store secretstore.Store, backends Backends) (*Server, error) {
	connMgr, err := connmgr.New(cfg, store)
	if err != nil {
		return nil, fmt.Errorf("server: build connection manager: %w", err)
	}

	sessionTimeout := time.Duration(cfg.SessionTimeoutSeconds) * time.Second
	sessMgr := sessionmgr.New(cfg.MaxConnections, sessionTimeout)

	bus := events.NewBus(256)

	auditLogger, err := audit.NewLogger(
		fmt.Sprintf("%s/audit.json", config.GetDataDir()),
		cfg.AuditRetentionDays,
		1000,
	)
	if err != nil {
		return nil, fmt.Errorf("server: build audit logger: %w", err)
	}
	disp := dispatcher.New(bus, auditLogger)

	var archiver archive.Uploader
	if cfg.RecordingArchive.Provider != "" {
		archiver, err = archive.New(context.Background(), archive.Config{
			Provider: cfg.RecordingArchive.Provider,
			Bucket:   cfg.RecordingArchive.Bucket,
			Region:   cfg.RecordingArchive.Region,
			Account:  cfg.RecordingArchive.Account,
			Project:  cfg.RecordingArchive.Project,
			KeyID:    cfg.RecordingArchive.KeyID,
			KeySec:   cfg.RecordingArchive.KeySec,
		})
		if err != nil {
			return nil, fmt.Errorf("server: build recording archiver: %w", err)
		}
	}
	recSvc, err := recording.New(cfg.RecordingDir, archiver)
	if err != nil {
		return nil, fmt.Errorf("server: build recording service: %w", err)
	}

	confirm := backends.Confirm
	if confirm == nil {
		confirm = func(string, time.Duration) bool { return true }
	}

	s := &Server{
		cfg:       cfg,
		conn:      connMgr,
		sess:      sessMgr,
		auth:      authfsm.New(cfg, connMgr, store),
		disp:      disp,
		bus:       bus,
		audit:     auditLogger,
		store:     store,
		screenSvc: &screenAdapter{svc: screen.NewService(backends.NewCapturer)},
		fileSvc:   fileservice.New(cfg.AllowedPaths, cfg.BlockedPaths, cfg.MaxFileTransferBytes, auditLogger),
		sysSvc:    sysservice.New(backends.SystemControl, cfg.RequireConfirmation, confirm),
		recSvc:    recSvc,
		clipSvc:   clipboard.New(backends.Clipboard),
		audioSvc:  &audioAdapter{svc: audio.NewService(backends.NewAudioCapturer)},
		invSvc:    inventory.New(),
		preview:   livepreview.NewHub(),
		health:    health.NewMonitor(),
	}
	s.health.Update("auditLog", health.Healthy, "")
	s.health.Update("listener", health.Unknown, "not started")
	s.chatSvc = chat.New(sessMgr, disp)
	s.annotSvc = annotation.New(sessMgr, disp)

	sessMgr.OnTerminate = func(sess *sessionmgr.Session, reason string) {
		s.screenSvc.svc.StopSession(sess.ID)
		s.audioSvc.svc.StopSession(sess.ID)
		s.audit.Log("sessionEnded", sess.Client.Name, sess.ID, audit.ResultSuccess, map[string]any{"reason": reason})
	}

	s.registerHandlers()

	if cfg.DiscoveryEnabled {
		s.advertise = discovery.New(discovery.Config{
			ServiceType:  "_thea._tcp",
			DeviceID:     cfg.ServerName,
			HostName:     cfg.ServerName,
			Port:         cfg.Port,
			Version:      "1",
			Platform:     "thea",
			Capabilities: map[string]bool{"screen": cfg.Capabilities.Screen, "audio": cfg.Capabilities.Audio},
		})
	}

	return s, nil
}

// registerHandlers installs every dispatcher handler, adapting services
// whose Handle signature carries extra parameters (sessionID, sink)
// into the dispatcher's plain (sess, msg) contract.
func (s *Server) registerHandlers() {
	s.disp.Register(wire.TypeScreenRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return s.screenSvc.svc.Handle(sess.ID, msg, func(frame wire.ScreenFramePayload, exempt bool) {
			fm, err := wire.NewMessage(wire.TypeScreenFrame, frame)
			if err != nil {
				return
			}
			s.disp.Push(sess, fm, exempt)
			s.preview.Publish(sess.ID, frame.Data)
		})
	})
	s.disp.Register(wire.TypeFileRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return s.fileSvc.Handle(sess.ID, sess.Client.Name, msg)
	})
	s.disp.Register(wire.TypeSystemRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return s.sysSvc.Handle(msg)
	})
	s.disp.Register(wire.TypeClipboardRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return s.clipSvc.Handle(msg)
	})
	s.disp.Register(wire.TypeRecordingRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return s.recSvc.Handle(sess.ID, msg)
	})
	s.disp.Register(wire.TypeAudioRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return s.audioSvc.svc.Handle(sess.ID, msg, func(frame wire.AudioFramePayload) {
			fm, err := wire.NewMessage(wire.TypeAudioFrame, frame)
			if err != nil {
				return
			}
			s.disp.Push(sess, fm, false)
		})
	})
	s.disp.Register(wire.TypeInventoryRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return s.invSvc.Handle(msg)
	})
	s.disp.Register(wire.TypeInferenceRelayRequest, func(sess *sessionmgr.Session, msg wire.Message) (wire.Message, error) {
		return inferencerelay.Handle(msg)
	})
	s.disp.Register(wire.TypeChat, s.chatSvc.Handle)
	s.disp.Register(wire.TypeAnnotationRequest, s.annotSvc.Handle)

	// networkProxyRequest is deliberately never registered: it is
	// permanently disabled, and the dispatcher answers it with its
	// feature-disabled error reply.
}

// LivePreviewHub exposes the read-only WebSocket relay hub so the host
// binary can mount it on an HTTP mux.
func (s *Server) LivePreviewHub() *livepreview.Hub { return s.preview }

// AuditLogger exposes the audit logger for admin-surface queries.
func (s *Server) AuditLogger() *audit.Logger { return s.audit }

// ConnManager exposes the connection manager so an admin control
// surface can mint pairing codes against the same instance sessions
// authenticate through, rather than a second, disconnected one.
func (s *Server) ConnManager() *connmgr.Manager { return s.conn }

// HealthSummary reports the overall listener/session health alongside
// the live session count, for the admin control surface's status
// probe.
func (s *Server) HealthSummary() (map[string]any, int) {
	summary := s.health.Summary()
	return summary, s.sess.Count()
}

// Events returns the channel the host can range over to surface
// lifecycle/security/transfer events in its own UI.
func (s *Server) Events() <-chan events.Event { return s.bus.Subscribe() }

// Start builds the TLS listener and blocks accepting connections until
// Stop is called or the listener errors.
func (s *Server) Start() error {
	tlsCfg, err := connmgr.BuildTLSConfig(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	if err != nil {
		return fmt.Errorf("server: build TLS config: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := tls.Listen("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.bus.Emit(events.Event{Kind: events.KindServerStarted, At: time.Now()})
	s.health.Update("listener", health.Healthy, "")
	log.Info("listening", "addr", addr)

	if s.advertise != nil {
		if err := s.advertise.Start(); err != nil {
			log.Warn("mDNS advertising failed to start", "error", err)
		}
	}

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				return nil
			}
			s.health.Update("listener", health.Unhealthy, err.Error())
			return fmt.Errorf("server: accept: %w", err)
		}

		host, _, _ := net.SplitHostPort(nc.RemoteAddr().String())
		if !s.conn.CheckRateLimit(host) {
			s.audit.Log("rateLimitExceeded", "", "", audit.ResultDenied, map[string]any{"address": host})
			nc.Close()
			continue
		}
		if !s.conn.IsWhitelisted(host) {
			s.audit.Log("connectionRejected", "", "", audit.ResultDenied, map[string]any{"address": host, "reason": "not whitelisted"})
			nc.Close()
			continue
		}
		if !s.sess.CanAccept() {
			nc.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConn(nc)
	}
}

// Stop closes the listener and terminates every live session.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopping = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	if s.advertise != nil {
		s.advertise.Stop()
	}
	s.sess.DisconnectAll("server shutdown")
	s.wg.Wait()
	s.health.Update("listener", health.Unknown, "stopped")
	s.bus.Emit(events.Event{Kind: events.KindServerStopped, At: time.Now()})
}

func (s *Server) handleConn(nc net.Conn) {
	defer s.wg.Done()

	conn := wire.NewConn(nc)
	result, err := s.auth.Authenticate(conn)
	if err != nil {
		var rejected *authfsm.RejectedError
		if errors.As(err, &rejected) {
			s.audit.Log("authenticationFailed", "", "", audit.ResultDenied, map[string]any{"reason": rejected.Reason, "address": nc.RemoteAddr().String()})
		}
		conn.Close()
		return
	}

	sessID := uuid.NewString()
	sess := sessionmgr.NewSession(sessID, conn, sessionmgr.ClientDescriptor{
		Address: nc.RemoteAddr().String(),
	})
	sess.Authenticate(result.Permissions)
	if len(result.SessionKey) > 0 {
		sess.SessionKey = result.SessionKey
	}

	if err := s.sess.CreateSession(sess); err != nil {
		conn.Close()
		return
	}
	s.audit.Log("sessionStarted", sess.Client.Name, sess.ID, audit.ResultSuccess, nil)

	s.disp.Run(sess)
	s.sess.TerminateSession(sess.ID, "connection closed")
}
