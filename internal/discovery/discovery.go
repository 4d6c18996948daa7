// Package discovery implements optional Bonjour/mDNS advertising of
// the host's service type over multicast DNS, off by default. No
// third-party mDNS library appears anywhere in the retrieval pack, so
// this package is a minimal RFC 6762 responder built directly on
// golang.org/x/net/ipv4's multicast group management, the same
// building block full mDNS libraries use internally.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	mdnsGroupAddr = "224.0.0.251"
	mdnsPort      = 5353
	defaultTTL    = 120

	typePTR = 12
	typeA   = 1
	typeSRV = 33
	typeTXT = 16
	classIN = 1

	cacheFlushBit = 0x8000

	announceInterval = 30 * time.Second
)

// Config describes the service instance to advertise.
type Config struct {
	ServiceType  string // e.g. "_thea-remote._tcp" ; also advertised as "_thea._tcp" for older peers
	DeviceID     string
	HostName     string // used as the mDNS instance + target name, e.g. "my-mac"
	Port         int
	Version      string
	Platform     string
	Capabilities map[string]bool
	LocalIP      net.IP
}

// Advertiser periodically announces Config over multicast DNS and
// replies to any inbound query by re-announcing.
type Advertiser struct {
	cfg Config

	mu     sync.Mutex
	conn   *ipv4.PacketConn
	raw    *net.UDPConn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Advertiser {
	return &Advertiser{cfg: cfg}
}

// Start joins the mDNS multicast group on every multicast-capable
// interface and begins periodic announcement plus query response.
// Start is idempotent: calling it while already running is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return nil
	}

	addr := &net.UDPAddr{IP: net.IPv4zero, Port: mdnsPort}
	udpConn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("discovery: listen udp4: %w", err)
	}
	pconn := ipv4.NewPacketConn(udpConn)

	group := net.ParseIP(mdnsGroupAddr)
	ifaces, err := net.Interfaces()
	if err != nil {
		udpConn.Close()
		return fmt.Errorf("discovery: list interfaces: %w", err)
	}
	joined := 0
	for _, iface := range ifaces {
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := pconn.JoinGroup(&iface, &net.UDPAddr{IP: group}); err == nil {
			joined++
		}
	}
	if joined == 0 {
		udpConn.Close()
		return fmt.Errorf("discovery: no multicast-capable interface available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.raw = udpConn
	a.conn = pconn
	a.cancel = cancel

	a.wg.Add(2)
	go a.announceLoop(ctx)
	go a.queryLoop(ctx)
	return nil
}

// Stop leaves the multicast group and closes the socket. Idempotent.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	conn := a.raw
	a.cancel = nil
	a.conn = nil
	a.raw = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	a.wg.Wait()
}

func (a *Advertiser) announceLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	a.announce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.announce()
		}
	}
}

// queryLoop replies to any inbound packet by re-announcing. This is a
// simplification of RFC 6762's probing/cache-flush state machine: it
// does not parse the query name and answer selectively, it just
// treats any traffic on the group as a cue to refresh the record set.
func (a *Advertiser) queryLoop(ctx context.Context) {
	defer a.wg.Done()
	buf := make([]byte, 2048)
	for {
		a.mu.Lock()
		conn := a.raw
		a.mu.Unlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _, err := conn.ReadFromUDP(buf)
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err != nil {
			continue
		}
		a.announce()
	}
}

func (a *Advertiser) announce() {
	a.mu.Lock()
	conn := a.raw
	a.mu.Unlock()
	if conn == nil {
		return
	}
	dst := &net.UDPAddr{IP: net.ParseIP(mdnsGroupAddr), Port: mdnsPort}
	for _, svcType := range []string{a.cfg.ServiceType, "_thea._tcp"} {
		packet := buildAnnouncement(a.cfg, svcType)
		conn.WriteToUDP(packet, dst)
	}
}
