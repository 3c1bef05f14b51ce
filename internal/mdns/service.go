// Package mdns advertises the score server on the local network through the
// Avahi daemon, so LAN clients can find it without configuration.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

const (
	// ServiceType is the DNS-SD service type for PoDropSquare servers.
	ServiceType = "_podropsquare._tcp"

	// APIVersion is the current API version advertised in TXT records.
	APIVersion = "v1"

	// ServerVersion is the server version advertised in TXT records.
	ServerVersion = "1.0.0"

	// LeaderboardPath is where clients fetch the board.
	LeaderboardPath = "/api/v1/leaderboard"
)

// Announcement describes what gets published.
type Announcement struct {
	// Name is the instance name. Defaults to the hostname.
	Name string
	Port int
	// Stream is advertised when the live leaderboard stream is enabled.
	Stream bool
}

// TXT returns the TXT record strings for a.
func (a Announcement) TXT() []string {
	txt := []string{
		"version=" + ServerVersion,
		"api=" + APIVersion,
		"leaderboard=" + LeaderboardPath,
	}
	if a.Stream {
		txt = append(txt, "stream="+LeaderboardPath+"/stream")
	}
	return txt
}

// publisher is the part of the Avahi API the service needs.
type publisher interface {
	publish(a Announcement) error
	close()
}

// Service manages mDNS advertisement.
type Service struct {
	logger  *slog.Logger
	connect func() (publisher, error)

	mu      sync.Mutex
	current publisher
}

// NewService creates a new mDNS service backed by the system Avahi daemon.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{logger: logger, connect: connectAvahi}
}

// Start begins advertising. Errors are usually non-fatal: containers often
// have no system bus or no Avahi daemon.
func (s *Service) Start(a Announcement) error {
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("invalid port %d", a.Port)
	}
	if a.Name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "podropsquare-server"
		}
		a.Name = host
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Restart replaces the previous advertisement.
	if s.current != nil {
		s.current.close()
		s.current = nil
	}

	p, err := s.connect()
	if err != nil {
		return fmt.Errorf("connect to avahi: %w", err)
	}
	if err := p.publish(a); err != nil {
		p.close()
		return fmt.Errorf("publish mDNS service: %w", err)
	}
	s.current = p

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"name", a.Name,
		"port", a.Port,
	)
	return nil
}

// Stop withdraws the advertisement. Safe to call multiple times or if not
// started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.close()
		s.current = nil
		s.logger.Info("mDNS advertisement stopped")
	}
}

// Running reports whether an advertisement is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// avahiPublisher holds one entry group on the shared system bus connection.
type avahiPublisher struct {
	server *avahi.Server
	group  *avahi.EntryGroup
}

func connectAvahi() (publisher, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus: %w", err)
	}
	server, err := avahi.ServerNew(conn)
	if err != nil {
		return nil, fmt.Errorf("avahi server: %w", err)
	}
	return &avahiPublisher{server: server}, nil
}

func (p *avahiPublisher) publish(a Announcement) error {
	group, err := p.server.EntryGroupNew()
	if err != nil {
		return fmt.Errorf("entry group: %w", err)
	}
	p.group = group

	txt := make([][]byte, 0, 4)
	for _, r := range a.TXT() {
		txt = append(txt, []byte(r))
	}

	err = group.AddService(
		avahi.InterfaceUnspec,
		avahi.ProtoUnspec,
		0,
		a.Name,
		ServiceType,
		"local",
		"", // host: let avahi use its own
		uint16(a.Port),
		txt,
	)
	if err != nil {
		return err
	}
	return group.Commit()
}

func (p *avahiPublisher) close() {
	if p.group != nil {
		p.server.EntryGroupFree(p.group)
		p.group = nil
	}
	p.server.Close()
}
