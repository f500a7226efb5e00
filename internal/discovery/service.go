// Package discovery advertises the dashboard over mDNS.
package discovery

import (
	"fmt"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/Tetra360/bolt-test/internal/logger"
)

const (
	ServiceType   = "_visionconsole._tcp"
	ServiceDomain = "local."
)

type shutdowner interface{ Shutdown() }

type registerFunc func(instance, service, domain string, port int, text []string) (shutdowner, error)

// Service registers one dashboard instance.
type Service struct {
	mu       sync.Mutex
	server   shutdowner
	instance string
	port     int
	text     []string
	register registerFunc
}

// NewService prepares a registration for port. version ends up in the TXT record.
func NewService(port int, version string) *Service {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "vision"
	}
	return &Service{
		instance: hostname + "-console",
		port:     port,
		text: []string{
			"version=" + version,
			"path=/",
			"events=/api/events",
		},
		register: func(instance, service, domain string, port int, text []string) (shutdowner, error) {
			return zeroconf.Register(instance, service, domain, port, text, nil)
		},
	}
}

// Instance returns the advertised instance name.
func (s *Service) Instance() string { return s.instance }

// Start registers the service. Calling Start twice is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}
	srv, err := s.register(s.instance, ServiceType, ServiceDomain, s.port, s.text)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}
	s.server = srv

	logger.Info("Discovery", "Advertising %s.%s.%s on port %d", s.instance, ServiceType, ServiceDomain, s.port)
	return nil
}

// Stop withdraws the registration.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return
	}
	s.server.Shutdown()
	s.server = nil
	logger.Info("Discovery", "Stopped advertising %s", s.instance)
}

// Running reports whether the service is registered.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}
