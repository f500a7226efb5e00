// Package health polls the analysis service's health endpoint and tracks
// connectivity.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/pkg/types"
)

// Defaults applied to zero Config fields.
const (
	DefaultInterval     = 10 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// Recorder observes probe results, typically for metrics.
type Recorder interface {
	ObserveProbe(status types.ConnectivityStatus)
}

// Config configures a Monitor.
type Config struct {
	BaseURL      string
	Interval     time.Duration
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
	Recorder     Recorder
}

// Monitor tracks reachability of {BaseURL}/health.
type Monitor struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	client   *http.Client
	recorder Recorder
	now      func() time.Time

	// OnChange receives the state after every resolved probe. Calls are
	// serialised and may call State.
	OnChange func(state types.ConnectivityState)

	mu      sync.Mutex
	state   types.ConnectivityState
	running bool
	stopped bool
	cancel  context.CancelFunc

	emitMu sync.Mutex
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor in the connecting state.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Monitor{
		url:      strings.TrimRight(cfg.BaseURL, "/") + "/health",
		interval: cfg.Interval,
		timeout:  cfg.ProbeTimeout,
		client:   cfg.HTTPClient,
		recorder: cfg.Recorder,
		now:      time.Now,
		state:    types.ConnectivityState{Status: types.StatusConnecting},
	}
}

// State returns a snapshot of the current connectivity.
func (m *Monitor) State() types.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

// Start probes immediately and then on every interval tick until Stop or
// ctx is done. Ticks do not wait for earlier probes to resolve.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running || m.stopped {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	logger.Info("Health", "Monitoring %s every %v", m.url, m.interval)

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts the ticker and waits for the loop and any in-flight probes.
// Probes resolving after Stop leave the state untouched.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.spawnProbe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.spawnProbe(ctx)
		}
	}
}

func (m *Monitor) spawnProbe(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Probe(ctx)
	}()
}

// Probe performs one health check and applies its result unless the
// monitor has been stopped. The returned state is what this probe observed.
func (m *Monitor) Probe(ctx context.Context) types.ConnectivityState {
	err := m.check(ctx)

	checked := m.now()
	observed := types.ConnectivityState{Status: types.StatusConnected, LastCheckedAt: &checked}
	if err != nil {
		observed.Status = types.StatusDisconnected
		observed.LastError = err.Error()
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return observed
	}
	prev := m.state.Status
	m.state = observed
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.ObserveProbe(observed.Status)
	}
	if prev != observed.Status {
		if err != nil {
			logger.Warn("Health", "Analysis server %s: %v", observed.Status, err)
		} else {
			logger.Info("Health", "Analysis server %s", observed.Status)
		}
	}
	if m.OnChange != nil {
		m.OnChange(copyState(observed))
	}
	return observed
}

func (m *Monitor) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.New("HTTP error: " + resp.Status)
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	return nil
}

func copyState(s types.ConnectivityState) types.ConnectivityState {
	if s.LastCheckedAt != nil {
		t := *s.LastCheckedAt
		s.LastCheckedAt = &t
	}
	return s
}
