// Package connectivity probes the remote store to decide whether the
// client is online. The probe is authoritative: only a successful
// round trip counts as connected.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/logging"
)

// ChangeFunc is invoked when the online state flips.
type ChangeFunc func(ctx context.Context, online bool)

// Config holds monitor tuning parameters.
type Config struct {
	ProbeInterval time.Duration // How often the remote is probed
	ProbeTimeout  time.Duration // Deadline for one probe
}

// DefaultConfig returns the standard monitor parameters.
func DefaultConfig() Config {
	return Config{
		ProbeInterval: 30 * time.Second,
		ProbeTimeout:  10 * time.Second,
	}
}

// Monitor periodically tests the remote connection and reports state
// changes.
type Monitor struct {
	remote   ports.RemoteStorePort
	onChange ChangeFunc
	logger   *logging.Logger
	config   Config

	mu     sync.Mutex
	online bool
	known  bool
}

// NewMonitor creates a connectivity monitor.
func NewMonitor(remote ports.RemoteStorePort, onChange ChangeFunc, logger *logging.Logger, cfg Config) *Monitor {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &Monitor{
		remote:   remote,
		onChange: onChange,
		logger:   logger,
		config:   cfg,
	}
}

// IsOnline reports the last probed state. Before the first probe the
// monitor is optimistic.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known {
		return true
	}
	return m.online
}

// Probe tests the connection once and fires the change callback when
// the state flips. Returns the observed state.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	err := m.remote.TestConnection(probeCtx)
	cancel()

	online := err == nil

	m.mu.Lock()
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	m.mu.Unlock()

	if changed {
		logging.LogConnectivityChange(ctx, m.logger, online)
		if m.onChange != nil {
			m.onChange(ctx, online)
		}
	}
	return online
}

// Run probes on an interval until the context ends. An immediate first
// probe establishes the initial state.
func (m *Monitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
