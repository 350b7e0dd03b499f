// Package netmon tracks connectivity to the remote data store and estimates
// link quality. It owns the only process-wide network state; consumers get
// the monitor injected rather than reading ambient globals.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/careops/caresync/internal/metrics"
)

// Quality is a coarse classification of the link, used to scale retry
// aggressiveness.
type Quality string

const (
	QualityGood    Quality = "good"
	QualityFair    Quality = "fair"
	QualityPoor    Quality = "poor"
	QualityOffline Quality = "offline"
)

// Link holds optional connection metrics reported by the transport.
type Link struct {
	DownlinkMbps  float64
	RoundTripMs   int
	EffectiveType string // "4g", "3g", "2g", "slow-2g", or empty
}

// State is a snapshot of connectivity as seen by the monitor.
type State struct {
	Online     bool
	WasOffline bool // true for one observation after a confirmed reconnect
	Quality    Quality
	Link       Link
}

// Event is published to subscribers on a confirmed connectivity transition.
type Event struct {
	Online bool
}

// Config holds monitor settings.
type Config struct {
	ProbeURL      string        `yaml:"probe_url"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// Monitor tracks online/offline state and link quality. An "online" signal
// from the transport is never trusted on its own: the transition back to
// online happens only after a successful probe.
type Monitor struct {
	prober        Prober
	probeInterval time.Duration
	probeTimeout  time.Duration

	mu         sync.RWMutex
	online     bool
	wasOffline bool
	link       Link
	subs       map[int]chan Event
	nextSubID  int
}

// NewMonitor creates a monitor in the online state.
func NewMonitor(cfg Config) *Monitor {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	return &Monitor{
		prober:        NewHTTPProber(cfg.ProbeURL, cfg.ProbeTimeout),
		probeInterval: cfg.ProbeInterval,
		probeTimeout:  cfg.ProbeTimeout,
		online:        true,
		subs:          make(map[int]chan Event),
	}
}

// NewMonitorWithProber creates a monitor with an injected prober.
func NewMonitorWithProber(p Prober, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		prober:        p,
		probeInterval: interval,
		probeTimeout:  timeout,
		online:        true,
		subs:          make(map[int]chan Event),
	}
}

// State returns the current network state. The WasOffline flag is consumed
// by the read: it reports true for exactly one observation after a
// confirmed reconnect.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Online:     m.online,
		WasOffline: m.wasOffline,
		Link:       m.link,
		Quality:    qualityOf(m.online, m.link),
	}
	m.wasOffline = false
	return s
}

// Online reports current connectivity without consuming WasOffline.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Quality returns the current link quality. Offline overrides all other
// signals.
func (m *Monitor) Quality() Quality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return qualityOf(m.online, m.link)
}

// SetLink updates the link metrics used for quality estimation.
func (m *Monitor) SetLink(link Link) {
	m.mu.Lock()
	m.link = link
	m.mu.Unlock()
}

// SetOffline records a connectivity-loss signal. The transition is trusted
// immediately, unlike the online direction.
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	wasOnline := m.online
	m.online = false
	m.mu.Unlock()

	if wasOnline {
		slog.Warn("Network connection lost")
		metrics.NetworkTransitions.WithLabelValues("offline").Inc()
		m.publish(Event{Online: false})
	}
}

// HandleOnlineSignal reacts to a transport-level "online" signal by
// probing. The state flips to online only if the probe succeeds.
func (m *Monitor) HandleOnlineSignal(ctx context.Context) bool {
	return m.CheckConnectivity(ctx)
}

// CheckConnectivity performs a round-trip probe bounded by the probe
// timeout. It returns false on any failure, including timeout, and updates
// monitor state on confirmed transitions in either direction.
func (m *Monitor) CheckConnectivity(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	err := m.prober.Probe(probeCtx)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		m.SetOffline()
		return false
	}

	m.mu.Lock()
	wasOffline := !m.online
	m.online = true
	if wasOffline {
		m.wasOffline = true
	}
	m.mu.Unlock()

	if wasOffline {
		slog.Info("Network connection restored")
		metrics.NetworkTransitions.WithLabelValues("online").Inc()
		m.publish(Event{Online: true})
	}
	return true
}

// Subscribe registers for connectivity transition events. The returned
// cancel func must be called to release the subscription.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Event, 4)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) publish(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- e:
		default: // Slow subscriber, drop rather than block
		}
	}
}

// Run probes periodically until ctx is canceled. While online a failed
// probe flips state to offline even without an external loss signal; while
// offline a successful probe confirms the reconnect.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckConnectivity(ctx)
		}
	}
}

// qualityOf derives quality from link metrics. Effective type wins when
// present; otherwise downlink/RTT thresholds apply.
func qualityOf(online bool, link Link) Quality {
	if !online {
		return QualityOffline
	}

	switch link.EffectiveType {
	case "4g":
		return QualityGood
	case "3g":
		return QualityFair
	case "2g", "slow-2g":
		return QualityPoor
	}

	if link.DownlinkMbps == 0 && link.RoundTripMs == 0 {
		// No metrics available, assume the link is fine
		return QualityGood
	}

	if link.DownlinkMbps >= 5 && link.RoundTripMs <= 100 {
		return QualityGood
	}
	if link.DownlinkMbps >= 1.5 && link.RoundTripMs <= 300 {
		return QualityFair
	}
	return QualityPoor
}
