package netmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeProber fails or succeeds on demand.
type fakeProber struct {
	mu   sync.Mutex
	fail bool
}

func (p *fakeProber) Probe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("probe: connection refused")
	}
	return nil
}

func (p *fakeProber) setFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func newTestMonitor(p Prober) *Monitor {
	return NewMonitorWithProber(p, 30*time.Second, 5*time.Second)
}

func TestQualityOf(t *testing.T) {
	tests := []struct {
		name   string
		online bool
		link   Link
		expect Quality
	}{
		{"offline overrides everything", false, Link{EffectiveType: "4g"}, QualityOffline},
		{"4g is good", true, Link{EffectiveType: "4g"}, QualityGood},
		{"3g is fair", true, Link{EffectiveType: "3g"}, QualityFair},
		{"2g is poor", true, Link{EffectiveType: "2g"}, QualityPoor},
		{"slow-2g is poor", true, Link{EffectiveType: "slow-2g"}, QualityPoor},
		{"fast link is good", true, Link{DownlinkMbps: 10, RoundTripMs: 50}, QualityGood},
		{"medium link is fair", true, Link{DownlinkMbps: 2, RoundTripMs: 200}, QualityFair},
		{"slow link is poor", true, Link{DownlinkMbps: 0.5, RoundTripMs: 800}, QualityPoor},
		{"high rtt downgrades fast downlink", true, Link{DownlinkMbps: 10, RoundTripMs: 250}, QualityFair},
		{"no metrics assumes good", true, Link{}, QualityGood},
	}

	for _, tt := range tests {
		if got := qualityOf(tt.online, tt.link); got != tt.expect {
			t.Errorf("%s: qualityOf = %v, want %v", tt.name, got, tt.expect)
		}
	}
}

func TestOfflineQualityInvariant(t *testing.T) {
	m := newTestMonitor(&fakeProber{})
	m.SetLink(Link{EffectiveType: "4g"})

	if m.Quality() == QualityOffline {
		t.Error("Online monitor must not report offline quality")
	}

	m.SetOffline()
	if m.Quality() != QualityOffline {
		t.Error("Offline monitor must report offline quality")
	}
	if m.Online() {
		t.Error("Expected Online() false after SetOffline")
	}
}

func TestOnlineRequiresSuccessfulProbe(t *testing.T) {
	prober := &fakeProber{fail: true}
	m := newTestMonitor(prober)
	m.SetOffline()

	// An online signal alone is not trusted; the failing probe keeps the
	// monitor offline.
	if m.HandleOnlineSignal(context.Background()) {
		t.Fatal("Expected probe failure to keep monitor offline")
	}
	if m.Online() {
		t.Error("Monitor flipped online without a successful probe")
	}

	prober.setFail(false)
	if !m.HandleOnlineSignal(context.Background()) {
		t.Fatal("Expected probe success")
	}
	if !m.Online() {
		t.Error("Monitor should be online after confirmed probe")
	}
}

func TestWasOfflineConsumedByOneObservation(t *testing.T) {
	m := newTestMonitor(&fakeProber{})
	m.SetOffline()
	if !m.CheckConnectivity(context.Background()) {
		t.Fatal("Expected probe success")
	}

	first := m.State()
	if !first.WasOffline {
		t.Error("First observation after reconnect should report WasOffline")
	}
	second := m.State()
	if second.WasOffline {
		t.Error("WasOffline should be consumed by the first observation")
	}
}

func TestFailedProbeFlipsOnlineToOffline(t *testing.T) {
	prober := &fakeProber{}
	m := newTestMonitor(prober)

	if !m.Online() {
		t.Fatal("Monitor should start online")
	}

	// A periodic probe failing while "online" catches false positives.
	prober.setFail(true)
	if m.CheckConnectivity(context.Background()) {
		t.Fatal("Expected probe failure")
	}
	if m.Online() {
		t.Error("Monitor should be offline after a failed probe")
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	prober := &fakeProber{}
	m := newTestMonitor(prober)

	events, cancel := m.Subscribe()
	defer cancel()

	m.SetOffline()
	select {
	case e := <-events:
		if e.Online {
			t.Error("Expected offline event")
		}
	case <-time.After(time.Second):
		t.Fatal("No offline event received")
	}

	m.CheckConnectivity(context.Background())
	select {
	case e := <-events:
		if !e.Online {
			t.Error("Expected reconnect event")
		}
	case <-time.After(time.Second):
		t.Fatal("No reconnect event received")
	}
}

func TestRepeatedOfflineSignalPublishesOnce(t *testing.T) {
	m := newTestMonitor(&fakeProber{})
	events, cancel := m.Subscribe()
	defer cancel()

	m.SetOffline()
	m.SetOffline()

	<-events
	select {
	case <-events:
		t.Error("Duplicate offline signal should not publish a second event")
	default:
	}
}
