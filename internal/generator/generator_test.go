package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"socsim/internal/model"
	"socsim/internal/threat"
)

type captureSink struct {
	mu     sync.Mutex
	events []model.Event
	fail   bool
}

func (c *captureSink) InsertEvent(_ context.Context, ev model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("store unavailable")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) snapshot() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Event(nil), c.events...)
}

func newTestGenerator(sink EventSink, tick time.Duration) *Generator {
	scorer := threat.NewScorer(nil, nil)
	return New("sim-1", model.ScenarioBruteForce, model.DifficultyHard, tick, scorer, sink, nil)
}

func TestGeneratorProducesEnrichedEvents(t *testing.T) {
	sink := &captureSink{}
	g := newTestGenerator(sink, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	events := sink.snapshot()
	if len(events) == 0 {
		t.Fatalf("no events produced")
	}
	for _, ev := range events {
		if ev.ID == "" || ev.SessionID != "sim-1" {
			t.Fatalf("event missing identity: %+v", ev)
		}
		if ev.SourcePort < 1024 || ev.SourcePort > 65535 {
			t.Fatalf("source port %d out of range", ev.SourcePort)
		}
		if strings.Contains(ev.RawPayload, "{") {
			t.Fatalf("unsubstituted placeholder in payload %q", ev.RawPayload)
		}
		if _, ok := model.ParseSeverity(string(ev.Severity)); !ok {
			t.Fatalf("invalid severity %q", ev.Severity)
		}
		if ev.ThreatLabel == "" {
			t.Fatalf("event not enriched: %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Fatalf("event missing timestamp")
		}
		if strings.HasPrefix(ev.SourceIP, "10.") || strings.HasPrefix(ev.SourceIP, "192.168.") {
			t.Fatalf("source ip %s is not public-looking", ev.SourceIP)
		}
	}
}

func TestGeneratorStopsOnCancel(t *testing.T) {
	sink := &captureSink{}
	g := newTestGenerator(sink, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()
	time.Sleep(40 * time.Millisecond)
	cancel()
	cancelledAt := time.Now().UTC()
	<-done

	for _, ev := range sink.snapshot() {
		if ev.Timestamp.After(cancelledAt) {
			t.Fatalf("event stamped %s after cancellation at %s", ev.Timestamp, cancelledAt)
		}
	}

	// No further production after the loop returned.
	before := len(sink.snapshot())
	time.Sleep(30 * time.Millisecond)
	if after := len(sink.snapshot()); after != before {
		t.Fatalf("events kept flowing after cancellation: %d -> %d", before, after)
	}
}

func TestGeneratorSurvivesPersistFailures(t *testing.T) {
	sink := &captureSink{fail: true}
	g := newTestGenerator(sink, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()
	time.Sleep(40 * time.Millisecond)

	// The loop must still be alive despite every insert failing.
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	time.Sleep(40 * time.Millisecond)
	cancel()
	<-done

	if len(sink.snapshot()) == 0 {
		t.Fatalf("generator died on transient persistence faults")
	}
}

func TestInternalHostPoolSize(t *testing.T) {
	g := newTestGenerator(&captureSink{}, time.Millisecond)
	g.SetInternalHosts(3)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ev := g.makeEvent()
		seen[ev.DestIP] = true
		if !strings.HasPrefix(ev.DestIP, "10.0.") {
			t.Fatalf("dest ip %s not in internal range", ev.DestIP)
		}
	}
	if len(seen) > 3 {
		t.Fatalf("pool drew %d distinct hosts, configured 3", len(seen))
	}

	// Zero and negative sizes leave the pool untouched.
	g.SetInternalHosts(0)
	if len(g.internalNet) != 3 {
		t.Fatalf("pool resized to %d on zero input", len(g.internalNet))
	}
}

func TestSeverityDistributionFollowsDifficulty(t *testing.T) {
	sink := &captureSink{}
	g := newTestGenerator(sink, time.Millisecond)
	counts := map[model.Severity]int{}
	for i := 0; i < 2000; i++ {
		counts[g.drawSeverity()]++
	}
	// Hard tier weights critical at 0.35 and low at 0.05; with 2000 draws the
	// ordering is stable far beyond chance.
	if counts[model.SeverityCritical] <= counts[model.SeverityLow] {
		t.Fatalf("hard difficulty drew critical=%d low=%d, expected critical dominant",
			counts[model.SeverityCritical], counts[model.SeverityLow])
	}
}

func TestObserversSeePersistedEvents(t *testing.T) {
	sink := &captureSink{}
	var observed []model.Event
	var mu sync.Mutex
	obs := observerFunc(func(sessionID string, ev model.Event) {
		mu.Lock()
		observed = append(observed, ev)
		mu.Unlock()
	})
	scorer := threat.NewScorer(nil, nil)
	g := New("sim-1", model.ScenarioPhishing, model.DifficultyEasy, 5*time.Millisecond, scorer, sink, nil, obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Run(ctx)
	}()
	time.Sleep(40 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != len(sink.snapshot()) {
		t.Fatalf("observer saw %d events, store has %d", len(observed), len(sink.snapshot()))
	}
}

type observerFunc func(sessionID string, ev model.Event)

func (f observerFunc) Observe(sessionID string, ev model.Event) { f(sessionID, ev) }
