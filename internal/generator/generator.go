package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"socsim/internal/model"
	"socsim/internal/scenario"
	"socsim/internal/threat"
)

// EventSink persists one enriched event. Satisfied by storage.Store.
type EventSink interface {
	InsertEvent(ctx context.Context, ev model.Event) error
}

// EventObserver receives each event after it is persisted. Used for the live
// feed publisher and the stats counters; both are best-effort.
type EventObserver interface {
	Observe(sessionID string, ev model.Event)
}

var userNames = []string{
	"admin", "root", "jsmith", "svc_backup", "oracle", "postgres",
	"mwilson", "guest", "deploy", "kchen", "operator", "test",
}

// Generator produces the synthetic attack stream for one session. One
// generator runs per active session as a background task until its context
// is cancelled.
type Generator struct {
	sessionID  string
	scenario   model.Scenario
	difficulty model.Difficulty
	tick       time.Duration

	scorer    *threat.Scorer
	sink      EventSink
	observers []EventObserver
	logger    *slog.Logger

	internalNet []string
	subnet      int
	honeypotIP  string
	rng         *rand.Rand
}

func New(sessionID string, sc model.Scenario, diff model.Difficulty, tick time.Duration,
	scorer *threat.Scorer, sink EventSink, logger *slog.Logger, observers ...EventObserver) *Generator {
	if tick <= 0 {
		tick = 3 * time.Second
	}
	g := &Generator{
		sessionID:  sessionID,
		scenario:   sc,
		difficulty: diff,
		tick:       tick,
		scorer:     scorer,
		sink:       sink,
		observers:  observers,
		logger:     logger,
		honeypotIP: "10.0.0.100",
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	g.subnet = g.rng.IntN(6)
	g.SetInternalHosts(19)
	return g
}

// SetHoneypotIP overrides the default honeypot address.
func (g *Generator) SetHoneypotIP(ip string) {
	if ip != "" {
		g.honeypotIP = ip
	}
}

// SetInternalHosts resizes the internal target pool. The pool stays on the
// subnet chosen at construction, addressing hosts .1 through .n.
func (g *Generator) SetInternalHosts(n int) {
	if n <= 0 {
		return
	}
	g.internalNet = g.internalNet[:0]
	for i := 1; i <= n; i++ {
		g.internalNet = append(g.internalNet, fmt.Sprintf("10.0.%d.%d", g.subnet, i))
	}
}

// Run emits one event per tick until ctx is cancelled. A persistence failure
// is a transient fault: it is logged and the tick is skipped, never killing
// the loop. Cancellation between ticks stops production with no partial
// state and is not reported as an error.
func (g *Generator) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ev := g.makeEvent()
		enr := g.scorer.Enrich(ev)
		ev.AnomalyScore = enr.AnomalyScore
		ev.IsAnomaly = enr.IsAnomaly
		ev.ThreatLabel = enr.ThreatLabel

		if err := g.sink.InsertEvent(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return
			}
			if g.logger != nil {
				g.logger.Warn("event persist failed, skipping tick",
					"session_id", g.sessionID, "event_type", ev.EventType, "err", err)
			}
		} else {
			for _, o := range g.observers {
				o.Observe(g.sessionID, ev)
			}
		}

		if !sleep(ctx, g.tick) {
			return
		}
	}
}

func (g *Generator) makeEvent() model.Event {
	templates := scenario.Templates(g.scenario)
	tmpl := templates[g.rng.IntN(len(templates))]

	srcIP := g.publicIP()
	destIP := g.internalNet[g.rng.IntN(len(g.internalNet))]
	srcPort := 1024 + g.rng.IntN(65535-1024+1)
	user := userNames[g.rng.IntN(len(userNames))]

	payload := tmpl.Render(scenario.RenderVars{
		SrcIP:    srcIP,
		DestIP:   destIP,
		SrcPort:  srcPort,
		DestPort: tmpl.DestPort,
		User:     user,
	})

	return model.Event{
		ID:         uuid.NewString(),
		SessionID:  g.sessionID,
		SourceIP:   srcIP,
		DestIP:     destIP,
		SourcePort: srcPort,
		DestPort:   tmpl.DestPort,
		Protocol:   tmpl.Protocol,
		EventType:  tmpl.EventType,
		RawPayload: payload,
		Severity:   g.drawSeverity(),
		Timestamp:  time.Now().UTC(),
	}
}

var severityOrder = []model.Severity{
	model.SeverityLow,
	model.SeverityMedium,
	model.SeverityHigh,
	model.SeverityCritical,
}

func (g *Generator) drawSeverity() model.Severity {
	weights := scenario.WeightsFor(g.difficulty)
	r := g.rng.Float64()
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r < cum {
			return severityOrder[i]
		}
	}
	return model.SeverityCritical
}

// publicIP synthesizes an address outside the RFC1918 and loopback ranges.
func (g *Generator) publicIP() string {
	for {
		a := 1 + g.rng.IntN(222)
		b := g.rng.IntN(256)
		c := g.rng.IntN(256)
		d := 1 + g.rng.IntN(254)
		if a == 10 || a == 127 {
			continue
		}
		if a == 172 && b >= 16 && b <= 31 {
			continue
		}
		if a == 192 && b == 168 {
			continue
		}
		return fmt.Sprintf("%d.%d.%d.%d", a, b, c, d)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
