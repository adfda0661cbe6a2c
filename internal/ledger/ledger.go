package ledger

import (
	"hash/fnv"
	"sync"

	"socsim/internal/model"
)

const shardCount = 16

type shard struct {
	mu        sync.Mutex
	decisions map[string][]model.DecisionRecord
}

// Ledger is the per-session append-only record of analyst decisions. Writes
// for the same session serialize on the session's shard so concurrent
// submissions never lose entries.
type Ledger struct {
	shards [shardCount]*shard
}

func New() *Ledger {
	l := &Ledger{}
	for i := range l.shards {
		l.shards[i] = &shard{decisions: make(map[string][]model.DecisionRecord)}
	}
	return l
}

func (l *Ledger) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return l.shards[h.Sum32()%shardCount]
}

func (l *Ledger) Record(sessionID string, d model.DecisionRecord) {
	s := l.shardFor(sessionID)
	s.mu.Lock()
	s.decisions[sessionID] = append(s.decisions[sessionID], d)
	s.mu.Unlock()
}

// Drain returns all decisions for a session and removes them from the ledger.
// Called once by the scoring engine at session stop.
func (l *Ledger) Drain(sessionID string) []model.DecisionRecord {
	s := l.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.decisions[sessionID]
	delete(s.decisions, sessionID)
	return out
}

func (l *Ledger) Count(sessionID string) int {
	s := l.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decisions[sessionID])
}
