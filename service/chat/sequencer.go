package chat

import "sync"

// Sequencer hands out one mutex per conversation so that persist+broadcast
// runs single-writer per conversation: broadcasts leave in commit order even
// when senders race. Unrelated conversations never contend. Guards are
// refcounted and dropped when idle so the map does not grow with history.
type Sequencer struct {
	mu     sync.Mutex
	guards map[string]*seqGuard
}

type seqGuard struct {
	mu   sync.Mutex
	refs int
}

func NewSequencer() *Sequencer {
	return &Sequencer{guards: make(map[string]*seqGuard)}
}

// Lock acquires the conversation's guard and returns its release func.
func (s *Sequencer) Lock(conversationID string) (unlock func()) {
	s.mu.Lock()
	g := s.guards[conversationID]
	if g == nil {
		g = &seqGuard{}
		s.guards[conversationID] = g
	}
	g.refs++
	s.mu.Unlock()

	g.mu.Lock()
	return func() {
		g.mu.Unlock()
		s.mu.Lock()
		g.refs--
		if g.refs == 0 {
			delete(s.guards, conversationID)
		}
		s.mu.Unlock()
	}
}
