package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSequencer_MutualExclusionPerConversation(t *testing.T) {
	req := require.New(t)
	s := NewSequencer()

	unlock := s.Lock("c1")

	acquired := make(chan struct{})
	go func() {
		u := s.Lock("c1")
		close(acquired)
		u()
	}()

	// The second acquirer must block while the guard is held.
	select {
	case <-acquired:
		t.Fatal("second Lock acquired while guard held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after release")
	}
	req.Empty(s.guards)
}

func TestSequencer_IndependentConversationsDoNotContend(t *testing.T) {
	s := NewSequencer()

	unlock := s.Lock("c1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := s.Lock("c2")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated conversation blocked")
	}
}

func TestSequencer_GuardsDroppedWhenIdle(t *testing.T) {
	req := require.New(t)
	s := NewSequencer()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("busy")
			unlock()
		}()
	}
	wg.Wait()
	req.Empty(s.guards)
}
