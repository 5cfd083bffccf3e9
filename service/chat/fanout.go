package chat

import (
	"sync"

	"PulseIM/tools/safe"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout is a worker pool for ordering-insensitive broadcasts: presence,
// typing, personal-channel pushes. Room events that must keep per-conversation
// order are enqueued inline under the conversation's sequencing guard instead
// (see messages.go) — pool workers may reorder jobs.
type Fanout struct {
	jobs      chan fanoutJob
	closeOnce sync.Once
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.Go(func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					// slow or closed client: drop, never block the pool
					c.Enqueue(job.payload)
				}
			}
		})
	}
	return f
}

func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	default:
		// saturated queue: best-effort events are droppable by contract
	}
}

func (f *Fanout) Close() {
	f.closeOnce.Do(func() { close(f.jobs) })
}
