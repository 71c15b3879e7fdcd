package ws

import (
	"sync"

	"travelmate/internal/presence"
)

// announcer runs presence announcements off the registry goroutine. Each
// user gets at most one worker, which drains that user's transitions in
// arrival order and exits when none are left.
type announcer struct {
	mu      sync.Mutex
	pending map[string][]presence.Transition
	run     func(presence.Transition)
}

func newAnnouncer(run func(presence.Transition)) *announcer {
	return &announcer{pending: make(map[string][]presence.Transition), run: run}
}

func (a *announcer) enqueue(t presence.Transition) {
	a.mu.Lock()
	defer a.mu.Unlock()
	queue, running := a.pending[t.UserID]
	a.pending[t.UserID] = append(queue, t)
	if !running {
		go a.drain(t.UserID)
	}
}

func (a *announcer) drain(userID string) {
	for {
		a.mu.Lock()
		queue := a.pending[userID]
		if len(queue) == 0 {
			delete(a.pending, userID)
			a.mu.Unlock()
			return
		}
		t := queue[0]
		a.pending[userID] = queue[1:]
		a.mu.Unlock()

		a.run(t)
	}
}
