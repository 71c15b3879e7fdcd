// Package presence tracks which users are reachable right now and fans
// outbound events out to every connection a user holds.
package presence

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"travelmate/internal/domain"
)

// Conn is one live connection handle. Send must not block; it reports
// whether the event was queued for delivery.
type Conn interface {
	ID() string
	Send(ev domain.Event) bool
}

// Transition is emitted when a user's first connection registers (Online)
// or last connection unregisters (!Online).
type Transition struct {
	UserID string
	Online bool
}

// Registry manages active connections keyed by user ID. All map access goes
// through mu; transitions are queued under the same lock so subscribers see
// them in the order they happened.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]map[string]Conn
	pending []Transition
	wake    chan struct{}

	subsMu sync.RWMutex
	subs   []func(Transition)

	log *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]map[string]Conn),
		wake:  make(chan struct{}, 1),
		log:   log,
	}
}

// Subscribe adds fn to the transition listeners. Listeners run on the
// Run goroutine, one transition at a time.
func (r *Registry) Subscribe(fn func(Transition)) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	r.subs = append(r.subs, fn)
}

// Register adds a connection for the given user and reports whether it was
// the user's first.
func (r *Registry) Register(userID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]Conn)
		r.conns[userID] = set
	}
	if _, dup := set[c.ID()]; dup {
		return false
	}
	set[c.ID()] = c
	first := len(set) == 1
	if first {
		r.enqueue(Transition{UserID: userID, Online: true})
	}
	return first
}

// Unregister removes a connection for the given user and reports whether it
// was the user's last. Unknown handles are ignored.
func (r *Registry) Unregister(userID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return false
	}
	if _, known := set[c.ID()]; !known {
		return false
	}
	delete(set, c.ID())
	if len(set) > 0 {
		return false
	}
	delete(r.conns, userID)
	r.enqueue(Transition{UserID: userID, Online: false})
	return true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Connections returns the number of live handles for userID.
func (r *Registry) Connections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Snapshot returns the sorted IDs of every online user.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	ids := lo.Keys(r.conns)
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// OnlineAmong returns the subset of ids that are online, keeping their order
// and dropping duplicates.
func (r *Registry) OnlineAmong(ids []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(lo.Uniq(ids), func(id string, _ int) bool {
		return len(r.conns[id]) > 0
	})
}

// SendToUser queues ev on every connection of userID except the handles
// listed in except, and returns how many accepted it.
func (r *Registry) SendToUser(userID string, ev domain.Event, except ...string) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns[userID]))
	for id, c := range r.conns[userID] {
		if !slices.Contains(except, id) {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	// Send may close a slow connection, which unregisters it; that needs the
	// write lock, so deliver outside of it.
	delivered := 0
	for _, c := range targets {
		if c.Send(ev) {
			delivered++
		}
	}
	return delivered
}

// Run delivers queued transitions to subscribers until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}

		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		r.mu.Unlock()

		r.subsMu.RLock()
		subs := slices.Clone(r.subs)
		r.subsMu.RUnlock()

		for _, t := range batch {
			r.log.Debug("presence transition", "user_id", t.UserID, "online", t.Online)
			for _, fn := range subs {
				fn(t)
			}
		}
	}
}

// enqueue must be called with mu held.
func (r *Registry) enqueue(t Transition) {
	r.pending = append(r.pending, t)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
