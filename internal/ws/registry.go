package ws

import (
	"log"
	"sync"
)

// DeliveryResult reports the outcome of a single delivery attempt.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	NotConnected
	Failed
)

func (r DeliveryResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NotConnected:
		return "not_connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Registry maps online user ids to their single active connection handle.
// It is the only shared mutable structure between connection goroutines;
// every operation is safe for concurrent use. The lock covers map access
// only, never the network send.
type Registry struct {
	mu    sync.Mutex
	conns map[int]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int]Handle)}
}

// Register installs the handle for the user. A user has one active
// session: registering over an existing handle closes the displaced one.
func (r *Registry) Register(userID int, h Handle) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = h
	r.mu.Unlock()

	if old != nil && old != h {
		log.Printf("user %d reconnected, closing previous session", userID)
		old.Close()
	}
}

// Unregister removes the user's mapping. A non-nil handle makes the
// removal conditional: the entry stays when another handle has already
// replaced it, so a stale session cannot evict its successor. Absent
// entries are a no-op.
func (r *Registry) Unregister(userID int, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[userID]; ok && (h == nil || cur == h) {
		delete(r.conns, userID)
	}
}

// Lookup returns the registered handle, if any.
func (r *Registry) Lookup(userID int) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.conns[userID]
	return h, ok
}

// OnlineUserIDs lists the users with a registered connection.
func (r *Registry) OnlineUserIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Deliver sends the payload to the user's connection. A transport error
// evicts and closes the failing handle so a half-broken connection gets
// no further deliveries.
func (r *Registry) Deliver(userID int, payload any) DeliveryResult {
	r.mu.Lock()
	h, ok := r.conns[userID]
	r.mu.Unlock()

	if !ok {
		return NotConnected
	}
	if err := h.SendEnvelope(payload); err != nil {
		log.Printf("websocket write error for user %d: %v", userID, err)
		h.Close()
		r.Unregister(userID, h)
		return Failed
	}
	return Delivered
}
