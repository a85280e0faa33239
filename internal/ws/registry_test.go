package ws

import (
	"errors"
	"sync"
	"testing"
)

type stubHandle struct {
	mu      sync.Mutex
	sent    []any
	sendErr error
	closed  bool
}

func (s *stubHandle) SendEnvelope(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, v)
	return nil
}

func (s *stubHandle) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubHandle) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *stubHandle) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestRegistryLastRegisteredWins(t *testing.T) {
	registry := NewRegistry()
	first := &stubHandle{}
	second := &stubHandle{}

	registry.Register(1, first)
	registry.Register(1, second)

	h, ok := registry.Lookup(1)
	if !ok {
		t.Fatalf("expected user 1 to be registered")
	}
	if h != Handle(second) {
		t.Fatalf("expected the most recently registered handle")
	}
	if !first.isClosed() {
		t.Fatalf("expected the displaced handle to be closed")
	}
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry()
	h := &stubHandle{}

	registry.Register(1, h)
	registry.Unregister(1, nil)

	if _, ok := registry.Lookup(1); ok {
		t.Fatalf("expected user 1 to be unregistered")
	}
	if result := registry.Deliver(1, "payload"); result != NotConnected {
		t.Fatalf("expected NotConnected after unregister, got %v", result)
	}

	// Removing an absent user never errors.
	registry.Unregister(2, nil)
}

func TestRegistryStaleUnregisterKeepsReplacement(t *testing.T) {
	registry := NewRegistry()
	stale := &stubHandle{}
	current := &stubHandle{}

	registry.Register(1, stale)
	registry.Register(1, current)
	registry.Unregister(1, stale)

	h, ok := registry.Lookup(1)
	if !ok || h != Handle(current) {
		t.Fatalf("expected the replacement handle to survive a stale unregister")
	}
}

func TestRegistryDeliver(t *testing.T) {
	registry := NewRegistry()
	h := &stubHandle{}
	registry.Register(1, h)

	if result := registry.Deliver(1, "hello"); result != Delivered {
		t.Fatalf("expected Delivered, got %v", result)
	}
	if h.sentCount() != 1 {
		t.Fatalf("expected one payload, got %d", h.sentCount())
	}
	if result := registry.Deliver(2, "hello"); result != NotConnected {
		t.Fatalf("expected NotConnected for unknown user, got %v", result)
	}
}

func TestRegistryDeliverFailureEvicts(t *testing.T) {
	registry := NewRegistry()
	h := &stubHandle{sendErr: errors.New("broken pipe")}
	registry.Register(1, h)

	if result := registry.Deliver(1, "hello"); result != Failed {
		t.Fatalf("expected Failed, got %v", result)
	}
	if !h.isClosed() {
		t.Fatalf("expected the failing handle to be closed")
	}
	if _, ok := registry.Lookup(1); ok {
		t.Fatalf("expected the failing handle to be evicted")
	}
	if result := registry.Deliver(1, "again"); result != NotConnected {
		t.Fatalf("expected NotConnected after eviction, got %v", result)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			h := &stubHandle{}
			registry.Register(userID, h)
			registry.Deliver(userID, "ping")
			registry.Unregister(userID, h)
		}(i)
	}
	wg.Wait()

	if got := len(registry.OnlineUserIDs()); got != 0 {
		t.Fatalf("expected empty registry, got %d entries", got)
	}
}
