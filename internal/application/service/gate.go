package service

import "sync"

// busyGate admits one caller per key
type busyGate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newBusyGate() *busyGate {
	return &busyGate{busy: make(map[string]struct{})}
}

// acquire returns false when key is already held
func (g *busyGate) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return false
	}
	g.busy[key] = struct{}{}
	return true
}

func (g *busyGate) release(key string) {
	g.mu.Lock()
	delete(g.busy, key)
	g.mu.Unlock()
}
