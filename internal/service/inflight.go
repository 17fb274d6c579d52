package service

import "sync"

// inflightGuard rejects re-entry into a suspension point for a given session,
// even when the caller's UI failed to disable the action. Purely in-process;
// cross-restart idempotency is the repository's finalized marker.
type inflightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{active: make(map[string]struct{})}
}

func (g *inflightGuard) tryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[sessionID]; ok {
		return false
	}
	g.active[sessionID] = struct{}{}
	return true
}

func (g *inflightGuard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, sessionID)
}
