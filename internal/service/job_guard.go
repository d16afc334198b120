package service

import (
	"context"
	"sync"
)

// ExportedJobGuard is an exported alias so _test packages can test the guard.
type ExportedJobGuard = jobGuard

// ─────────────────────────────────────────────────────────────
// jobGuard: one holder per key, with waiters
// ─────────────────────────────────────────────────────────────

// jobGuard lets at most one job hold a key (a job name or a page id) at a
// time. Other goroutines can wait for a key to be released, or for every
// held key.
type jobGuard struct {
	mu      sync.Mutex
	running map[string]chan struct{}
	wg      sync.WaitGroup
}

// TryLock marks key as held. It reports false if key is already held.
func (g *jobGuard) TryLock(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]chan struct{})
	}
	if _, ok := g.running[key]; ok {
		return false
	}
	g.running[key] = make(chan struct{})
	g.wg.Add(1)
	return true
}

// Unlock releases key and wakes its waiters. Must follow a successful TryLock.
func (g *jobGuard) Unlock(key string) {
	g.mu.Lock()
	done, ok := g.running[key]
	delete(g.running, key)
	g.mu.Unlock()
	if ok {
		close(done)
		g.wg.Done()
	}
}

// Held reports whether key is currently held.
func (g *jobGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[key]
	return ok
}

// Wait blocks until key is released or ctx is done.
func (g *jobGuard) Wait(ctx context.Context, key string) error {
	g.mu.Lock()
	done, ok := g.running[key]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll blocks until every held key is released or ctx is done.
func (g *jobGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
