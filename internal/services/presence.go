package services

import "sync"

// Handle is a live connection to one user.
type Handle interface {
	Send(msg WebSocketMessage) error
	Close()
}

// PresenceRegistry maps each connected user to their single live handle.
type PresenceRegistry interface {
	// Set installs h for userID and returns the handle it replaced, if any.
	Set(userID uint, h Handle) Handle
	Get(userID uint) (Handle, bool)
	// Remove deletes the entry only while h is still the current handle.
	Remove(userID uint, h Handle) bool
	Others(exceptUserID uint) []Handle
	Online(userID uint) bool
	Count() int
}

type MemoryPresence struct {
	mu      sync.RWMutex
	handles map[uint]Handle
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{handles: make(map[uint]Handle)}
}

func (p *MemoryPresence) Set(userID uint, h Handle) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.handles[userID]
	p.handles[userID] = h
	return previous
}

func (p *MemoryPresence) Get(userID uint) (Handle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handles[userID]
	return h, ok
}

func (p *MemoryPresence) Remove(userID uint, h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.handles[userID]; !ok || current != h {
		return false
	}
	delete(p.handles, userID)
	return true
}

func (p *MemoryPresence) Others(exceptUserID uint) []Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Handle, 0, len(p.handles))
	for id, h := range p.handles {
		if id != exceptUserID {
			out = append(out, h)
		}
	}
	return out
}

func (p *MemoryPresence) Online(userID uint) bool {
	_, ok := p.Get(userID)
	return ok
}

func (p *MemoryPresence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}
