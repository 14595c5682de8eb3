package service

import (
	"sync"
	"time"
)

// PostingGuard enforces a per-key cooldown between submissions. A zero
// cooldown disables it.
type PostingGuard struct {
	mu       sync.Mutex
	cooldown time.Duration
	until    map[string]time.Time
	now      func() time.Time
}

func NewPostingGuard(cooldown time.Duration) *PostingGuard {
	return &PostingGuard{
		cooldown: cooldown,
		until:    make(map[string]time.Time),
		now:      time.Now,
	}
}

// Reserve records a submission attempt for key. It reports false while key
// is still inside the cooldown window of its previous attempt.
func (g *PostingGuard) Reserve(key string) bool {
	if g.cooldown <= 0 || key == "" {
		return true
	}

	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if until, ok := g.until[key]; ok && until.After(now) {
		return false
	}
	g.until[key] = now.Add(g.cooldown)
	g.clean(now)
	return true
}

func (g *PostingGuard) clean(now time.Time) {
	for key, until := range g.until {
		if until.Before(now) {
			delete(g.until, key)
		}
	}
}
