package server

import (
	"sync"
	"time"

	"github.com/lab1702/pong-web/game"
)

type cachedInput struct {
	targetY float64
	at      time.Time
}

// InputCache holds the latest paddle target per player until the next
// scheduler tick consumes it. Later writes win; entries expire after the
// TTL so a stalled connection cannot keep steering a paddle.
type InputCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedInput

	now func() time.Time // overridable in tests
}

func NewInputCache(ttl time.Duration) *InputCache {
	return &InputCache{
		ttl:     ttl,
		entries: make(map[string]cachedInput),
		now:     time.Now,
	}
}

// Put stores a paddle target, clamped to the field.
func (c *InputCache) Put(playerID string, targetY float64) {
	if targetY < 0 {
		targetY = 0
	} else if targetY > game.MaxPaddleY {
		targetY = game.MaxPaddleY
	}

	c.mu.Lock()
	c.entries[playerID] = cachedInput{targetY: targetY, at: c.now()}
	c.mu.Unlock()
}

// Take consumes the pending targets for both players of a session. Expired
// entries are treated as absent.
func (c *InputCache) Take(player1, player2 string) (y1 float64, ok1 bool, y2 float64, ok2 bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)

	if e, ok := c.entries[player1]; ok {
		delete(c.entries, player1)
		if e.at.After(cutoff) {
			y1, ok1 = e.targetY, true
		}
	}
	if e, ok := c.entries[player2]; ok {
		delete(c.entries, player2)
		if e.at.After(cutoff) {
			y2, ok2 = e.targetY, true
		}
	}
	return y1, ok1, y2, ok2
}

// Forget drops any pending input for a player, used on disconnect.
func (c *InputCache) Forget(playerID string) {
	c.mu.Lock()
	delete(c.entries, playerID)
	c.mu.Unlock()
}
