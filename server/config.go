package server

import "time"

// Config holds server tuning. Zero values are filled by DefaultConfig; the
// tick settings exist so load tests can slow the world down, not for
// gameplay tuning.
type Config struct {
	// RedisAddr is the coordination store (host:port). Matchmaking pairs
	// players across instances through it; game state never touches it.
	RedisAddr     string
	RedisPassword string

	// AllowedOrigins are extra origins accepted for websocket upgrades,
	// on top of same-origin and localhost.
	AllowedOrigins []string

	// BaseTick is the scheduler cadence with three or more active games.
	// LightTick applies below that, IdleTick with none at all, and
	// ErrorTick is the one-cycle backoff after an internal error.
	BaseTick  time.Duration
	LightTick time.Duration
	IdleTick  time.Duration
	ErrorTick time.Duration

	// ClientSync caps how often motion-only updates go out per session.
	// Critical updates (scores, game over) always go out immediately.
	ClientSync time.Duration

	// InputTTL is how long a cached paddle input stays valid.
	InputTTL time.Duration

	// QueueKey is the redis key holding the matchmaking queue.
	QueueKey string
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		RedisAddr:  "localhost:6379",
		BaseTick:   33 * time.Millisecond,
		LightTick:  66 * time.Millisecond,
		IdleTick:   500 * time.Millisecond,
		ErrorTick:  100 * time.Millisecond,
		ClientSync: 100 * time.Millisecond,
		InputTTL:   5 * time.Second,
		QueueKey:   "pong:matchqueue",
	}
}
