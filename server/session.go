package server

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/lab1702/pong-web/game"
)

// BotPrefix marks the second player of a session as server-controlled.
// Bot ids never correspond to a connection.
const BotPrefix = "bot_"

var ErrPlayerBusy = errors.New("player already has an active session")

// Session pairs two participants with their authoritative game state.
// Player1 is always the left paddle and always a real connection; Player2
// is the right paddle and may be a bot.
//
// The mutex guards State and the session-local bookkeeping. It is held for
// the full duration of a scheduler step or a hub mutation, and never across
// a network send. Holding two session locks at once is forbidden.
type Session struct {
	ID      string
	Player1 string
	Player2 string

	mu    sync.Mutex
	State *game.State

	// rng drives serves for this session so replays are deterministic
	// given the seed.
	rng *rand.Rand

	LastUpdate time.Time

	lastClientSync time.Time
	started        bool // GameStarted already emitted
}

// SessionID derives the session key from the pair of player ids. The pair
// is ordered lexicographically so both orderings produce the same id.
func SessionID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// NewSession creates a session for the given pair, seeded from seed.
func NewSession(player1, player2 string, seed int64) *Session {
	return &Session{
		ID:         SessionID(player1, player2),
		Player1:    player1,
		Player2:    player2,
		State:      game.NewState(),
		rng:        rand.New(rand.NewSource(seed)),
		LastUpdate: time.Now(),
	}
}

// IsBotMatch reports whether the right side is server-controlled.
func (s *Session) IsBotMatch() bool {
	return strings.HasPrefix(s.Player2, BotPrefix)
}

// Opponent returns the other participant's id.
func (s *Session) Opponent(playerID string) (string, bool) {
	switch playerID {
	case s.Player1:
		return s.Player2, true
	case s.Player2:
		return s.Player1, true
	}
	return "", false
}

// Side returns 1 for the left player, 2 for the right, 0 for strangers.
func (s *Session) Side(playerID string) int {
	switch playerID {
	case s.Player1:
		return 1
	case s.Player2:
		return 2
	}
	return 0
}

// SessionStore is the in-process registry of live sessions. It is the
// authoritative owner: once a session is removed here it is gone. A
// playerID index gives O(1) lookup on the input hot path without a
// coordination store round trip.
//
// Lock order: the store lock is never taken while holding a session lock.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byPlayer map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]string),
	}
}

// Create registers a session. It fails if either participant is already in
// an active session.
func (st *SessionStore) Create(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, busy := st.byPlayer[s.Player1]; busy {
		return ErrPlayerBusy
	}
	if _, busy := st.byPlayer[s.Player2]; busy {
		return ErrPlayerBusy
	}

	st.sessions[s.ID] = s
	st.byPlayer[s.Player1] = s.ID
	st.byPlayer[s.Player2] = s.ID
	return nil
}

// GetByPlayer looks a session up through the player index.
func (st *SessionStore) GetByPlayer(playerID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	id, ok := st.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	s, ok := st.sessions[id]
	return s, ok
}

// GetByID looks a session up by its id.
func (st *SessionStore) GetByID(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	return s, ok
}

// Update marks the session as freshly written. Sessions live in process
// memory, so there is nothing to write back; this keeps the update
// timestamp honest and is a no-op for removed sessions.
func (st *SessionStore) Update(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[s.ID]; ok {
		s.LastUpdate = time.Now()
	}
}

// Remove drops a session and its index entries. Idempotent.
func (st *SessionStore) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return
	}
	delete(st.sessions, id)
	delete(st.byPlayer, s.Player1)
	delete(st.byPlayer, s.Player2)
}

// Snapshot returns a caller-owned slice of the live sessions, safe to
// iterate without the store lock.
func (st *SessionStore) Snapshot() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of active (not game-over) sessions.
func (st *SessionStore) Count() int {
	n := 0
	for _, s := range st.Snapshot() {
		s.mu.Lock()
		if !s.State.GameOver {
			n++
		}
		s.mu.Unlock()
	}
	return n
}
