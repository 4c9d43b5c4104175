package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lab1702/pong-web/game"
)

// memoryQueue is an in-process MatchQueue with the same semantics as the
// redis implementation, including the duplicate sweep on pop and the
// push-back when only one player is waiting. pingErr simulates a dead
// coordination store.
type memoryQueue struct {
	mu      sync.Mutex
	items   []string
	pingErr error
}

func (q *memoryQueue) Enqueue(_ context.Context, playerID string) error {
	if q.pingErr != nil {
		return q.pingErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(playerID)
	q.items = append(q.items, playerID)
	return nil
}

func (q *memoryQueue) Remove(_ context.Context, playerID string) error {
	if q.pingErr != nil {
		return q.pingErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(playerID)
	return nil
}

func (q *memoryQueue) removeLocked(playerID string) {
	kept := q.items[:0]
	for _, id := range q.items {
		if id != playerID {
			kept = append(kept, id)
		}
	}
	q.items = kept
}

func (q *memoryQueue) PairPop(_ context.Context) (string, string, bool, error) {
	if q.pingErr != nil {
		return "", "", false, q.pingErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", "", false, nil
	}
	a := q.items[0]
	q.items = q.items[1:]
	q.removeLocked(a)
	if len(q.items) == 0 {
		q.items = []string{a}
		return "", "", false, nil
	}
	b := q.items[0]
	q.items = q.items[1:]
	q.removeLocked(b)
	return a, b, true, nil
}

func (q *memoryQueue) Depth(_ context.Context) (int64, error) {
	if q.pingErr != nil {
		return 0, q.pingErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *memoryQueue) Ping(_ context.Context) error {
	return q.pingErr
}

// sentMessage is one recorded Broadcaster.Send call. State is a deep copy
// taken at send time so later engine steps cannot rewrite history.
type sentMessage struct {
	PlayerID string
	Type     string
	State    *game.State
	Data     interface{}
}

// recorder captures broadcasts for scheduler tests.
type recorder struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recorder) Send(playerID, msgType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := sentMessage{PlayerID: playerID, Type: msgType, Data: data}
	if st, ok := data.(*game.State); ok {
		copied := *st
		m.State = &copied
	}
	r.sent = append(r.sent, m)
}

func (r *recorder) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMessage(nil), r.sent...)
}

func (r *recorder) byPlayer(playerID string) []sentMessage {
	var out []sentMessage
	for _, m := range r.messages() {
		if m.PlayerID == playerID {
			out = append(out, m)
		}
	}
	return out
}

// newTestServer builds a hub on an in-memory queue with no real transport.
func newTestServer(t *testing.T) (*Server, *memoryQueue) {
	t.Helper()
	queue := &memoryQueue{}
	cfg := DefaultConfig()
	s := NewServer(NewSessionStore(), NewInputCache(cfg.InputTTL), queue, cfg, zerolog.Nop())
	return s, queue
}

// addClient registers a connection-less client so handlers and Send work
// against a plain channel.
func addClient(s *Server, playerID string) *Client {
	c := &Client{
		PlayerID:     playerID,
		send:         make(chan ServerMessage, sendBufferSize),
		done:         make(chan struct{}),
		server:       s,
		inputLimiter: rate.NewLimiter(inputRate, inputBurst),
	}
	s.mu.Lock()
	s.clients[playerID] = c
	s.mu.Unlock()
	return c
}

// recvMsg pops the next queued message for a client.
func recvMsg(t *testing.T, c *Client) ServerMessage {
	t.Helper()
	select {
	case m := <-c.send:
		return m
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.PlayerID)
		return ServerMessage{}
	}
}

// assertNoMsg verifies the client's outbound queue is empty.
func assertNoMsg(t *testing.T, c *Client) {
	t.Helper()
	select {
	case m := <-c.send:
		t.Fatalf("unexpected message for %s: %s", c.PlayerID, m.Type)
	default:
	}
}
