package server

import "time"

// Broadcaster delivers a named message to one connection. Sends are
// best-effort and fire-and-forget: a lost state update is superseded by
// the next tick, so nothing here blocks the caller.
type Broadcaster interface {
	Send(playerID, msgType string, data interface{})
}

// Retry budget for a full client send buffer. After the budget is spent
// the message is dropped and logged.
var sendBackoff = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

// Send implements Broadcaster on the hub. Unknown ids (bots, players who
// already disconnected) are silently ignored.
func (s *Server) Send(playerID, msgType string, data interface{}) {
	s.mu.RLock()
	client, ok := s.clients[playerID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	msg := ServerMessage{Type: msgType, Data: data}

	select {
	case client.send <- msg:
		return
	default:
	}

	// Buffer full: hand the retry budget to a goroutine so the scheduler
	// and hub never wait on a slow consumer.
	go func() {
		for _, wait := range sendBackoff {
			time.Sleep(wait)
			select {
			case client.send <- msg:
				return
			default:
			}
		}
		s.log.Warn().
			Str("player", playerID).
			Str("msg", msgType).
			Msg("send buffer full, dropping message")
	}()
}
