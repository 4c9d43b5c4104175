package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lab1702/pong-web/game"
)

// queueOpTimeout bounds each coordination store round trip so a stalled
// store cannot pin a handler goroutine.
const queueOpTimeout = 2 * time.Second

func queueContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), queueOpTimeout)
}

// handleJoinMatchmaking enqueues the player and tries to form a pair. The
// pop is atomic on the coordination store, so two instances can race on the
// same queue safely.
func (s *Server) handleJoinMatchmaking(c *Client) {
	if _, busy := s.store.GetByPlayer(c.PlayerID); busy {
		s.Send(c.PlayerID, MsgTypeAlreadyInGame, nil)
		return
	}

	ctx, cancel := queueContext()
	defer cancel()

	if err := s.queue.Enqueue(ctx, c.PlayerID); err != nil {
		s.log.Warn().Err(err).Str("player", c.PlayerID).Msg("matchmaking enqueue failed")
		return
	}

	a, b, ok, err := s.queue.PairPop(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("player", c.PlayerID).Msg("matchmaking pop failed")
		return
	}
	if !ok {
		s.Send(c.PlayerID, MsgTypeWaitingForOpponent, nil)
		return
	}

	sess := NewSession(a, b, time.Now().UnixNano())
	if err := s.store.Create(sess); err != nil {
		// One of the pair got a session since enqueueing (another
		// instance, or a bot match). Put them back and let the caller
		// keep waiting.
		s.log.Warn().Err(err).Str("session", sess.ID).Msg("pairing lost the race, re-enqueueing")
		if err := s.queue.Enqueue(ctx, a); err != nil {
			s.log.Warn().Err(err).Str("player", a).Msg("re-enqueue failed")
		}
		if err := s.queue.Enqueue(ctx, b); err != nil {
			s.log.Warn().Err(err).Str("player", b).Msg("re-enqueue failed")
		}
		s.Send(c.PlayerID, MsgTypeWaitingForOpponent, nil)
		return
	}

	s.log.Info().
		Str("session", sess.ID).
		Str("left", a).
		Str("right", b).
		Msg("match created")

	s.Send(a, MsgTypeMatchFound, MatchFoundData{Opponent: b, Side: 1})
	s.Send(b, MsgTypeMatchFound, MatchFoundData{Opponent: a, Side: 2})
}

// handleStartBotMatch creates a session against a server bot. Bots need no
// connection and no readiness handshake, so the game starts on the next
// tick. The coordination store is not involved: bot matches keep working
// when it is down.
func (s *Server) handleStartBotMatch(c *Client) {
	if _, busy := s.store.GetByPlayer(c.PlayerID); busy {
		s.Send(c.PlayerID, MsgTypeAlreadyInGame, nil)
		return
	}

	botID := BotPrefix + uuid.NewString()
	sess := NewSession(c.PlayerID, botID, time.Now().UnixNano())
	sess.State.LeftReady = true
	sess.State.RightReady = true
	sess.started = true

	if err := s.store.Create(sess); err != nil {
		s.Send(c.PlayerID, MsgTypeAlreadyInGame, nil)
		return
	}

	s.log.Info().Str("session", sess.ID).Str("player", c.PlayerID).Msg("bot match created")
	s.Send(c.PlayerID, MsgTypeMatchFound, MatchFoundData{Opponent: "Bot", Side: 1, IsBot: true})
}

// handleSendPaddleInput caches the caller's paddle target for the next tick
// and echoes it to a real opponent as a rendering hint. Out-of-range values
// are clamped, floods are dropped; either way the server stays
// authoritative.
func (s *Server) handleSendPaddleInput(c *Client, data json.RawMessage) {
	if !c.inputLimiter.Allow() {
		s.log.Debug().Str("player", c.PlayerID).Msg("paddle input throttled")
		return
	}

	var input PaddleInputData
	if err := json.Unmarshal(data, &input); err != nil {
		s.log.Debug().Err(err).Str("player", c.PlayerID).Msg("bad paddle input")
		return
	}

	sess, ok := s.store.GetByPlayer(c.PlayerID)
	if !ok {
		return
	}

	s.inputs.Put(c.PlayerID, input.TargetY)

	if opponent, ok := sess.Opponent(c.PlayerID); ok && !sess.IsBotMatch() {
		s.Send(opponent, MsgTypeOpponentPaddleInput, PaddleInputData{TargetY: input.TargetY})
	}
}

// handleRequestStartGame flags the caller ready; when both sides are, the
// game is started exactly once. Bot sessions are born ready, so this is a
// no-op for them.
func (s *Server) handleRequestStartGame(c *Client) {
	sess, ok := s.store.GetByPlayer(c.PlayerID)
	if !ok {
		return
	}

	sess.mu.Lock()
	switch sess.Side(c.PlayerID) {
	case 1:
		sess.State.LeftReady = true
	case 2:
		sess.State.RightReady = true
	}
	announce := sess.State.PlayersReady() && !sess.started
	if announce {
		sess.started = true
	}
	sess.mu.Unlock()

	if announce {
		s.store.Update(sess)
		s.log.Info().Str("session", sess.ID).Msg("game started")
		s.Send(sess.Player1, MsgTypeGameStarted, nil)
		if !sess.IsBotMatch() {
			s.Send(sess.Player2, MsgTypeGameStarted, nil)
		}
	}
}

// handleKeepAlive answers with the server clock.
func (s *Server) handleKeepAlive(c *Client) {
	s.Send(c.PlayerID, MsgTypePong, PongData{Timestamp: time.Now().UTC()})
}

// handleDisconnect forfeits the player's game and clears them from the
// matchmaking queue. Safe to call more than once: the second call finds
// neither a queue entry nor a session.
func (s *Server) handleDisconnect(playerID string) {
	ctx, cancel := queueContext()
	defer cancel()
	if err := s.queue.Remove(ctx, playerID); err != nil {
		s.log.Warn().Err(err).Str("player", playerID).Msg("queue remove on disconnect failed")
	}

	s.inputs.Forget(playerID)

	sess, ok := s.store.GetByPlayer(playerID)
	if !ok {
		return
	}

	sess.mu.Lock()
	alreadyOver := sess.State.GameOver
	if !alreadyOver {
		sess.State.GameOver = true
		if sess.Side(playerID) == 1 {
			sess.State.Winner = game.WinnerRight
		} else {
			sess.State.Winner = game.WinnerLeft
		}
		sess.State.Sequence++
	}
	payload := *sess.State
	opponent, hasOpponent := sess.Opponent(playerID)
	notify := hasOpponent && !sess.IsBotMatch() && !alreadyOver
	sess.mu.Unlock()

	s.store.Update(sess)
	if notify {
		s.Send(opponent, MsgTypeOpponentDisconnected, &payload)
	}
	s.store.Remove(sess.ID)

	s.log.Info().
		Str("session", sess.ID).
		Str("player", playerID).
		Msg("session forfeited on disconnect")
}
