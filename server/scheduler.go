package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lab1702/pong-web/game"
)

// Scheduler drives every active session from one cooperative loop. Physics
// advances by a fixed delta regardless of wall clock: a late tick simulates
// slower, never in bigger steps. The cadence adapts to load so an idle
// process barely wakes up.
type Scheduler struct {
	store  *SessionStore
	inputs *InputCache
	bc     Broadcaster
	cfg    Config
	log    zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	lastStats time.Time
}

// statsEvery is the cadence of the debug stats line.
const statsEvery = 5 * time.Second

func NewScheduler(store *SessionStore, inputs *InputCache, bc Broadcaster, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		inputs: inputs,
		bc:     bc,
		cfg:    cfg,
		log:    log.With().Str("component", "scheduler").Logger(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run is the tick loop. It returns after Stop, once the final drain tick
// has gone out.
func (sc *Scheduler) Run() {
	defer close(sc.done)

	timer := time.NewTimer(sc.cfg.BaseTick)
	defer timer.Stop()

	for {
		select {
		case <-sc.stop:
			sc.drain()
			return
		case <-timer.C:
		}

		interval := sc.interval()
		if err := sc.tick(); err != nil {
			sc.log.Error().Err(err).Msg("tick failed, backing off one cycle")
			interval = sc.cfg.ErrorTick
		}
		timer.Reset(interval)
	}
}

// Stop signals shutdown and waits for the loop to drain, up to the context
// deadline.
func (sc *Scheduler) Stop(ctx context.Context) error {
	sc.stopOnce.Do(func() { close(sc.stop) })
	select {
	case <-sc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// interval picks the cadence for the next cycle from current load.
func (sc *Scheduler) interval() time.Duration {
	switch n := sc.store.Count(); {
	case n == 0:
		return sc.cfg.IdleTick
	case n < 3:
		return sc.cfg.LightTick
	default:
		return sc.cfg.BaseTick
	}
}

// tick advances every session one step. A panic in a single session is
// contained here so one corrupt game cannot take the loop down.
func (sc *Scheduler) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			sc.log.Error().Interface("panic", r).Msg("tick panicked")
			err = errTickPanicked
		}
	}()

	now := time.Now()
	snapshot := sc.store.Snapshot()
	for _, sess := range snapshot {
		sc.stepSession(sess, now)
	}

	if now.Sub(sc.lastStats) >= statsEvery {
		sc.lastStats = now
		sc.log.Debug().Int("sessions", len(snapshot)).Int("active", sc.store.Count()).Msg("tick stats")
	}
	return nil
}

type tickError string

func (e tickError) Error() string { return string(e) }

const errTickPanicked = tickError("tick panicked")

// stepSession applies pending inputs, advances the state and broadcasts
// per the change class: critical changes (score, game over) go out
// immediately, motion is throttled to the client sync cadence. The session
// lock is released before any send.
func (sc *Scheduler) stepSession(sess *Session, now time.Time) {
	sess.mu.Lock()

	st := sess.State
	changed := false

	if !st.GameOver && st.PlayersReady() {
		y1, ok1, y2, ok2 := sc.inputs.Take(sess.Player1, sess.Player2)
		if ok1 {
			st.LeftTarget = y1
		}
		if ok2 && !sess.IsBotMatch() {
			st.RightTarget = y2
		}
		if sess.IsBotMatch() {
			game.UpdateBotTarget(st)
		}

		pre := *st
		repaired, err := game.Step(st, game.DeltaTime, sess.rng)
		if repaired > 0 {
			sc.log.Error().
				Str("session", sess.ID).
				Int("repaired", repaired).
				Msg("engine invariants clamped")
		}
		if err != nil {
			// Unrecoverable state: abort the session as a draw.
			sc.log.Error().Err(err).Str("session", sess.ID).Msg("aborting corrupt session")
			st.GameOver = true
			st.Winner = game.WinnerNone
			st.Sequence++
		}

		critical := st.LeftScore != pre.LeftScore ||
			st.RightScore != pre.RightScore ||
			st.GameOver != pre.GameOver
		motion := st.Ball != pre.Ball ||
			st.LeftPaddle != pre.LeftPaddle ||
			st.RightPaddle != pre.RightPaddle
		changed = critical || motion

		sendUpdate := critical
		if !sendUpdate && motion && now.Sub(sess.lastClientSync) >= sc.cfg.ClientSync {
			sendUpdate = true
		}
		if sendUpdate {
			sess.lastClientSync = now
		}

		finished := st.GameOver
		var payload game.State
		if sendUpdate || finished {
			payload = *st
		}
		sess.mu.Unlock()

		if changed {
			sc.store.Update(sess)
		}
		if sendUpdate || finished {
			sc.broadcastState(sess, &payload)
		}
		if finished {
			sc.store.Remove(sess.ID)
		}
		return
	}

	// Game already over before this tick (e.g. a disconnect forfeit that
	// raced the removal): one final broadcast, then drop it.
	finished := st.GameOver
	var payload game.State
	if finished {
		payload = *st
	}
	sess.mu.Unlock()

	if finished {
		sc.broadcastState(sess, &payload)
		sc.store.Remove(sess.ID)
	}
}

// broadcastState fans a state copy out to the real players of a session.
func (sc *Scheduler) broadcastState(sess *Session, st *game.State) {
	sc.bc.Send(sess.Player1, MsgTypeGameUpdate, st)
	if !sess.IsBotMatch() {
		sc.bc.Send(sess.Player2, MsgTypeGameUpdate, st)
	}
}

// drain runs one last tick, then flips every surviving session to a
// neutral game over and tells the players. Called on shutdown only.
func (sc *Scheduler) drain() {
	if err := sc.tick(); err != nil {
		sc.log.Error().Err(err).Msg("drain tick failed")
	}

	for _, sess := range sc.store.Snapshot() {
		sess.mu.Lock()
		if !sess.State.GameOver {
			sess.State.GameOver = true
			sess.State.Winner = game.WinnerNone
			sess.State.Sequence++
		}
		payload := *sess.State
		sess.mu.Unlock()

		sc.broadcastState(sess, &payload)
		sc.store.Remove(sess.ID)
	}

	sc.log.Info().Msg("scheduler drained")
}
