package server

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab1702/pong-web/game"
)

func newTestScheduler(t *testing.T) (*Scheduler, *SessionStore, *InputCache, *recorder) {
	t.Helper()
	cfg := DefaultConfig()
	store := NewSessionStore()
	inputs := NewInputCache(cfg.InputTTL)
	rec := &recorder{}
	sc := NewScheduler(store, inputs, rec, cfg, zerolog.Nop())
	return sc, store, inputs, rec
}

// readySession creates a session with both sides confirmed, as the hub
// leaves it once RequestStartGame has been exchanged.
func readySession(t *testing.T, store *SessionStore, p1, p2 string) *Session {
	t.Helper()
	sess := NewSession(p1, p2, 42)
	sess.State.LeftReady = true
	sess.State.RightReady = true
	sess.started = true
	require.NoError(t, store.Create(sess))
	return sess
}

func lastUpdate(t *testing.T, rec *recorder, playerID string) *game.State {
	t.Helper()
	msgs := rec.byPlayer(playerID)
	require.NotEmpty(t, msgs, "expected at least one message for %s", playerID)
	last := msgs[len(msgs)-1]
	require.Equal(t, MsgTypeGameUpdate, last.Type)
	require.NotNil(t, last.State)
	return last.State
}

func TestStepAppliesCachedInputs(t *testing.T) {
	sc, store, inputs, _ := newTestScheduler(t)
	sess := readySession(t, store, "A", "B")

	inputs.Put("A", 100)
	inputs.Put("B", 480)

	sc.stepSession(sess, time.Now())

	assert.Equal(t, 100.0, sess.State.LeftTarget)
	assert.Equal(t, 480.0, sess.State.RightTarget)
	assert.Less(t, sess.State.LeftPaddle.Y, 250.0, "left paddle should converge down toward 100")
	assert.Greater(t, sess.State.RightPaddle.Y, 250.0, "right paddle should converge up toward 480")

	// Inputs are consumed: the next tick keeps the same targets.
	sc.stepSession(sess, time.Now())
	assert.Equal(t, 100.0, sess.State.LeftTarget)
	assert.Equal(t, 480.0, sess.State.RightTarget)
}

func TestStepBroadcastsMonotonicSequence(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	sc.cfg.ClientSync = 0 // every motion tick goes out
	sess := readySession(t, store, "A", "B")

	now := time.Now()
	for i := 0; i < 5; i++ {
		sc.stepSession(sess, now.Add(time.Duration(i)*sc.cfg.BaseTick))
	}

	for _, player := range []string{"A", "B"} {
		msgs := rec.byPlayer(player)
		require.Len(t, msgs, 5)
		var prev uint64
		for _, m := range msgs {
			require.Equal(t, MsgTypeGameUpdate, m.Type)
			assert.Greater(t, m.State.Sequence, prev)
			prev = m.State.Sequence
		}
	}
}

func TestStepThrottlesMotionOnlyUpdates(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	sess := readySession(t, store, "A", "B")

	base := time.Now()
	sess.lastClientSync = base

	sc.stepSession(sess, base.Add(10*time.Millisecond))
	assert.Empty(t, rec.byPlayer("A"), "inside the sync window nothing goes out")

	sc.stepSession(sess, base.Add(sc.cfg.ClientSync+10*time.Millisecond))
	assert.Len(t, rec.byPlayer("A"), 1)
	assert.Len(t, rec.byPlayer("B"), 1)
}

func TestStepScoreGoesOutImmediately(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	sess := readySession(t, store, "A", "B")

	// Ball about to leave past the left edge, left paddle parked elsewhere.
	now := time.Now()
	sess.lastClientSync = now // throttle window is closed
	sess.State.Ball = game.Ball{X: 5, Y: 300, VX: -game.BallSpeed, VY: 0}
	sess.State.LeftPaddle.Y = 0
	sess.State.LeftTarget = 0

	sc.stepSession(sess, now)

	st := lastUpdate(t, rec, "A")
	assert.Equal(t, 1, st.RightScore, "right side scores when the ball exits left")
	assert.Equal(t, 0, st.LeftScore)
	assert.Equal(t, game.FieldWidth/2, st.Ball.X, "ball resets to center after a point")
	assert.False(t, st.GameOver)

	_, ok := store.GetByID(sess.ID)
	assert.True(t, ok, "session keeps running after a normal point")
}

func TestStepGameOverBroadcastsThenRemoves(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	sess := readySession(t, store, "A", "B")

	sess.State.RightScore = game.WinScore - 1
	sess.State.Ball = game.Ball{X: 5, Y: 300, VX: -game.BallSpeed, VY: 0}
	sess.State.LeftPaddle.Y = 0
	sess.State.LeftTarget = 0

	sc.stepSession(sess, time.Now())

	for _, player := range []string{"A", "B"} {
		st := lastUpdate(t, rec, player)
		assert.True(t, st.GameOver)
		assert.Equal(t, game.WinnerRight, st.Winner)
		assert.Equal(t, game.WinScore, st.RightScore)
	}

	_, ok := store.GetByID(sess.ID)
	assert.False(t, ok, "finished session leaves the store")
	_, ok = store.GetByPlayer("A")
	assert.False(t, ok, "players are free for a new match")
}

func TestStepDrivesBotPaddle(t *testing.T) {
	sc, store, inputs, rec := newTestScheduler(t)
	sess := readySession(t, store, "A", BotPrefix+"1")

	// Cached input for the bot id must never steer the bot paddle.
	inputs.Put(sess.Player2, 480)
	sess.State.Ball = game.Ball{X: 400, Y: 100, VX: game.BallSpeed, VY: 0}

	sc.stepSession(sess, time.Now())

	assert.InDelta(t, 250-game.PaddleSpeed*game.BotSpeedFactor, sess.State.RightTarget, 0.001,
		"bot target steps toward the predicted intercept at bot speed")

	// Bot matches broadcast to the human only.
	assert.NotEmpty(t, rec.byPlayer("A"))
	assert.Empty(t, rec.byPlayer(sess.Player2))
}

func TestStepIdlesUntilBothReady(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	sess := NewSession("A", "B", 42)
	sess.State.LeftReady = true
	require.NoError(t, store.Create(sess))

	sc.stepSession(sess, time.Now())

	assert.Empty(t, rec.messages())
	assert.Equal(t, uint64(0), sess.State.Sequence)
	_, ok := store.GetByID(sess.ID)
	assert.True(t, ok)
}

func TestStepFlushesAlreadyFinishedSession(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	sess := readySession(t, store, "A", "B")
	sess.State.GameOver = true
	sess.State.Winner = game.WinnerLeft

	sc.stepSession(sess, time.Now())

	st := lastUpdate(t, rec, "B")
	assert.True(t, st.GameOver)
	assert.Equal(t, game.WinnerLeft, st.Winner)

	_, ok := store.GetByID(sess.ID)
	assert.False(t, ok)
}

func TestDrainEndsEveryGameNeutrally(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	readySession(t, store, "A", "B")
	readySession(t, store, "C", BotPrefix+"9")

	sc.drain()

	for _, player := range []string{"A", "B", "C"} {
		st := lastUpdate(t, rec, player)
		assert.True(t, st.GameOver)
		assert.Equal(t, game.WinnerNone, st.Winner, "drained games have no winner")
	}
	assert.Empty(t, store.Snapshot())
}

func TestIntervalAdaptsToLoad(t *testing.T) {
	sc, store, _, _ := newTestScheduler(t)

	assert.Equal(t, sc.cfg.IdleTick, sc.interval())

	readySession(t, store, "A", "B")
	assert.Equal(t, sc.cfg.LightTick, sc.interval())

	readySession(t, store, "C", "D")
	readySession(t, store, "E", "F")
	assert.Equal(t, sc.cfg.BaseTick, sc.interval())
}

func TestStopDrainsAndReturns(t *testing.T) {
	sc, store, _, rec := newTestScheduler(t)
	sc.cfg.IdleTick = 5 * time.Millisecond
	readySession(t, store, "A", "B")

	go sc.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sc.Stop(ctx))

	st := lastUpdate(t, rec, "A")
	assert.True(t, st.GameOver)
	assert.Empty(t, store.Snapshot())

	// Stop is idempotent.
	require.NoError(t, sc.Stop(ctx))
}
