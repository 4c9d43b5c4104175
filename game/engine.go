package game

import (
	"fmt"
	"math"
	"math/rand"
)

// Step advances the simulation by dt seconds. It is a no-op while the game
// is over or either side is not ready. Velocities are tuned per frame at
// 60 Hz, so positions integrate with dt*60.
//
// The returned repair count is the number of values that violated their
// invariant range and were clamped back (NaN ball coordinates, runaway
// velocities). A non-nil error means an unrecoverable violation: the caller
// should abort the session.
func Step(s *State, dt float64, rng *rand.Rand) (repaired int, err error) {
	if s.GameOver || !s.PlayersReady() {
		return 0, nil
	}

	// First step of a round serves the ball.
	if s.Ball.VX == 0 && s.Ball.VY == 0 {
		dir := 1.0
		if rng.Intn(2) == 0 {
			dir = -1
		}
		ResetBall(s, dir, rng)
	}

	frames := dt * 60

	s.LeftPaddle.Y = clamp(moveToward(s.LeftPaddle.Y, s.LeftTarget, PaddleSpeed*frames), 0, MaxPaddleY)
	s.RightPaddle.Y = clamp(moveToward(s.RightPaddle.Y, s.RightTarget, PaddleSpeed*frames), 0, MaxPaddleY)

	prevX, prevY := s.Ball.X, s.Ball.Y

	s.Ball.X += s.Ball.VX * frames
	s.Ball.Y += s.Ball.VY * frames

	// Top and bottom wall reflection.
	if s.Ball.Y <= 0 || s.Ball.Y >= FieldHeight-BallSize {
		s.Ball.VY = -s.Ball.VY
		s.Ball.Y = clamp(s.Ball.Y, 0, FieldHeight-BallSize)
	}

	hitLeft := sweptHit(prevX, prevY, s.Ball.X, s.Ball.Y, paddleHitbox(&s.LeftPaddle))
	hitRight := sweptHit(prevX, prevY, s.Ball.X, s.Ball.Y, paddleHitbox(&s.RightPaddle))
	if hitLeft && hitRight {
		// Both firing in one tick is not physically reachable at these
		// speeds; trust the side the ball was moving toward.
		hitLeft = s.Ball.VX < 0
		hitRight = !hitLeft
	}
	if hitLeft {
		bounceOffPaddle(s, &s.LeftPaddle, 1)
	} else if hitRight {
		bounceOffPaddle(s, &s.RightPaddle, -1)
	}

	if s.Ball.X < 0 {
		s.RightScore++
		ResetBall(s, -1, rng)
	} else if s.Ball.X > FieldWidth {
		s.LeftScore++
		ResetBall(s, 1, rng)
	}

	if s.LeftScore >= WinScore {
		s.GameOver = true
		s.Winner = WinnerLeft
	} else if s.RightScore >= WinScore {
		s.GameOver = true
		s.Winner = WinnerRight
	}

	s.Sequence++

	repaired = repairInvariants(s)
	if s.LeftScore < 0 || s.RightScore < 0 {
		return repaired, fmt.Errorf("negative score %d:%d", s.LeftScore, s.RightScore)
	}
	return repaired, nil
}

// bounceOffPaddle applies the hit response. dir is +1 when the ball leaves
// to the right (left paddle hit), -1 when it leaves to the left. The bounce
// angle scales with how far from the paddle center the ball struck; speed
// is preserved.
func bounceOffPaddle(s *State, p *Paddle, dir float64) {
	speed := math.Hypot(s.Ball.VX, s.Ball.VY)

	rel := (p.Y + PaddleHeight/2) - (s.Ball.Y + BallSize/2)
	norm := clamp(rel/(PaddleHeight/2), -1, 1)
	angle := norm * 0.8

	s.Ball.VX = dir * math.Abs(speed*math.Cos(angle))
	s.Ball.VY = -speed * math.Sin(angle)

	// Eject the ball clear of the paddle face so it cannot re-collide.
	if dir > 0 {
		s.Ball.X = p.X + PaddleWidth + 0.1
	} else {
		s.Ball.X = p.X - BallSize - 0.1
	}
}

// ResetBall centers the ball and serves it toward dir (+1 right, -1 left)
// at a shallow random angle. The RNG is injected so tests can pin the serve.
func ResetBall(s *State, dir float64, rng *rand.Rand) {
	angle := (rng.Float64()*2 - 1) * math.Pi / 8
	s.Ball.X = FieldWidth / 2
	s.Ball.Y = FieldHeight / 2
	s.Ball.VX = BallSpeed * dir * math.Cos(angle)
	s.Ball.VY = BallSpeed * math.Sin(angle)
}

// repairInvariants clamps any state value that escaped its invariant range
// and returns how many had to be fixed. NaN positions re-center the ball
// with a dead velocity; the next step re-serves it.
func repairInvariants(s *State) int {
	fixed := 0

	if math.IsNaN(s.Ball.X) || math.IsInf(s.Ball.X, 0) ||
		math.IsNaN(s.Ball.Y) || math.IsInf(s.Ball.Y, 0) ||
		math.IsNaN(s.Ball.VX) || math.IsInf(s.Ball.VX, 0) ||
		math.IsNaN(s.Ball.VY) || math.IsInf(s.Ball.VY, 0) {
		s.Ball = Ball{X: FieldWidth / 2, Y: FieldHeight / 2}
		fixed++
	}

	if v := clamp(s.Ball.VX, -MaxBallSpeed, MaxBallSpeed); v != s.Ball.VX {
		s.Ball.VX = v
		fixed++
	}
	if v := clamp(s.Ball.VY, -MaxBallSpeed, MaxBallSpeed); v != s.Ball.VY {
		s.Ball.VY = v
		fixed++
	}
	if y := clamp(s.Ball.Y, 0, FieldHeight-BallSize); y != s.Ball.Y {
		s.Ball.Y = y
		fixed++
	}
	if y := clamp(s.LeftPaddle.Y, 0, MaxPaddleY); y != s.LeftPaddle.Y {
		s.LeftPaddle.Y = y
		fixed++
	}
	if y := clamp(s.RightPaddle.Y, 0, MaxPaddleY); y != s.RightPaddle.Y {
		s.RightPaddle.Y = y
		fixed++
	}

	return fixed
}
