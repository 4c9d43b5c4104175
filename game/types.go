package game

import "time"

// Field and physics constants. Coordinates are pixels in a fixed 800x600
// play field with the origin at the top left; velocities are pixels per
// frame at 60 Hz.
const (
	FieldWidth  = 800.0
	FieldHeight = 600.0

	PaddleHeight = 100.0
	PaddleWidth  = 16.0
	PaddleSpeed  = 6.0 // pixels per frame a paddle converges toward its target

	BallSize  = 16.0
	BallSpeed = 6.0

	// MaxBallSpeed bounds both velocity components. Bounces preserve speed,
	// so this is headroom for invariant clamping, not a gameplay cap.
	MaxBallSpeed = 2 * BallSpeed

	// CollisionBuffer expands the paddle hitbox so grazing hits register.
	CollisionBuffer = 4.0

	BotSpeedFactor = 0.85

	WinScore = 5

	LeftPaddleX  = 0.0
	RightPaddleX = FieldWidth - PaddleWidth

	// MaxPaddleY is the lowest position the top of a paddle can take.
	MaxPaddleY = FieldHeight - PaddleHeight
)

// Winner values for a finished game.
const (
	WinnerNone  = 0 // aborted or drained, nobody won
	WinnerLeft  = 1
	WinnerRight = 2
)

// Game timing
const (
	BaseTick       = 33 * time.Millisecond  // ~30 Hz simulation
	ClientSyncTick = 100 * time.Millisecond // cadence of motion-only client updates
	DeltaTime      = 0.033                  // fixed step in seconds, never scaled to wall clock
)

// Ball is the ball position and per-frame velocity.
type Ball struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"velocityX"`
	VY float64 `json:"velocityY"`
}

// Paddle is one side's paddle. X is fixed per side; only Y moves.
type Paddle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the full authoritative game state for one session. It is a plain
// value: the engine never locks or blocks, callers serialize access.
type State struct {
	Ball        Ball    `json:"ball"`
	LeftPaddle  Paddle  `json:"leftPaddle"`
	RightPaddle Paddle  `json:"rightPaddle"`
	LeftScore   int     `json:"leftScore"`
	RightScore  int     `json:"rightScore"`
	GameOver    bool    `json:"gameOver"`
	Winner      int     `json:"winner"`
	Sequence    uint64  `json:"sequenceNumber"`
	LeftTarget  float64 `json:"leftPaddleTargetY"`
	RightTarget float64 `json:"rightPaddleTargetY"`
	LeftReady   bool    `json:"leftPlayerReady"`
	RightReady  bool    `json:"rightPlayerReady"`
}

// PlayersReady reports whether both sides have confirmed start.
func (s *State) PlayersReady() bool {
	return s.LeftReady && s.RightReady
}

// NewState returns a fresh game state with paddles centered and the ball
// parked at the field center. The ball is not served until Serve is called;
// readiness flags start false.
func NewState() *State {
	centerY := (FieldHeight - PaddleHeight) / 2
	return &State{
		Ball:        Ball{X: FieldWidth / 2, Y: FieldHeight / 2},
		LeftPaddle:  Paddle{X: LeftPaddleX, Y: centerY},
		RightPaddle: Paddle{X: RightPaddleX, Y: centerY},
		LeftTarget:  centerY,
		RightTarget: centerY,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// moveToward moves a toward b by at most step.
func moveToward(a, b, step float64) float64 {
	if diff := b - a; diff <= step && diff >= -step {
		return b
	} else if diff > 0 {
		return a + step
	}
	return a - step
}
