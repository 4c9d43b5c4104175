package game

// UpdateBotTarget steers the server-controlled right paddle. While the ball
// travels toward the bot it aims for the predicted intercept, otherwise it
// shadows the ball's current height. The target converges at a fraction of
// paddle speed so the bot stays beatable; the next Step moves the paddle
// itself, the bot only ever writes its target.
func UpdateBotTarget(s *State) {
	if s.GameOver || !s.PlayersReady() {
		return
	}

	predicted := s.Ball.Y
	if s.Ball.VX > 0 {
		frames := (s.RightPaddle.X - s.Ball.X) / s.Ball.VX
		predicted = clamp(s.Ball.Y+s.Ball.VY*frames, 0, FieldHeight-BallSize)
	}

	want := clamp(predicted-PaddleHeight/2+BallSize/2, 0, MaxPaddleY)
	s.RightTarget = clamp(moveToward(s.RightPaddle.Y, want, PaddleSpeed*BotSpeedFactor), 0, MaxPaddleY)
}
