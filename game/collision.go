package game

// hitbox is the collision rectangle for one paddle. The X extent carries
// half the collision buffer on each side so face-on contact registers; the
// Y extent is exact for the same-frame overlap test, with the full buffer
// applied only to the swept check (sweepMinY/sweepMaxY) so a fast ball
// skimming a paddle corner between frames still connects.
type hitbox struct {
	minX, maxX float64
	minY, maxY float64

	sweepMinY, sweepMaxY float64
}

func paddleHitbox(p *Paddle) hitbox {
	return hitbox{
		minX:      p.X - CollisionBuffer/2,
		maxX:      p.X + PaddleWidth + CollisionBuffer/2,
		minY:      p.Y,
		maxY:      p.Y + PaddleHeight,
		sweepMinY: p.Y - CollisionBuffer,
		sweepMaxY: p.Y + PaddleHeight + CollisionBuffer,
	}
}

// sweptHit reports whether the ball, moving from (px,py) to (x,y) over one
// step, struck box. Positions are the ball's top-left corner. A hit is
// either an AABB overlap at the final position or a crossing of the box's
// near vertical face between frames (continuous detection, so the ball
// cannot tunnel through a paddle on a fast step).
func sweptHit(px, py, x, y float64, box hitbox) bool {
	if x < box.maxX && x+BallSize > box.minX && y < box.maxY && y+BallSize > box.minY {
		return true
	}

	if px == x {
		return false
	}

	// Near face in the direction of travel, offset so we track the ball
	// edge that strikes it.
	var face float64
	if x < px {
		face = box.maxX
		if px < face || x >= face {
			return false
		}
	} else {
		face = box.minX - BallSize
		if px > face || x <= face {
			return false
		}
	}

	t := (face - px) / (x - px)
	yAt := py + (y-py)*t
	return yAt < box.sweepMaxY && yAt+BallSize > box.sweepMinY
}
