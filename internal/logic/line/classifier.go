package line

// Classifier decides whether the bar straddles a stop line and whether an
// outer sensor has run onto the line boundary.
type Classifier struct {
	stop    uint16
	leftAt  uint16
	rightAt uint16
}

// NewClassifier creates a classifier.
//
// stopThreshold is compared against all four sensors (inclusive). The outer
// sensors trigger at black-margin; margin 0 uses the learned white of that
// outer sensor as the margin.
func NewClassifier(stopThreshold uint16, cal Calibration, margin uint16) *Classifier {
	lm, rm := margin, margin
	if margin == 0 {
		lm, rm = cal.L3.White, cal.R3.White
	}
	return &Classifier{
		stop:    stopThreshold,
		leftAt:  subSat(cal.L3.Black, lm),
		rightAt: subSat(cal.R3.Black, rm),
	}
}

// OnStopLine reports whether all four readings are at or above the stop threshold.
func (c *Classifier) OnStopLine(r Reading) bool {
	return r.L3 >= c.stop && r.L1 >= c.stop && r.R1 >= c.stop && r.R3 >= c.stop
}

// OffTrackEdge reports whether the outer sensor on side is at or above its
// edge threshold while the bar is not on a stop line.
func (c *Classifier) OffTrackEdge(r Reading, side Side) bool {
	if c.OnStopLine(r) {
		return false
	}
	if side == Right {
		return r.R3 >= c.rightAt
	}
	return r.L3 >= c.leftAt
}

// Edge returns the side whose outer sensor fired. Left wins when both did.
func (c *Classifier) Edge(r Reading) (Side, bool) {
	switch {
	case c.OffTrackEdge(r, Left):
		return Left, true
	case c.OffTrackEdge(r, Right):
		return Right, true
	}
	return Left, false
}

// EdgeThreshold returns the raw value at which side fires.
func (c *Classifier) EdgeThreshold(side Side) uint16 {
	if side == Right {
		return c.rightAt
	}
	return c.leftAt
}

func subSat(a, b uint16) uint16 {
	if b >= a {
		return 0
	}
	return a - b
}
