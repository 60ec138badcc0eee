package line

import "github.com/chewxy/math32"

// Offset is the lateral line offset derived from the inner sensors.
// Negative when the left inner sensor is darker than the right one, which
// slows the left track and turns the robot toward the line.
type Offset float32

// Normalizer remaps the inner sensors against their references.
//
// Each inner sensor is scaled by black/(raw-white): large over white,
// approaching 1 over black. The offset is leftScale - rightScale.
// When a sensor reads at or below its white reference the scale is
// undefined and the last valid offset is carried forward.
type Normalizer struct {
	left  Reference
	right Reference
	last  Offset
}

// NewNormalizer creates a normalizer for the inner sensors of cal.
func NewNormalizer(cal Calibration) *Normalizer {
	return &Normalizer{left: cal.L1, right: cal.R1}
}

// Offset returns the offset for r. ok is false when the reading fell outside
// the calibrated range and the previous offset was reused.
func (n *Normalizer) Offset(r Reading) (off Offset, ok bool) {
	ls, lok := scale(r.L1, n.left)
	rs, rok := scale(r.R1, n.right)
	if !lok || !rok {
		return n.last, false
	}
	off = Offset(ls - rs)
	if math32.IsNaN(float32(off)) || math32.IsInf(float32(off), 0) {
		return n.last, false
	}
	n.last = off
	return off, true
}

// Last returns the most recent valid offset.
func (n *Normalizer) Last() Offset { return n.last }

// Reset forgets the carried offset.
func (n *Normalizer) Reset() { n.last = 0 }

func scale(raw uint16, ref Reference) (float32, bool) {
	if raw <= ref.White {
		return 0, false
	}
	s := float32(ref.Black) / (float32(raw) - float32(ref.White))
	if math32.IsInf(s, 0) || math32.IsNaN(s) {
		return 0, false
	}
	return s, true
}
