package line

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalibration() Calibration {
	return Calibration{
		L3: Reference{White: 4500, Black: 23999},
		L1: Reference{White: 3000, Black: 23999},
		R1: Reference{White: 3300, Black: 23999},
		R3: Reference{White: 8300, Black: 23999},
	}
}

func TestCalibration_Validate(t *testing.T) {
	require.NoError(t, testCalibration().Validate())

	cal := testCalibration()
	cal.R1.White = cal.R1.Black
	err := cal.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMiscalibrated)
	assert.Contains(t, err.Error(), "r1")
	assert.NotContains(t, err.Error(), "l1")
}

func TestNewCalibration(t *testing.T) {
	cal := NewCalibration(23999, Reading{L3: 1, L1: 2, R1: 3, R3: 4})
	assert.Equal(t, Reference{White: 2, Black: 23999}, cal.L1)
	assert.Equal(t, Reference{White: 4, Black: 23999}, cal.R3)
}

func TestNormalizer_Centered(t *testing.T) {
	cal := Calibration{L1: Reference{3000, 23999}, R1: Reference{3000, 23999}}
	n := NewNormalizer(cal)

	off, ok := n.Offset(Reading{L1: 12000, R1: 12000})
	require.True(t, ok)
	assert.InDelta(t, 0, float64(off), 1e-6)
}

func TestNormalizer_DarkerLeftIsNegative(t *testing.T) {
	n := NewNormalizer(testCalibration())

	off, ok := n.Offset(Reading{L1: 20000, R1: 5000})
	require.True(t, ok)
	assert.Less(t, float32(off), float32(0))

	off, ok = n.Offset(Reading{L1: 5000, R1: 20000})
	require.True(t, ok)
	assert.Greater(t, float32(off), float32(0))
}

func TestNormalizer_LineUnderLeftOnly(t *testing.T) {
	n := NewNormalizer(testCalibration())

	// left: 23999/20000, right: 23999/700
	off, ok := n.Offset(Reading{L1: 23000, R1: 4000})
	require.True(t, ok)
	assert.InDelta(t, -33.0843, float64(off), 1e-3)
}

func TestNormalizer_ExactValue(t *testing.T) {
	cal := Calibration{L1: Reference{1000, 21000}, R1: Reference{1000, 21000}}
	n := NewNormalizer(cal)

	// left: 21000/(11000-1000) = 2.1, right: 21000/(3000-1000) = 10.5
	off, ok := n.Offset(Reading{L1: 11000, R1: 3000})
	require.True(t, ok)
	assert.InDelta(t, -8.4, float64(off), 1e-4)
}

func TestNormalizer_FiniteAboveWhite(t *testing.T) {
	n := NewNormalizer(testCalibration())
	for raw := uint16(3301); raw < 24000; raw += 97 {
		off, ok := n.Offset(Reading{L1: raw, R1: 24000 - raw + 3301})
		require.True(t, ok, "raw=%d", raw)
		assert.False(t, math32.IsInf(float32(off), 0) || math32.IsNaN(float32(off)), "raw=%d", raw)
	}
}

func TestNormalizer_AtWhiteCarriesForward(t *testing.T) {
	n := NewNormalizer(testCalibration())

	prev, ok := n.Offset(Reading{L1: 20000, R1: 5000})
	require.True(t, ok)

	off, ok := n.Offset(Reading{L1: 3000, R1: 5000}) // L1 == white
	assert.False(t, ok)
	assert.Equal(t, prev, off)

	off, ok = n.Offset(Reading{L1: 20000, R1: 100}) // R1 below white
	assert.False(t, ok)
	assert.Equal(t, prev, off)
	assert.Equal(t, prev, n.Last())
}

func TestNormalizer_ResetClearsCarry(t *testing.T) {
	n := NewNormalizer(testCalibration())
	_, _ = n.Offset(Reading{L1: 20000, R1: 5000})
	n.Reset()

	off, ok := n.Offset(Reading{L1: 3000, R1: 3300})
	assert.False(t, ok)
	assert.Equal(t, Offset(0), off)
}

func TestClassifier_OnStopLine(t *testing.T) {
	c := NewClassifier(20000, testCalibration(), 0)

	cases := []struct {
		name string
		r    Reading
		want bool
	}{
		{"all_black", Reading{23999, 23999, 23999, 23999}, true},
		{"exactly_threshold", Reading{20000, 20000, 20000, 20000}, true},
		{"one_below", Reading{20000, 20000, 19999, 20000}, false},
		{"outer_below", Reading{19999, 23999, 23999, 23999}, false},
		{"all_white", Reading{4000, 3000, 3000, 8000}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.OnStopLine(tc.r))
		})
	}
}

func TestClassifier_OffTrackEdge_LearnedMargin(t *testing.T) {
	c := NewClassifier(20000, testCalibration(), 0)

	// left threshold 23999-4500, right threshold 23999-8300
	assert.Equal(t, uint16(19499), c.EdgeThreshold(Left))
	assert.Equal(t, uint16(15699), c.EdgeThreshold(Right))

	assert.True(t, c.OffTrackEdge(Reading{L3: 19499, L1: 5000, R1: 5000, R3: 9000}, Left))
	assert.False(t, c.OffTrackEdge(Reading{L3: 19498, L1: 5000, R1: 5000, R3: 9000}, Left))
	assert.True(t, c.OffTrackEdge(Reading{L3: 5000, L1: 5000, R1: 5000, R3: 16000}, Right))
	assert.False(t, c.OffTrackEdge(Reading{L3: 23000, L1: 5000, R1: 5000, R3: 9000}, Right))
}

func TestClassifier_OffTrackEdge_SuppressedOnStopLine(t *testing.T) {
	c := NewClassifier(20000, testCalibration(), 0)
	r := Reading{23999, 23999, 23999, 23999}

	assert.False(t, c.OffTrackEdge(r, Left))
	assert.False(t, c.OffTrackEdge(r, Right))
	_, ok := c.Edge(r)
	assert.False(t, ok)
}

func TestClassifier_FixedMargin(t *testing.T) {
	c := NewClassifier(20000, testCalibration(), 2000)
	assert.Equal(t, uint16(21999), c.EdgeThreshold(Left))
	assert.Equal(t, uint16(21999), c.EdgeThreshold(Right))
}

func TestClassifier_Edge(t *testing.T) {
	c := NewClassifier(20000, testCalibration(), 0)

	side, ok := c.Edge(Reading{L3: 23000, L1: 5000, R1: 5000, R3: 9000})
	assert.True(t, ok)
	assert.Equal(t, Left, side)

	side, ok = c.Edge(Reading{L3: 5000, L1: 5000, R1: 5000, R3: 23000})
	assert.True(t, ok)
	assert.Equal(t, Right, side)

	_, ok = c.Edge(Reading{L3: 5000, L1: 12000, R1: 12000, R3: 9000})
	assert.False(t, ok)
}

func TestSide_String(t *testing.T) {
	assert.Equal(t, "left", Left.String())
	assert.Equal(t, "right", Right.String())
}
