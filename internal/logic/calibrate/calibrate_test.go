package calibrate

import (
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/logic/line"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqSampler returns readings in order and then repeats the last one.
type seqSampler struct {
	readings []line.Reading
	calls    int
	failAt   int // 1-based call number that fails; 0 = never
}

func (s *seqSampler) Read() (line.Reading, error) {
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return line.Reading{}, errors.New("sensor timeout")
	}
	i := s.calls - 1
	if i >= len(s.readings) {
		i = len(s.readings) - 1
	}
	return s.readings[i], nil
}

type beep struct {
	ticks uint32
	pitch uint8
}

type recBeeper struct{ beeps []beep }

func (b *recBeeper) Beep(ticks uint32, pitch uint8) error {
	b.beeps = append(b.beeps, beep{ticks, pitch})
	return nil
}

func ramp(start, step uint16, n int) []line.Reading {
	out := make([]line.Reading, n)
	for i := range out {
		v := start + uint16(i)*step
		out[i] = line.Reading{L3: v + 1000, L1: v, R1: v + 200, R3: v + 5000}
	}
	return out
}

func TestRun_MeanOfSamples(t *testing.T) {
	// 100, 110, ... 190 -> mean 145
	s := &seqSampler{readings: ramp(100, 10, 10)}
	b := &recBeeper{}
	var slept []time.Duration
	p := New(s, b, func(d time.Duration) { slept = append(slept, d) }, DefaultParams())

	cal, err := p.Run()
	require.NoError(t, err)

	assert.Equal(t, 10, s.calls)
	assert.Equal(t, uint16(145), cal.L1.White)
	assert.Equal(t, uint16(345), cal.R1.White)
	assert.Equal(t, uint16(1145), cal.L3.White)
	assert.Equal(t, uint16(5145), cal.R3.White)
	assert.Equal(t, uint16(23999), cal.L1.Black)
}

func TestRun_TimingWindow(t *testing.T) {
	s := &seqSampler{readings: ramp(100, 0, 1)}
	var total time.Duration
	var count int
	p := New(s, nil, func(d time.Duration) { total += d; count++ }, DefaultParams())

	_, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 1100*time.Millisecond, total)
	assert.Equal(t, 11, count) // 10 intervals + tail
}

func TestRun_TruncatesMean(t *testing.T) {
	s := &seqSampler{readings: []line.Reading{
		{L3: 1, L1: 1, R1: 1, R3: 1},
		{L3: 2, L1: 2, R1: 2, R3: 2},
	}}
	params := DefaultParams()
	params.Samples = 2
	p := New(s, nil, func(time.Duration) {}, params)

	cal, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), cal.L1.White) // 3/2
}

func TestRun_PlaysConfirmationTone(t *testing.T) {
	s := &seqSampler{readings: ramp(3000, 0, 1)}
	b := &recBeeper{}
	p := New(s, b, func(time.Duration) {}, DefaultParams())

	_, err := p.Run()
	require.NoError(t, err)
	require.Len(t, b.beeps, 1)
	assert.Equal(t, beep{25, 200}, b.beeps[0])
}

func TestRun_Miscalibrated(t *testing.T) {
	s := &seqSampler{readings: []line.Reading{{L3: 5000, L1: 24000, R1: 4000, R3: 9000}}}
	b := &recBeeper{}
	p := New(s, b, func(time.Duration) {}, DefaultParams())

	cal, err := p.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, line.ErrMiscalibrated)
	assert.Equal(t, uint16(24000), cal.L1.White)
	assert.Len(t, b.beeps, 1, "tone is still played on completion")
}

func TestRun_ReadErrorAborts(t *testing.T) {
	s := &seqSampler{readings: ramp(3000, 0, 1), failAt: 4}
	b := &recBeeper{}
	p := New(s, b, func(time.Duration) {}, DefaultParams())

	_, err := p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample 3")
	assert.Equal(t, 4, s.calls, "no retries after a failed read")
	assert.Empty(t, b.beeps)
}

func TestRun_RerunOverwrites(t *testing.T) {
	s := &seqSampler{readings: ramp(3000, 0, 1)}
	p := New(s, nil, func(time.Duration) {}, DefaultParams())

	first, err := p.Run()
	require.NoError(t, err)

	s.readings = ramp(5000, 0, 1)
	s.calls = 0
	second, err := p.Run()
	require.NoError(t, err)
	assert.NotEqual(t, first.L1.White, second.L1.White)
	assert.Equal(t, uint16(5000), second.L1.White)
}
