// Package tune plays short melodies on the buzzer.
package tune

import "time"

// Beeper plays one blocking tone.
type Beeper interface {
	Beep(ticks uint32, pitch uint8) error
}

// Note is one tone followed by an optional silence.
type Note struct {
	Ticks uint32
	Pitch uint8
	Rest  time.Duration
}

// Song is a sequence of notes.
type Song []Note

const gap = 10 * time.Millisecond

// Finale is played when the robot stops at the finish line.
var Finale = Song{
	{140, 153, gap},
	{140, 136, gap},
	{140, 114, gap},
	{140, 136, gap},
	{340, 91, gap},
	{100, 91, 0},
	{290, 91, gap},
	{300, 102, 0},
	{590, 102, gap},
	{140, 153, gap},
	{140, 136, gap},
	{140, 121, gap},
	{140, 153, gap},
	{340, 102, gap},
	{100, 102, 0},
	{290, 102, gap},
	{300, 114, 0},
	{150, 114, 0},
	{150, 121, 0},
	{290, 136, gap},
	{140, 153, gap},
	{140, 136, gap},
	{140, 114, gap},
	{140, 136, gap},
	{590, 114, gap},
	{290, 102, gap},
	{300, 121, 0},
	{140, 136, gap},
	{290, 153, gap},
	{140, 153, gap},
	{590, 102, gap},
	{590, 114, gap},
}

// Duration returns the nominal playing time given the length of one tick.
func (s Song) Duration(tick time.Duration) time.Duration {
	var d time.Duration
	for _, n := range s {
		d += time.Duration(n.Ticks)*tick + n.Rest
	}
	return d
}

// Play plays s note by note and returns the first beeper error.
func Play(b Beeper, sleep func(time.Duration), s Song) error {
	for _, n := range s {
		if err := b.Beep(n.Ticks, n.Pitch); err != nil {
			return err
		}
		if n.Rest > 0 {
			sleep(n.Rest)
		}
	}
	return nil
}
