package run

import "time"

// alarm produces the low-battery blink cadence: the LED period sweeps from
// 475ms down to 0 and back, slowing its step near the fast end.
type alarm struct {
	delay int // ms
	sub   int
}

func newAlarm() *alarm {
	return &alarm{delay: 475, sub: 10}
}

// next returns the wait after the current toggle.
func (a *alarm) next() time.Duration {
	if a.delay == 0 {
		a.sub = -1
	}
	if a.delay > 475 {
		a.sub = 10
	}
	if a.delay < 100 && a.sub > 0 {
		a.sub = 1
	} else if a.delay < 200 && a.sub > 0 {
		a.sub = 3
	}
	if a.delay > 200 && a.sub < 0 {
		a.sub = -10
	} else if a.delay > 100 && a.sub < 0 {
		a.sub = -5
	}
	a.delay -= a.sub
	return time.Duration(a.delay) * time.Millisecond
}
