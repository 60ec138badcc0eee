package run

// Phase is the current stage of a run. Exactly one is active at a time.
type Phase int32

const (
	Idle Phase = iota
	Calibrating
	Aligning
	Following
	Stopping
	HaltedLowBattery
	Finished
)

var phaseNames = [...]string{
	Idle:             "idle",
	Calibrating:      "calibrating",
	Aligning:         "aligning",
	Following:        "following",
	Stopping:         "stopping",
	HaltedLowBattery: "halted_low_battery",
	Finished:         "finished",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether the phase can only be left by a reset.
func (p Phase) Terminal() bool {
	return p == HaltedLowBattery || p == Finished
}
