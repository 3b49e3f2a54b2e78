package core

import "time"

// FixedStep gates work to a steady rate, e.g. refreshing the window title a
// few times per second while frames run at display cadence.
type FixedStep struct {
	step        time.Duration
	accumulator time.Duration
	last        time.Time
	now         func() time.Time
}

// NewFixedStep constructs a FixedStep firing hz times per second. The first
// call to ShouldStep always fires.
func NewFixedStep(hz int) *FixedStep {
	fs := &FixedStep{now: time.Now}
	fs.SetRate(hz)
	fs.accumulator = fs.step
	return fs
}

// SetRate changes the firing rate. Non-positive values fall back to 60 Hz.
func (f *FixedStep) SetRate(hz int) {
	if hz <= 0 {
		hz = 60
	}
	f.step = time.Second / time.Duration(hz)
}

// ShouldStep reports whether a full step has elapsed since the last firing.
func (f *FixedStep) ShouldStep() bool {
	now := f.now()
	if f.last.IsZero() {
		f.last = now
	}
	f.accumulator += now.Sub(f.last)
	f.last = now
	if f.accumulator >= f.step {
		f.accumulator -= f.step
		if f.accumulator > f.step {
			// Long stalls must not queue a burst of firings.
			f.accumulator = 0
		}
		return true
	}
	return false
}
