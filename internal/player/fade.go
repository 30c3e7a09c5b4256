package player

import (
	"sync"
	"time"
)

const fadeStepInterval = 50 * time.Millisecond

// fade is a cancellable linear volume ramp stepped on the clock.
type fade struct {
	mu      sync.Mutex
	timer   Timer
	stopped bool
}

// newFade ramps el from one volume to another over dur, then calls done (if
// non-nil). A zero or negative dur applies the target immediately.
func newFade(clock Clock, el Element, from, to float64, dur time.Duration, done func()) *fade {
	f := &fade{}

	el.SetVolume(from)
	if dur <= 0 {
		el.SetVolume(to)
		if done != nil {
			done()
		}
		return f
	}

	steps := int(dur / fadeStepInterval)
	if steps < 1 {
		steps = 1
	}
	delta := (to - from) / float64(steps)

	step := 0
	var tick func()
	tick = func() {
		f.mu.Lock()
		if f.stopped {
			f.mu.Unlock()
			return
		}
		step++
		last := step >= steps
		if last {
			el.SetVolume(to)
		} else {
			el.SetVolume(from + delta*float64(step))
			f.timer = clock.AfterFunc(fadeStepInterval, tick)
		}
		f.mu.Unlock()

		if last && done != nil {
			done()
		}
	}

	f.mu.Lock()
	f.timer = clock.AfterFunc(fadeStepInterval, tick)
	f.mu.Unlock()
	return f
}

// stop cancels the ramp, leaving the volume wherever it currently is.
func (f *fade) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.timer != nil {
		f.timer.Stop()
	}
}
