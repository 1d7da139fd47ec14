package uartboot

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Autobaud infers the baud divisor by timing a 0x55 training stream on the
// raw RX line: start bit plus alternating data bits give one line toggle
// per bit time, so each edge-to-edge interval is one bit long and a frame
// yields ten consecutive samples (the tenth interval is the stop bit,
// ending at the next frame's start-bit fall). The trainer is expected to
// send the pattern back to back; the last, truncated frame of a burst is
// sacrificed to terminate the measurement.

const (
	// abSamples intervals are measured per frame.
	abSamples = 10
	// abMaxSpread is the accepted max-min difference across the samples
	// of one frame, in timer counts.
	abMaxSpread = 70
	// abMaxDivisor bounds the derived divisor to the register width.
	abMaxDivisor = 0xFFF

	abSilence = 10 * time.Millisecond
	abMaxWait = 200 * time.Millisecond
)

type autobaud struct {
	rx    gpio.PinIO
	timer Timer
	// step is the cooperative poll callback; false aborts detection.
	step func() bool

	// samples is the fixed scratch buffer of raw interval counts.
	samples [abSamples]uint32
	// mark is the timer count latched at the last observed edge. Each
	// interval accumulates from the previous edge's mark, so the cycles
	// spent detecting an edge are charged to the next interval instead
	// of vanishing between samples.
	mark    uint16
	aborted bool
}

// detect runs detection cycles until a divisor is found or the poll step
// aborts (connect timeout expired, or no line activity at all).
func (a *autobaud) detect(cfg *Config) (uint16, bool) {
	silence := cfg.cycles(abSilence)
	maxWait := cfg.cycles(abMaxWait)
	scale := uint32(divisorScale(cfg.DoubleSpeed))

	for !a.aborted {
		// One cycle: escalating per-edge timeouts, each attempt
		// restarting from silence detection.
		for wait := silence; wait <= maxWait && !a.aborted; wait *= 2 {
			if !a.waitSilence(silence) {
				return 0, false
			}
			if div, ok := a.measureBurst(wait, scale); ok {
				return div, true
			}
		}
	}
	return 0, false
}

// waitSilence blocks until the line has been continuously high for ref
// counts. Any low sample restarts the accumulation.
func (a *autobaud) waitSilence(ref uint32) bool {
	var high uint32
	last := a.timer.Count()
	for high < ref {
		now := a.timer.Count()
		d := uint32(now - last)
		last = now
		if a.rx.Read() == gpio.High {
			high += d
		} else {
			high = 0
		}
		if a.step != nil && !a.step() {
			a.aborted = true
			return false
		}
	}
	return true
}

// waitFall blocks until the start-bit falling edge and latches it as the
// measurement origin.
func (a *autobaud) waitFall() bool {
	for a.rx.Read() == gpio.High {
		if a.step != nil && !a.step() {
			a.aborted = true
			return false
		}
	}
	a.mark = a.timer.Count()
	return true
}

// measureBurst measures training frames back to back, starting at a
// start-bit fall. Across the burst a later frame may only replace the
// candidate with a larger (slower, more conservative) divisor.
func (a *autobaud) measureBurst(wait, scale uint32) (uint16, bool) {
	if !a.waitFall() {
		return 0, false
	}
	var best uint32 // divisor+1; 0 = no valid frame yet
	for {
		unit, ok := a.measureFrame(wait)
		if !ok {
			break
		}
		div := (unit + scale/2) / scale
		if div == 0 || div-1 > abMaxDivisor {
			break
		}
		if div > best {
			best = div
		}
		// measureFrame returned at the next start-bit fall; chain
		// straight into the next frame.
	}
	if best == 0 {
		return 0, false
	}
	return uint16(best - 1), true
}

// measureFrame times abSamples successive toggles from the current
// start-bit fall and returns the average interval. Levels alternate by
// construction, so the ninth toggle landing high is the stop bit; a
// missing or extra edge shows up as a timeout or as sample spread and
// rejects the frame.
func (a *autobaud) measureFrame(wait uint32) (uint32, bool) {
	level := gpio.Low
	var sum, min uint32
	for i := 0; i < abSamples; i++ {
		iv, ok := a.interval(&level, wait)
		if !ok {
			return 0, false
		}
		if i == 0 || iv < min {
			min = iv
		}
		// An interval far above the running minimum means a dropped
		// edge folded two bits together.
		if iv > 2*min+abMaxSpread {
			return 0, false
		}
		a.samples[i] = iv
		sum += iv
	}
	mn, mx := a.samples[0], a.samples[0]
	for _, s := range a.samples[1:] {
		if s < mn {
			mn = s
		}
		if s > mx {
			mx = s
		}
	}
	if mx-mn > abMaxSpread {
		return 0, false
	}
	return sum / abSamples, true
}

// interval accumulates timer counts from the last edge's mark until the
// line leaves *level, with 16-bit wraparound folded into a 32-bit total.
// Consecutive intervals share their boundary marks, so a frame's samples
// sum to exactly the span between its first and last edge.
func (a *autobaud) interval(level *gpio.Level, wait uint32) (uint32, bool) {
	var total uint32
	last := a.mark
	for {
		now := a.timer.Count()
		total += uint32(now - last)
		last = now
		if a.rx.Read() != *level {
			*level = !*level
			a.mark = last
			return total, true
		}
		if total > wait {
			return 0, false
		}
		if a.step != nil && !a.step() {
			a.aborted = true
			return 0, false
		}
	}
}
