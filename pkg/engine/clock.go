package engine

import "github.com/zurustar/midiseq/pkg/event"

const (
	minTickDelayMS = 1  // discard slave ticks closer together than this
	ticksPerSec    = 48 // slave clock rate assumed by the tick-to-timescale conversion
)

// onClockTick is the primary clock's callback: emit the event at playhead,
// advance, and either tail-chain into the next event (if its delta is under
// the jitter epsilon) or schedule the next clock.
func (e *Engine) onClockTick() {
	for {
		if e.mode != Play && e.mode != SlavePlay {
			return
		}
		if e.playhead >= e.events.Len() {
			e.endOfSequence()
			return
		}

		ev := e.events.At(e.playhead)
		for _, b := range event.IterBytes(ev) {
			e.outlet.Emit(b)
			e.book.ObserveByte(int(b))
			if e.mode != Play && e.mode != SlavePlay {
				return
			}
		}
		e.playhead++

		if e.playhead >= e.events.Len() {
			e.endOfSequence()
			return
		}

		next := e.events.At(e.playhead).Delta
		e.nextScoreTime += next
		if next < tailChainEpsilon {
			continue // tail-chain: same scheduler tick, avoid clock jitter
		}
		e.scheduleDelay(next * e.timescale)
		return
	}
}

func (e *Engine) endOfSequence() {
	e.transition(Idle)
	e.outlet.Bang()
	if e.loop {
		e.transition(Play)
	}
}

// Bang is the external tick input (J): in SlavePlay, advances the live
// timescale estimate from inter-tick spacing and drives playback from it.
// The first tick after entering SlavePlay only initialises the baseline.
func (e *Engine) Bang() {
	if e.mode != SlavePlay {
		return
	}
	now := e.nowOr(0)
	if e.slavePrevTime <= 0 {
		e.slavePrevTime = now
		return
	}
	elapsed := now - e.slavePrevTime
	if elapsed < minTickDelayMS {
		return
	}

	e.watchdog.Delay(elapsed, e.onWatchdogFire)

	newTimescale := elapsed * (float64(ticksPerSec) / 1000.0)
	if e.timescale <= 0 {
		e.timescale = 1
	}

	var delay float64
	if e.clockActive {
		remaining := e.clockDelay - (now - e.prevTime)
		if remaining < 0 {
			remaining = 0
		}
		delay = remaining * newTimescale / e.timescale
	} else if e.playhead < e.events.Len() {
		delay = e.events.At(e.playhead).Delta * newTimescale
	}
	e.timescale = newTimescale

	e.clock.Unset()
	e.scheduleDelay(delay)

	e.slavePrevTime = now
}

// onWatchdogFire cancels the primary clock when an expected slave tick
// failed to arrive in time.
func (e *Engine) onWatchdogFire() {
	e.clock.Unset()
	e.clockActive = false
}
