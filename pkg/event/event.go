// Package event defines the in-memory MIDI event and tempo-map entry types
// shared by the recorder, the SMF codec, and the clock driver.
package event

import "github.com/zurustar/midiseq/pkg/buffer"

// META fills any unused trailing slot of a 4-byte event for display/debug
// purposes. It is not used to delimit meaningful bytes: 0xFF (System Reset)
// is itself a legal status byte, so the slot count is tracked explicitly in
// n rather than by sentinel value.
const META byte = 255

// Event is a stored MIDI message (or one packet of a split SysEx) together
// with a time delta. The delta is milliseconds once folded; during SMF
// ingestion it transiently holds an absolute score-time.
type Event struct {
	Delta float64
	Bytes [4]byte
	n     uint8 // count of meaningful leading bytes in Bytes
}

// New builds an Event from up to four meaningful bytes, padding any unused
// trailing slot with META.
func New(delta float64, bytes ...byte) Event {
	var e Event
	e.Delta = delta
	for i := range e.Bytes {
		e.Bytes[i] = META
	}
	n := len(bytes)
	if n > 4 {
		n = 4
	}
	copy(e.Bytes[:n], bytes[:n])
	e.n = uint8(n)
	return e
}

// IterBytes returns the meaningful bytes of an event.
func IterBytes(e Event) []byte {
	return e.Bytes[:e.n]
}

// Used returns the count of meaningful bytes in e.
func Used(e Event) int {
	return int(e.n)
}

// AppendFromBytes records a new event with delta = timeNow - prevTime and
// returns the new prevTime latch. newEventAdded is false only when the
// underlying buffer's growth failed (resource-exhausted), matching the
// buffer's own reset-to-zero policy.
func AppendFromBytes(events *buffer.Buffer[Event], bytes []byte, timeNow, prevTime float64) (newPrevTime float64, newEventAdded bool) {
	e := New(timeNow-prevTime, bytes...)
	if !events.Append(e) {
		return prevTime, false
	}
	return timeNow, true
}

// TempoEntry is one (score_time, score_ticks_per_second) row of a tempo map,
// as produced by reading an SMF file's Tempo meta-events.
type TempoEntry struct {
	ScoreTime          float64
	ScoreTicksPerSecond float64
}
