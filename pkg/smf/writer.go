package smf

import (
	"encoding/binary"

	"github.com/zurustar/midiseq/pkg/event"
)

// WriteOptions configures Write's single-track format-1 output.
type WriteOptions struct {
	PPQ          int     // ticks per quarter-note; DefaultTicksPerBeat if zero
	EndDelayMS   float64 // trailing silence, in ms, before the End-of-Track meta
	MicrosPerBeat int    // tempo used to convert event deltas and EndDelayMS to ticks; DefaultMicrosPerBeat if zero
}

// Write encodes events (deltas already in milliseconds, as produced after
// tempo folding, or — for a freshly recorded sequence — inter-event
// milliseconds) as a one-track format-1 SMF. Deltas are first converted back
// to ticks using opts.PPQ/MicrosPerBeat at a fixed rate; this engine does
// not write a tempo map, matching scenario S5's "default 120 BPM" round
// trip.
func Write(events []event.Event, opts WriteOptions) ([]byte, error) {
	ppq := opts.PPQ
	if ppq == 0 {
		ppq = DefaultTicksPerBeat
	}
	micros := opts.MicrosPerBeat
	if micros == 0 {
		micros = DefaultMicrosPerBeat
	}
	msPerTick := float64(micros) / 1000.0 / float64(ppq)

	var body []byte
	var runningStatus byte
	for _, e := range events {
		bytes := event.IterBytes(e)
		if len(bytes) == 0 {
			continue
		}
		if bytes[0] < 0x80 || bytes[0] >= 0xF0 {
			// System/SysEx messages, including SysEx continuation packets
			// (which start with a data byte), are not written (documented
			// limitation); drop this event and keep writing the rest.
			continue
		}
		ticks := int(e.Delta/msPerTick + 0.5)
		body = appendVLQ(body, ticks)

		status := bytes[0]
		if status == runningStatus {
			body = append(body, bytes[1:]...)
		} else {
			body = append(body, bytes...)
			runningStatus = status
		}
	}

	endDelayTicks := int(opts.EndDelayMS/msPerTick + 0.5)
	body = appendVLQ(body, endDelayTicks)
	body = append(body, 0xFF, metaEndOfTrack, 0x00)

	var buf []byte
	buf = append(buf, "MThd"...)
	buf = appendU32(buf, 6)
	buf = appendU16(buf, 1) // format 1
	buf = appendU16(buf, 1) // one track
	buf = appendU16(buf, uint16(ppq))

	buf = append(buf, "MTrk"...)
	buf = appendU32(buf, uint32(len(body)))
	buf = append(buf, body...)

	return buf, nil
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

// appendVLQ encodes v (a 28-bit unsigned quantity) as 1-4 bytes, high bit
// set on all but the last, and appends it to b.
func appendVLQ(b []byte, v int) []byte {
	if v < 0 {
		v = 0
	}
	var stack [4]byte
	n := 0
	stack[n] = byte(v & 0x7F)
	n++
	v >>= 7
	for v > 0 && n < 4 {
		stack[n] = byte(v&0x7F) | 0x80
		n++
		v >>= 7
	}
	for i := n - 1; i >= 0; i-- {
		b = append(b, stack[i])
	}
	return b
}
