// Package midiparser implements the running-status, SysEx-aware byte parser
// that turns an incoming MIDI byte stream into stored events while in
// Record mode.
package midiparser

import (
	"log/slog"

	"github.com/zurustar/midiseq/pkg/buffer"
	"github.com/zurustar/midiseq/pkg/event"
	"github.com/zurustar/midiseq/pkg/notebook"
)

const (
	activeSensing byte = 254
	sysexOpen     byte = 0xF0
	sysexClose    byte = 0xF7
)

// Parser converts a stream of 0-255 byte values into complete events
// appended to an event buffer, one byte per call to Feed.
type Parser struct {
	events *buffer.Buffer[event.Event]
	book   *notebook.Book
	logger *slog.Logger

	status         byte // running status latch, 0 = none
	expectedLength int  // total bytes (incl. status) for the in-progress event
	cur            [4]byte
	curUsed        int
	prevTime       float64
}

// New returns a Parser that appends completed events to events and mirrors
// every incoming byte into book for note-count tracking.
func New(events *buffer.Buffer[event.Event], book *notebook.Book, logger *slog.Logger) *Parser {
	return &Parser{events: events, book: book, logger: logger}
}

// Reset clears the parser's running state and latches prevTime, matching
// the mode-entry action "clear sequence, reset parser state, latch
// prev_time = now" on transition to Record.
func (p *Parser) Reset(prevTime float64) {
	p.status = 0
	p.expectedLength = 0
	p.curUsed = 0
	p.prevTime = prevTime
}

// Flush closes any pending SysEx and commits any partial event, matching
// the mode-exit action when leaving Record.
func (p *Parser) Flush(timeNow float64) {
	if p.status == sysexOpen {
		if p.curUsed < 4 {
			p.cur[p.curUsed] = sysexClose
			p.curUsed++
		}
		p.commit(timeNow)
	} else if p.curUsed >= 2 {
		// A bare pre-seeded running-status byte (curUsed == 1) carries
		// no data and is not a real partial event.
		p.commit(timeNow)
	}
	p.status = 0
	p.curUsed = 0
}

// Feed processes one incoming byte. timeNow is the host timestamp used to
// compute the delta of any event committed as a result.
func (p *Parser) Feed(b byte, timeNow float64) {
	p.book.ObserveByte(int(b))

	if b == activeSensing {
		return
	}
	if b >= 128 {
		p.handleStatus(b, timeNow)
		return
	}
	p.handleData(b, timeNow)
}

func (p *Parser) handleStatus(b byte, timeNow float64) {
	// Tie-break runs ahead of any dispatch on b, realtime bytes included:
	// a new status arriving while an in-progress non-SysEx event already
	// has data bytes commits it now, even truncated.
	if p.status != 0 && p.status != sysexOpen && p.curUsed >= 2 {
		p.logger.Warn("truncated midi message")
		p.commit(timeNow)
		p.status = 0
		p.curUsed = 0
	}

	if b >= 248 && b != activeSensing {
		// Stand-alone one-byte real-time event: commit immediately,
		// leave running status (and any in-progress event) untouched.
		var realtime [4]byte
		realtime[0] = b
		prevTime, ok := event.AppendFromBytes(p.events, realtime[:1], timeNow, p.prevTime)
		if !ok {
			p.logger.Warn("bug: event buffer growth failed, sequence reset")
			return
		}
		p.prevTime = prevTime
		return
	}

	if p.status == sysexOpen {
		if b == sysexClose {
			p.cur[p.curUsed] = sysexClose
			p.curUsed++
			p.commit(timeNow)
			p.status = 0
			p.curUsed = 0
			return
		}
		p.logger.Warn("unterminated sysex")
		if p.curUsed < 4 {
			p.cur[p.curUsed] = sysexClose
			p.curUsed++
		}
		p.commit(timeNow)
		p.status = 0
		p.curUsed = 0
		// fall through: b is handled as a new status below
	}

	if p.status != 0 && p.curUsed >= 2 {
		p.logger.Warn("truncated midi message")
		p.commit(timeNow)
	}
	p.status = 0
	p.curUsed = 0

	switch {
	case b >= 128 && b <= 191:
		p.expectedLength = 3
	case b >= 192 && b <= 223:
		p.expectedLength = 2
	case b >= 224 && b <= 239:
		p.expectedLength = 3
	case b >= 240 && b <= 247:
		p.expectedLength = -1 // undefined; data bytes are stored in 4-byte packets, as for SysEx
	default:
		return
	}
	p.status = b
	p.cur[0] = b
	p.curUsed = 1
}

func (p *Parser) handleData(b byte, timeNow float64) {
	switch {
	case p.status == sysexOpen || p.expectedLength < 0:
		p.cur[p.curUsed] = b
		p.curUsed++
		if p.curUsed == 4 {
			p.commit(timeNow)
			p.curUsed = 0
		}
	case p.status != 0:
		p.cur[p.curUsed] = b
		p.curUsed++
		if p.curUsed == p.expectedLength {
			p.commit(timeNow)
			// Preserve running status: pre-seed the next event.
			p.cur[0] = p.status
			p.curUsed = 1
		}
	}
}

func (p *Parser) commit(timeNow float64) {
	newPrevTime, ok := event.AppendFromBytes(p.events, p.cur[:p.curUsed], timeNow, p.prevTime)
	if !ok {
		p.logger.Warn("bug: event buffer growth failed, sequence reset")
		return
	}
	p.prevTime = newPrevTime
}

// TruncateByte implements the error-handling policy for out-of-range float
// input during Record-mode byte ingestion: bytewise-truncate, silently
// rounding non-integer values.
func TruncateByte(v float64) byte {
	i := int64(v)
	return byte(uint8(i))
}
