// Package smf implements a two-pass Standard MIDI File reader and a
// single-track format-1 writer: variable-length quantities, chunk framing,
// running status, and Tempo/Time-Signature/Track-Name/End-of-Track
// meta-event handling.
package smf

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/zurustar/midiseq/pkg/event"
)

// Default constants for division and tempo, matching the values the format
// itself defaults to absent any Tempo meta-event.
const (
	DefaultTicksPerBeat  = 192
	DefaultMicrosPerBeat = 500000 // 120 BPM
)

const (
	metaTempo     = 0x51
	metaTimeSig   = 0x58
	metaTrackName = 0x03
	metaEndOfTrack = 0x2F

	maxSysexScratch = 4096 // compile-time limit; longer payloads are skipped without buffering
)

// Errors surfaced from Read/Parse. These are the only Read-path errors that
// propagate to the caller; everything else (truncated events, declared vs.
// actual track-count mismatch) is a logged warning and a best-effort
// continuation, per the error-handling design.
var (
	ErrBadHeader  = errors.New("smf: bad header")
	ErrShortChunk = errors.New("smf: truncated chunk")
	ErrBadFormat  = errors.New("smf: unsupported division")
)

// Result is everything Pass 2 produces: the merged, sorted channel-event
// sequence with deltas still expressed as absolute score-time, and the
// sorted tempo map, ready for tempo folding (see package tempo).
type Result struct {
	Events          []event.Event
	Tempo           []event.TempoEntry
	Format          int
	PPQ             int // ticks per quarter-note; zero if SMPTE division is in effect
	FramesPerSecond int // nonzero only in SMPTE division mode
	TicksPerFrame   int
	TrackName       string
	// TrackCountMismatch is set when the header declared more tracks than
	// the file actually contained; the caller logs this once.
	TrackCountMismatch bool
}

// ReadFile reads and parses path as an SMF.
func ReadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse runs the two-pass reader over an in-memory SMF image.
func Parse(data []byte) (*Result, error) {
	hdr, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	tracks, trackCountMismatch := splitTracks(data[14:], hdr.trackCount)

	res := &Result{
		Format:             hdr.format,
		PPQ:                hdr.ppq,
		FramesPerSecond:    hdr.framesPerSecond,
		TicksPerFrame:      hdr.ticksPerFrame,
		TrackCountMismatch: trackCountMismatch,
	}

	var events []event.Event
	var tempi []event.TempoEntry
	var trackName string

	for _, tr := range tracks {
		evs, tmp, name := parseTrack(tr, hdr.ppq)
		events = append(events, evs...)
		tempi = append(tempi, tmp...)
		if trackName == "" && name != "" {
			trackName = name
		}
	}

	if hdr.ppq == 0 {
		// SMPTE (frames-per-second) division: the tick rate is fixed by the
		// frame rate and never varies with Tempo meta-events, so any such
		// events found in the file are irrelevant and dropped.
		tempi = []event.TempoEntry{{ScoreTime: 0, ScoreTicksPerSecond: float64(hdr.framesPerSecond * hdr.ticksPerFrame)}}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Delta < events[j].Delta })
	sort.SliceStable(tempi, func(i, j int) bool { return tempi[i].ScoreTime < tempi[j].ScoreTime })

	res.Events = events
	res.Tempo = tempi
	res.TrackName = trackName
	return res, nil
}

type header struct {
	format          int
	trackCount      int
	ppq             int
	framesPerSecond int
	ticksPerFrame   int
}

func parseHeader(data []byte) (header, error) {
	var h header
	if len(data) < 14 || string(data[0:4]) != "MThd" {
		return h, ErrBadHeader
	}
	length := be32(data[4:8])
	if length < 6 {
		return h, ErrBadHeader
	}
	format := int(be16(data[8:10]))
	if format < 0 || format > 2 {
		return h, ErrBadHeader
	}
	if format == 2 {
		// Format 2 (independent per-track sequences) is silently demoted to
		// format 1: this engine plays one flat merged sequence and has no
		// use for per-track independence. Documented deliberate behaviour,
		// not a bug (see design notes' open question).
		format = 1
	}
	h.format = format
	h.trackCount = int(be16(data[10:12]))

	division := be16(data[12:14])
	if division == 0 {
		return h, ErrBadFormat
	}
	if division&0x8000 != 0 {
		h.framesPerSecond = -int(int8(division >> 8))
		h.ticksPerFrame = int(division & 0xFF)
	} else {
		h.ppq = int(division)
	}
	return h, nil
}

// splitTracks scans for MTrk chunks, skipping any chunk whose tag doesn't
// match (with a warning) and silently skipping zero-length chunks. It
// returns one byte slice per surviving track and whether fewer tracks were
// found than the header declared.
func splitTracks(data []byte, declared int) ([][]byte, bool) {
	var tracks [][]byte
	pos := 0
	for pos+8 <= len(data) {
		tag := string(data[pos : pos+4])
		length := int(be32(data[pos+4 : pos+8]))
		pos += 8
		if tag != "MTrk" {
			// Unknown chunk: skip it by its declared length and keep
			// scanning; if that would run past the buffer, stop.
			slog.Warn("smf: skipping chunk that is not MTrk", slog.String("tag", tag))
			if pos+length > len(data) {
				break
			}
			pos += length
			continue
		}
		end := pos + length
		if end > len(data) {
			end = len(data)
		}
		if length > 0 {
			tracks = append(tracks, data[pos:end])
		}
		pos = end
	}
	return tracks, len(tracks) < declared
}

func parseTrack(data []byte, ppq int) (events []event.Event, tempi []event.TempoEntry, trackName string) {
	pos := 0
	var runningStatus byte
	var tick float64
	complete := false
	defer func() {
		if !complete {
			slog.Warn("smf: truncated or malformed track event, rest of track skipped")
		}
	}()

	for pos < len(data) {
		delta, n, ok := readVLQ(data[pos:])
		if !ok {
			return
		}
		pos += n
		tick += float64(delta)

		if pos >= len(data) {
			return
		}
		b := data[pos]

		if b == 0xFF {
			pos++
			if pos >= len(data) {
				return
			}
			metaType := data[pos]
			pos++
			length, n, ok := readVLQ(data[pos:])
			if !ok {
				return
			}
			pos += n
			if pos+length > len(data) {
				return
			}
			payload := data[pos : pos+length]
			pos += length

			switch metaType {
			case metaTempo:
				if length >= 3 {
					micros := int(payload[0])<<16 | int(payload[1])<<8 | int(payload[2])
					tempi = append(tempi, event.TempoEntry{ScoreTime: tick, ScoreTicksPerSecond: ticksPerSecond(micros, ppq)})
				}
			case metaTrackName:
				if trackName == "" && length > 0 {
					trackName = string(payload)
				}
			case metaEndOfTrack:
				complete = true
				return
			case metaTimeSig:
				// Time-signature affects the original's internal user-tick
				// scaling only; this engine folds tempo directly from PPQ
				// ticks, so the payload carries no further information we
				// need. Parsed (to keep chunk framing correct) and dropped.
			}
			continue
		}

		if b == 0xF0 || b == 0xF7 {
			pos++
			length, n, ok := readVLQ(data[pos:])
			if !ok {
				return
			}
			pos += n
			// SysEx payloads are skipped, never stored: the SMF/text output
			// paths do not round-trip SysEx.
			if length > maxSysexScratch {
				pos += length
			} else if pos+length <= len(data) {
				pos += length
			} else {
				return
			}
			continue
		}

		var status byte
		if b >= 0x80 {
			status = b
			pos++
		} else {
			status = runningStatus
		}
		if status == 0 {
			return
		}
		dataBytes := 2
		if status >= 0xC0 && status <= 0xDF {
			dataBytes = 1
		}
		if pos+dataBytes > len(data) {
			return
		}
		msg := make([]byte, 0, 4)
		msg = append(msg, status)
		msg = append(msg, data[pos:pos+dataBytes]...)
		pos += dataBytes
		runningStatus = status

		events = append(events, event.New(tick, msg...))
	}
	complete = true
	return
}

func ticksPerSecond(microsPerBeat, ppq int) float64 {
	if microsPerBeat <= 0 {
		microsPerBeat = DefaultMicrosPerBeat
	}
	if ppq <= 0 {
		ppq = DefaultTicksPerBeat
	}
	return float64(ppq) * 1e6 / float64(microsPerBeat)
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// readVLQ decodes a variable-length quantity of at most four bytes from the
// front of data, returning the value, the number of bytes consumed, and
// whether decoding succeeded.
func readVLQ(data []byte) (value int, consumed int, ok bool) {
	for i := 0; i < 4 && i < len(data); i++ {
		b := data[i]
		value = (value << 7) | int(b&0x7F)
		consumed++
		if b&0x80 == 0 {
			return value, consumed, true
		}
	}
	return 0, 0, false
}

// String renders minimal diagnostic context for a header parse failure.
func (h header) String() string {
	return fmt.Sprintf("format=%d tracks=%d ppq=%d", h.format, h.trackCount, h.ppq)
}
