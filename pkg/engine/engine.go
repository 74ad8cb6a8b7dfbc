// Package engine implements the top-level mode state machine: the five
// transport modes (Idle, Record, Play, SlavePlay, PlayOnce), their entry and
// exit actions, and the command surface a host drives it with.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zurustar/midiseq/pkg/buffer"
	"github.com/zurustar/midiseq/pkg/event"
	"github.com/zurustar/midiseq/pkg/fileutil"
	"github.com/zurustar/midiseq/pkg/midiparser"
	"github.com/zurustar/midiseq/pkg/notebook"
)

// Mode is one of the engine's five transport states.
type Mode int

const (
	Idle Mode = iota
	Record
	Play
	SlavePlay
	// PlayOnce is the dump-triggered variant: plays the whole sequence
	// immediately, byte by byte, ignoring the loop setting.
	PlayOnce
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Record:
		return "record"
	case Play:
		return "play"
	case SlavePlay:
		return "slave-play"
	case PlayOnce:
		return "play-once"
	default:
		return "unknown"
	}
}

// Clock is the host's scheduled-callback collaborator: one outstanding call
// at a time, replacing any previous one.
type Clock interface {
	// Delay schedules fn to fire after delayMS milliseconds.
	Delay(delayMS float64, fn func())
	// Unset cancels any pending call; a no-op if none is pending.
	Unset()
}

// Outlet is the host's byte-sink collaborator.
type Outlet interface {
	// Emit sends one MIDI byte out the primary outlet.
	Emit(b byte)
	// Bang sends an end-of-sequence signal out a secondary outlet.
	Bang()
}

// FileDialog is the host's file-chooser collaborator, consulted by Click.
type FileDialog interface {
	Choose() (path string, ok bool)
}

var (
	ErrFileNotFound       = errors.New("engine: file not found")
	ErrUnrecognizedFormat = errors.New("engine: unrecognized sequence file format")
	ErrUnsupportedSaveExt = errors.New("engine: can only save to .txt or .mid")
	ErrNotImplemented     = errors.New("engine: not implemented")
)

const tailChainEpsilon = 0.0001 // ms; see Design Notes on tail-chaining

// Engine is the MIDI sequence engine: mode state machine, clock driver, and
// slave-tick input, owning the event buffer, tempo map, and note book.
type Engine struct {
	mode Mode

	events   *buffer.Buffer[event.Event]
	tempoMap *buffer.Buffer[event.TempoEntry]
	book     *notebook.Book
	parser   *midiparser.Parser

	clock    Clock
	watchdog Clock
	outlet   Outlet
	logger   *slog.Logger
	files    fileutil.FileSystem
	dialog   FileDialog
	now      func() float64

	prevTime      float64 // 0 means paused/not running
	clockDelay    float64 // the delay last handed to clock.Delay
	clockActive   bool
	playhead      int
	nextScoreTime float64
	timescale     float64
	newTimescale  float64
	loop          bool
	defaultName   string

	slavePrevTime float64

	// timescaleHook and Goto reserve the interface shape of the original's
	// commented-out midi_hook/midi_goto; neither is implemented (spec's
	// explicit open question), and timescaleHook is always nil.
	timescaleHook func(ms float64) float64
}

// New constructs an Engine. now returns the current host time in
// milliseconds; clock drives primary playback scheduling, watchdog detects
// stale slave ticks.
func New(clock, watchdog Clock, outlet Outlet, logger *slog.Logger, files fileutil.FileSystem, dialog FileDialog, now func() float64) *Engine {
	events := buffer.New[event.Event]()
	book := notebook.New()
	return &Engine{
		mode:         Idle,
		events:       events,
		tempoMap:     buffer.New[event.TempoEntry](),
		book:         book,
		parser:       midiparser.New(events, book, logger),
		clock:        clock,
		watchdog:     watchdog,
		outlet:       outlet,
		logger:       logger,
		files:        files,
		dialog:       dialog,
		now:          now,
		timescale:    1,
		newTimescale: 1,
	}
}

// Mode returns the engine's current transport mode.
func (e *Engine) Mode() Mode { return e.mode }

// Events exposes the recorded/loaded sequence for inspection (dump, save).
func (e *Engine) Events() []event.Event { return e.events.Slice() }

// Goto is reserved but unimplemented, per the spec's explicit open question
// about the source's disabled absolute-seek operation.
func (e *Engine) Goto(ms float64) error {
	return ErrNotImplemented
}

// transition runs the exit action for the current mode, clears any
// scheduled clocks, runs the entry action for to, and adopts it.
func (e *Engine) transition(to Mode) {
	switch e.mode {
	case Record:
		e.parser.Flush(e.nowOr(0))
	case Play, SlavePlay:
		e.drainPanic()
	}
	e.clock.Unset()
	e.watchdog.Unset()
	e.clockActive = false

	switch to {
	case Record:
		e.events.Clear()
		e.tempoMap.Clear()
		e.parser.Reset(e.nowOr(0))
		e.prevTime = e.nowOr(0)
	case Play:
		e.playhead = 0
		if e.events.Len() == 0 {
			e.mode = Idle
			return
		}
		ts := e.newTimescale
		if ts <= 0 {
			ts = 1
		}
		e.timescale = ts
		delta := e.events.At(0).Delta
		e.nextScoreTime = delta
		e.scheduleDelay(delta * e.timescale)
	case SlavePlay:
		e.playhead = 0
		e.slavePrevTime = 0
	case PlayOnce, Idle:
		// no further entry action
	}
	e.mode = to
}

// scheduleDelay clamps delayMS to >=0, records it for Pause's "remaining
// delay" bookkeeping, latches prevTime, and asks the clock to fire
// onClockTick after it.
func (e *Engine) scheduleDelay(delayMS float64) {
	if delayMS < 0 {
		delayMS = 0
	}
	e.clockDelay = delayMS
	e.prevTime = e.nowOr(0)
	e.clockActive = true
	e.clock.Delay(delayMS, e.onClockTick)
}

func (e *Engine) nowOr(fallback float64) float64 {
	if e.now == nil {
		return fallback
	}
	return e.now()
}

func (e *Engine) drainPanic() {
	for _, off := range e.book.Panic() {
		e.outlet.Emit(off.Status)
		e.outlet.Emit(off.Pitch)
		e.outlet.Emit(off.Velocity)
	}
}

// Record enters Record mode, clearing the existing sequence.
func (e *Engine) Record() { e.transition(Record) }

// Play enters Play mode at the current timescale.
func (e *Engine) Play() { e.transition(Play) }

// Start enters SlavePlay mode, awaiting external ticks.
func (e *Engine) Start() { e.transition(SlavePlay) }

// Stop leaves whatever mode is active, silencing any sounding notes.
func (e *Engine) Stop() {
	e.playhead = 0
	e.nextScoreTime = 0
	e.transition(Idle)
	e.drainPanic()
}

// Pause freezes Play mode; a no-op anywhere else or if already paused.
func (e *Engine) Pause() {
	if e.mode != Play || e.prevTime == 0 {
		return
	}
	elapsed := e.nowOr(0) - e.prevTime
	remaining := e.clockDelay - elapsed
	if remaining < 0 {
		remaining = 0
	}
	e.clockDelay = remaining
	e.clock.Unset()
	e.clockActive = false
	e.prevTime = 0
}

// Continue resumes a paused Play or Record.
func (e *Engine) Continue() {
	switch e.mode {
	case Play:
		if e.prevTime != 0 {
			return
		}
		e.scheduleDelay(e.clockDelay)
	case Record:
		e.prevTime = e.nowOr(0)
	}
}

// SetLoop toggles auto-restart on end-of-sequence.
func (e *Engine) SetLoop(on bool) { e.loop = on }

// Speed retimes playback; percent <= an epsilon behaves as Pause.
func (e *Engine) Speed(percent float64) {
	const epsilonPercent = 1e-9
	if percent <= epsilonPercent {
		e.Pause()
		return
	}
	newTimescale := 100.0 / percent
	if e.clockActive {
		elapsed := e.nowOr(0) - e.prevTime
		remaining := e.clockDelay - elapsed
		if remaining < 0 {
			remaining = 0
		}
		remaining = remaining * newTimescale / e.timescale
		if remaining < 0 {
			remaining = 0
		}
		e.clock.Unset()
		e.scheduleDelay(remaining)
	}
	e.timescale = newTimescale
	e.newTimescale = newTimescale
}

// Panic emits a NoteOff for every currently-counted sounding note, without
// changing mode.
func (e *Engine) Panic() { e.drainPanic() }

// Dump emits the whole sequence immediately, byte by byte, through the
// outlet, ignoring timing and the loop setting (the "Play-Once" mode).
func (e *Engine) Dump() {
	if e.events.Len() == 0 {
		return
	}
	e.transition(PlayOnce)
	for i := 0; i < e.events.Len(); i++ {
		if e.mode != PlayOnce {
			return
		}
		ev := e.events.At(i)
		for _, b := range event.IterBytes(ev) {
			e.outlet.Emit(b)
			e.book.ObserveByte(int(b))
			if e.mode != PlayOnce {
				return
			}
		}
	}
	if e.mode == PlayOnce {
		e.transition(Idle)
	}
}

// Float implements the `float v` command: in Record mode, v is truncated to
// a byte and fed to the parser; otherwise nonzero begins Play and zero stops
// (with panic).
func (e *Engine) Float(v float64) {
	if e.mode == Record {
		e.parser.Feed(midiparser.TruncateByte(v), e.nowOr(0))
		return
	}
	if v == 0 {
		e.Stop()
		return
	}
	e.Play()
}

// Click opens the host's file chooser and, if a path is chosen, opens it.
func (e *Engine) Click() {
	if e.dialog == nil {
		return
	}
	path, ok := e.dialog.Choose()
	if !ok {
		return
	}
	if err := e.Open(path); err != nil {
		e.logger.Warn("open failed after click", slog.String("path", path), slog.Any("error", err))
	}
}

// Save writes the sequence to name: ".mid" (case-sensitive) selects the SMF
// writer, ".txt" selects the text writer; any other extension is rejected.
func (e *Engine) Save(name string) error {
	switch {
	case strings.HasSuffix(name, ".mid"):
		return e.saveSMF(name)
	case strings.HasSuffix(name, ".txt"):
		return e.saveText(name)
	default:
		e.logger.Warn("can only save to .txt or .mid", slog.String("path", name))
		return fmt.Errorf("%w: %s", ErrUnsupportedSaveExt, name)
	}
}
