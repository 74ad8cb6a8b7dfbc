package midiparser

import (
	"log/slog"
	"io"
	"testing"

	"github.com/zurustar/midiseq/pkg/buffer"
	"github.com/zurustar/midiseq/pkg/event"
	"github.com/zurustar/midiseq/pkg/notebook"
)

func newTestParser() (*Parser, *buffer.Buffer[event.Event]) {
	events := buffer.New[event.Event]()
	book := notebook.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(events, book, logger), events
}

func TestS1_RecordSingleNoteOnNoteOff(t *testing.T) {
	p, events := newTestParser()
	p.Reset(0)
	seq := []byte{144, 60, 100, 128, 60, 0}
	for i, b := range seq {
		p.Feed(b, float64(i))
	}
	p.Flush(float64(len(seq)))

	if events.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", events.Len())
	}
	want0 := event.New(0, 144, 60, 100)
	want1 := event.New(0, 128, 60, 0)
	if events.At(0).Bytes != want0.Bytes {
		t.Errorf("event 0 = %v, want %v", events.At(0).Bytes, want0.Bytes)
	}
	if events.At(1).Bytes != want1.Bytes {
		t.Errorf("event 1 = %v, want %v", events.At(1).Bytes, want1.Bytes)
	}
}

func TestS2_RunningStatusRetained(t *testing.T) {
	p, events := newTestParser()
	p.Reset(0)
	seq := []byte{144, 60, 100, 62, 100}
	for i, b := range seq {
		p.Feed(b, float64(i))
	}
	p.Flush(float64(len(seq)))

	if events.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", events.Len())
	}
	want0 := event.New(0, 144, 60, 100)
	want1 := event.New(0, 144, 62, 100)
	if events.At(0).Bytes != want0.Bytes {
		t.Errorf("event 0 = %v, want %v", events.At(0).Bytes, want0.Bytes)
	}
	if events.At(1).Bytes != want1.Bytes {
		t.Errorf("event 1 = %v, want %v (running status)", events.At(1).Bytes, want1.Bytes)
	}
}

func TestS3_SysExPacketisation(t *testing.T) {
	p, events := newTestParser()
	p.Reset(0)
	seq := []byte{240, 1, 2, 3, 4, 5, 6, 7, 247}
	for i, b := range seq {
		p.Feed(b, float64(i))
	}
	p.Flush(float64(len(seq)))

	if events.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", events.Len())
	}
	want0 := event.New(0, 240, 1, 2, 3)
	want1 := event.New(0, 4, 5, 6, 7)
	want2 := event.New(0, 247)
	if events.At(0).Bytes != want0.Bytes {
		t.Errorf("event 0 = %v, want %v", events.At(0).Bytes, want0.Bytes)
	}
	if events.At(1).Bytes != want1.Bytes {
		t.Errorf("event 1 = %v, want %v", events.At(1).Bytes, want1.Bytes)
	}
	if events.At(2).Bytes != want2.Bytes {
		t.Errorf("event 2 = %v, want %v", events.At(2).Bytes, want2.Bytes)
	}
}

func TestActiveSensing_IsIgnoredEntirely(t *testing.T) {
	p, events := newTestParser()
	p.Reset(0)
	seq := []byte{144, 60, 254, 100}
	for i, b := range seq {
		p.Feed(b, float64(i))
	}
	p.Flush(float64(len(seq)))

	if events.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", events.Len())
	}
	want := event.New(0, 144, 60, 100)
	if events.At(0).Bytes != want.Bytes {
		t.Errorf("event 0 = %v, want %v", events.At(0).Bytes, want.Bytes)
	}
}

func TestStandaloneRealtimeByte_CommitsImmediatelyWithoutDisturbingRunningStatus(t *testing.T) {
	p, events := newTestParser()
	p.Reset(0)
	seq := []byte{144, 60, 100, 248, 62, 100}
	for i, b := range seq {
		p.Feed(b, float64(i))
	}
	p.Flush(float64(len(seq)))

	if events.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", events.Len())
	}
	wantClock := event.New(0, 248)
	if events.At(1).Bytes != wantClock.Bytes {
		t.Errorf("event 1 = %v, want %v", events.At(1).Bytes, wantClock.Bytes)
	}
	wantRunning := event.New(0, 144, 62, 100)
	if events.At(2).Bytes != wantRunning.Bytes {
		t.Errorf("event 2 = %v, want %v (running status preserved across realtime byte)", events.At(2).Bytes, wantRunning.Bytes)
	}
}

func TestRealtimeByte_FlushesTruncatedMessageFirst(t *testing.T) {
	p, events := newTestParser()
	p.Reset(0)
	// A truncated NoteOn (status + one data byte, short of the 3 it needs)
	// is interrupted by a realtime byte, then two fresh data bytes arrive.
	// The truncated NoteOn must be committed (and logged) before the
	// realtime byte is handled, not silently extended by the later bytes.
	seq := []byte{0x90, 0x3C, 0xF8, 0x40, 0x7F}
	for i, b := range seq {
		p.Feed(b, float64(i))
	}
	p.Flush(float64(len(seq)))

	if events.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", events.Len())
	}
	wantTruncated := event.New(0, 0x90, 0x3C)
	if events.At(0).Bytes != wantTruncated.Bytes {
		t.Errorf("event 0 = %v, want %v (truncated NoteOn committed early)", events.At(0).Bytes, wantTruncated.Bytes)
	}
	wantClock := event.New(0, 0xF8)
	if events.At(1).Bytes != wantClock.Bytes {
		t.Errorf("event 1 = %v, want %v", events.At(1).Bytes, wantClock.Bytes)
	}
}

func TestUnterminatedSysEx_ImplicitlyClosesAndLogs(t *testing.T) {
	p, events := newTestParser()
	p.Reset(0)
	// SysEx opened, two data bytes, then a new status arrives without 247.
	seq := []byte{240, 1, 2, 144, 60, 100}
	for i, b := range seq {
		p.Feed(b, float64(i))
	}
	p.Flush(float64(len(seq)))

	if events.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", events.Len())
	}
	wantSysex := event.New(0, 240, 1, 2, 247)
	if events.At(0).Bytes != wantSysex.Bytes {
		t.Errorf("event 0 = %v, want %v", events.At(0).Bytes, wantSysex.Bytes)
	}
}
