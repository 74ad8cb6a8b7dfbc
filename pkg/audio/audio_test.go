package audio

import "testing"

func TestDataLenFor(t *testing.T) {
	tests := []struct {
		status byte
		want   int
	}{
		{0x90, 2}, // note on
		{0x80, 2}, // note off
		{0xB0, 2}, // control change
		{0xC0, 1}, // program change
		{0xD0, 1}, // channel pressure
		{0xE0, 2}, // pitch bend
		{0xF0, -1}, // sysex, not forwarded
	}
	for _, tt := range tests {
		if got := dataLenFor(tt.status); got != tt.want {
			t.Errorf("dataLenFor(%#x) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestBridge_BuffersNoteOnDataBytes(t *testing.T) {
	// Exercises the reassembly state machine's buffering only, since a real
	// meltysynth.Synthesizer cannot be constructed without a SoundFont; the
	// second data byte is withheld so forward() (which would need b.synth)
	// never runs.
	b := &Bridge{}
	b.Emit(0x90) // status: note on, channel 0
	if b.want != 2 || len(b.data) != 0 {
		t.Fatalf("after status byte: want=%d data=%v", b.want, b.data)
	}
	b.Emit(60) // pitch
	if len(b.data) != 1 {
		t.Fatalf("after one data byte: data=%v", b.data)
	}
}

func TestBridge_ProgramChangeExpectsOneDataByte(t *testing.T) {
	b := &Bridge{}
	b.Emit(0xC0) // program change, channel 0
	if b.want != 1 {
		t.Fatalf("want = %d, expected 1 for program change", b.want)
	}
}
