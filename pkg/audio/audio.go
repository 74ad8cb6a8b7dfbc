// Package audio lets a host audition a sequence: it synthesizes the MIDI
// bytes an engine.Outlet receives through a loaded SoundFont and streams the
// result to the speakers. It is a bonus harness, not part of the engine's
// own A-J components.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"
)

// SampleRate is the fixed rendering rate used for SoundFont synthesis.
const SampleRate = 44100

var (
	globalContext *audio.Context
	contextMutex  sync.Mutex
)

func sharedContext() *audio.Context {
	contextMutex.Lock()
	defer contextMutex.Unlock()
	if globalContext == nil {
		globalContext = audio.NewContext(SampleRate)
	}
	return globalContext
}

// Bridge forwards raw MIDI status/data bytes to a meltysynth synthesizer,
// reassembling channel messages the same way an engine.Outlet delivers
// them: one byte at a time, status byte first.
type Bridge struct {
	mu     sync.Mutex
	synth  *meltysynth.Synthesizer
	status byte
	data   []byte
	want   int
}

// NewBridge wraps a synthesizer.
func NewBridge(synth *meltysynth.Synthesizer) *Bridge {
	return &Bridge{synth: synth}
}

// dataLenFor returns how many data bytes follow a channel-message status
// byte, or -1 if status isn't a channel message this bridge forwards.
func dataLenFor(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0: // program change, channel pressure
		return 1
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0: // note off/on, poly pressure, control change, pitch bend
		return 2
	default:
		return -1
	}
}

// Emit implements engine.Outlet: it feeds one MIDI byte into the reassembly
// state machine, forwarding a complete message to the synthesizer as soon as
// enough data bytes have arrived.
func (b *Bridge) Emit(raw byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if raw&0x80 != 0 && raw < 0xF8 {
		b.status = raw
		b.want = dataLenFor(raw)
		b.data = b.data[:0]
		if b.want == 0 {
			b.forward()
		}
		return
	}
	if b.want <= 0 {
		return
	}
	b.data = append(b.data, raw)
	if len(b.data) >= b.want {
		b.forward()
	}
}

// Bang implements engine.Outlet; end-of-sequence carries no audio meaning.
func (b *Bridge) Bang() {}

func (b *Bridge) forward() {
	channel := int32(b.status & 0x0F)
	command := int32(b.status & 0xF0)
	var d1, d2 int32
	if len(b.data) > 0 {
		d1 = int32(b.data[0])
	}
	if len(b.data) > 1 {
		d2 = int32(b.data[1])
	}
	b.synth.ProcessMidiMessage(channel, command, d1, d2)
	b.data = b.data[:0]
}

// Player renders a Bridge's synthesizer to the speakers via ebiten's audio
// context. Close stops playback.
type Player struct {
	player *audio.Player
}

// NewPlayer loads soundfontData, builds a synthesizer, wraps it in a Bridge,
// and starts streaming playback. The returned Bridge is the engine.Outlet to
// wire in alongside (or instead of) any other outlet.
func NewPlayer(soundfontData []byte) (*Player, *Bridge, error) {
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(soundfontData))
	if err != nil {
		return nil, nil, fmt.Errorf("audio: parse soundfont: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("audio: create synthesizer: %w", err)
	}

	bridge := NewBridge(synth)
	stream := &renderStream{synth: synth}
	p, err := sharedContext().NewPlayer(stream)
	if err != nil {
		return nil, nil, fmt.Errorf("audio: create player: %w", err)
	}
	p.Play()
	return &Player{player: p}, bridge, nil
}

// Close stops playback and releases the underlying ebiten player.
func (p *Player) Close() error {
	if p.player == nil {
		return nil
	}
	return p.player.Close()
}

// renderStream implements io.Reader, pulling synthesized samples from synth
// on demand, the same pull-based shape the adopted codebase's MIDIStream
// uses for its audio.Player source.
type renderStream struct {
	synth *meltysynth.Synthesizer
}

func (s *renderStream) Read(p []byte) (int, error) {
	sampleCount := len(p) / 4 // stereo, 16-bit
	left := make([]float32, sampleCount)
	right := make([]float32, sampleCount)
	s.synth.Render(left, right)

	for i := 0; i < sampleCount; i++ {
		binary.LittleEndian.PutUint16(p[i*4:], uint16(int16(clamp(left[i])*32767)))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(int16(clamp(right[i])*32767)))
	}
	return len(p), nil
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
