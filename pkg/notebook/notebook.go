// Package notebook tracks currently-sounding notes so playback can always be
// silenced cleanly, regardless of how it was interrupted.
package notebook

// NoteOff is one synthesised (status, pitch, velocity) triple emitted by a
// panic drain.
type NoteOff struct {
	Status  byte
	Pitch   byte
	Velocity byte
}

// Book is a fixed 16x128 grid of currently-sounding note counts, plus the
// running-byte-stream latch needed to update it one byte at a time.
type Book struct {
	counts [16][128]int

	pendingStatus  byte // 0 means no latch
	pendingChannel byte
	pendingPitch   int // -1 means no pitch buffered yet
}

// New returns an empty Book.
func New() *Book {
	b := &Book{}
	b.pendingPitch = -1
	return b
}

// ObserveByte advances the byte-level note tracker by one output byte. A
// status byte (>=128) latches note status/channel when its high nibble is 8
// or 9; any other status resets the latch. Once a pitch is buffered, the
// next data byte is treated as velocity and the count is adjusted.
func (b *Book) ObserveByte(v int) {
	if v < 0 || v > 255 {
		b.pendingPitch = -1
		return
	}
	by := byte(v)

	if by >= 128 {
		highNibble := by >> 4
		if highNibble == 0x8 || highNibble == 0x9 {
			b.pendingStatus = highNibble
			b.pendingChannel = by & 0x0F
			b.pendingPitch = -1
		} else {
			b.pendingStatus = 0
			b.pendingPitch = -1
		}
		return
	}

	// Data byte.
	if b.pendingStatus == 0 {
		return
	}
	if b.pendingPitch < 0 {
		b.pendingPitch = int(by)
		return
	}
	velocity := by
	pitch := b.pendingPitch
	channel := b.pendingChannel
	status := b.pendingStatus
	b.pendingPitch = -1

	if status == 0x9 && velocity != 0 {
		b.counts[channel][pitch]++
	} else {
		b.decrement(channel, pitch)
	}
}

func (b *Book) decrement(channel byte, pitch int) {
	if b.counts[channel][pitch] > 0 {
		b.counts[channel][pitch]--
	}
}

// Panic produces one NoteOff per still-counted note-on, in channel order
// (0..15) then pitch order (0..127), as many times as the counter indicates,
// and resets all counts. The caller is responsible for emitting the
// returned NoteOffs to the Outlet; buffering them into a slice first (rather
// than emitting from inside the scan) keeps the drain complete even if the
// outlet callback misbehaves.
func (b *Book) Panic() []NoteOff {
	var offs []NoteOff
	for ch := 0; ch < 16; ch++ {
		for pitch := 0; pitch < 128; pitch++ {
			for n := b.counts[ch][pitch]; n > 0; n-- {
				offs = append(offs, NoteOff{
					Status:   0x80 | byte(ch),
					Pitch:    byte(pitch),
					Velocity: 0,
				})
			}
		}
	}
	b.Clear()
	return offs
}

// Clear zeroes the grid and resets the byte-level latch.
func (b *Book) Clear() {
	b.counts = [16][128]int{}
	b.pendingStatus = 0
	b.pendingPitch = -1
}
