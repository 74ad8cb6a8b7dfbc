package engine

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/midiseq/pkg/event"
)

// TestPropertyFive_SpeedMonotonicityProperty is spec property 5, generalised
// over arbitrary descending percent pairs: for speed p1 then p2 with
// 0 < p2 < p1, the remaining delay strictly increases.
func TestPropertyFive_SpeedMonotonicityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("remaining delay strictly increases as speed percent decreases", prop.ForAll(
		func(p1, drop float64) bool {
			p2 := p1 - drop
			if p2 <= 0 {
				return true // degenerates to Pause, outside this property's scope
			}
			now := 0.0
			e, clock, _, _ := newTestEngine(t, &now)
			e.loadEvents([]event.Event{
				event.New(0, 144, 60, 100),
				event.New(1000, 128, 60, 0),
			})
			e.Play()
			clock.Fire()

			e.Speed(p1)
			d1 := clock.delay
			e.Speed(p2)
			d2 := clock.delay
			return d2 > d1
		},
		gen.Float64Range(1, 99),
		gen.Float64Range(0.1, 50),
	))

	properties.TestingRun(t)
}

// TestPropertySix_IdempotentStopProperty is spec property 6: stop; stop is
// indistinguishable from stop, for any sequence of prior events played.
func TestPropertySix_IdempotentStopProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("a second stop emits nothing beyond the first", prop.ForAll(
		func(pitches []int) bool {
			now := 0.0
			e, clock, _, outlet := newTestEngine(t, &now)
			var evs []event.Event
			for _, p := range pitches {
				evs = append(evs, event.New(0, 0x90, byte(p%128), 100))
			}
			if len(evs) == 0 {
				evs = []event.Event{event.New(0, 0x90, 60, 100)}
			}
			e.loadEvents(evs)
			e.Play()
			clock.Fire()

			e.Stop()
			afterFirst := len(outlet.bytes)
			e.Stop()
			afterSecond := len(outlet.bytes)

			if afterFirst != afterSecond {
				return false
			}
			return len(e.book.Panic()) == 0
		},
		gen.SliceOfN(5, gen.IntRange(0, 127)),
	))

	properties.TestingRun(t)
}

// TestPropertySeven_LoopContinuityProperty is spec property 7: with loop on,
// after the last event an implicit play fires and the next event emitted
// equals the first event of the sequence, for sequences of varying length.
func TestPropertySeven_LoopContinuityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("looping re-emits the first event unchanged", prop.ForAll(
		func(pitches []int) bool {
			if len(pitches) == 0 {
				return true
			}
			now := 0.0
			e, clock, _, outlet := newTestEngine(t, &now)
			var evs []event.Event
			for i, p := range pitches {
				evs = append(evs, event.New(float64(i*10), 0x90, byte(p%128), 100))
			}
			e.loadEvents(evs)
			e.SetLoop(true)
			e.Play()

			for i := 0; i < len(evs); i++ {
				clock.Fire()
			}
			firstPass := append([]byte(nil), outlet.bytes...)

			if e.Mode() != Play {
				return false
			}
			clock.Fire()
			if len(outlet.bytes) < len(firstPass)+3 {
				return false
			}
			secondFirstEvent := outlet.bytes[len(firstPass) : len(firstPass)+3]
			return string(secondFirstEvent) == string(firstPass[:3])
		},
		gen.SliceOfN(4, gen.IntRange(0, 127)),
	))

	properties.TestingRun(t)
}
