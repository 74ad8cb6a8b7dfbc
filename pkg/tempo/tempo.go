// Package tempo folds a sequence of absolute score-time deltas, as produced
// by the SMF reader, into millisecond inter-event deltas using a sorted
// tempo map.
package tempo

import "github.com/zurustar/midiseq/pkg/event"

// epsilon bounds the "at time zero" window within which tempo-map entries
// are treated as setting the initial rate rather than contributing an
// elapsed segment.
const epsilon = 1e-9

// Fold replaces each event's Delta (an absolute score-time) with a
// millisecond inter-event gap, using tempoMap (sorted by ScoreTime) to
// determine the rate in force at each point. defaultTicksPerSecond is the
// rate assumed before the first tempo-map entry, or throughout if tempoMap
// is empty. Fold mutates and returns events; it does not resort them.
func Fold(events []event.Event, tempoMap []event.TempoEntry, defaultTicksPerSecond float64) []event.Event {
	if defaultTicksPerSecond <= 0 {
		defaultTicksPerSecond = 1
	}
	coef := 1000.0 / defaultTicksPerSecond
	prevScoreTime := 0.0

	idx := 0
	for idx < len(tempoMap) && tempoMap[idx].ScoreTime < epsilon {
		coef = 1000.0 / rate(tempoMap[idx].ScoreTicksPerSecond)
		idx++
	}

	for i := range events {
		target := events[i].Delta
		clockdelta := 0.0
		for idx < len(tempoMap) && tempoMap[idx].ScoreTime <= target {
			entry := tempoMap[idx]
			clockdelta += (entry.ScoreTime - prevScoreTime) * coef
			prevScoreTime = entry.ScoreTime
			coef = 1000.0 / rate(entry.ScoreTicksPerSecond)
			idx++
		}
		clockdelta += (target - prevScoreTime) * coef
		prevScoreTime = target
		events[i].Delta = clockdelta
	}
	return events
}

func rate(ticksPerSecond float64) float64 {
	if ticksPerSecond <= 0 {
		return 1
	}
	return ticksPerSecond
}
