// Package seqtext implements the plain-text sequence representation: one
// semicolon-terminated record per event, each record a whitespace-separated
// list of floats (an absolute cumulative timestamp, then up to four byte
// values).
package seqtext

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zurustar/midiseq/pkg/event"
	"github.com/zurustar/midiseq/pkg/midiparser"
)

// Encode renders events as one semicolon-terminated record per line: a
// running absolute timestamp (the cumulative sum of deltas up to and
// including this event) followed by its meaningful bytes.
func Encode(events []event.Event) string {
	var b strings.Builder
	timestamp := 0.0
	for _, e := range events {
		timestamp += e.Delta
		fmt.Fprintf(&b, "%g", timestamp)
		for _, by := range event.IterBytes(e) {
			fmt.Fprintf(&b, " %d", by)
		}
		b.WriteString(";\n")
	}
	return b.String()
}

// Decode parses text into events. text must contain at least one
// semicolon-terminated record, guarding against loading an unrelated file
// form; absent that, Decode rejects it outright. A record that fails to
// parse stops decoding there: if nothing had parsed yet, the result is a
// silent empty sequence; if some records already parsed, a warning is
// logged and the events parsed so far are returned.
func Decode(text string, logger *slog.Logger) ([]event.Event, error) {
	if !strings.Contains(text, ";") {
		return nil, fmt.Errorf("seqtext: not a text sequence file")
	}

	var events []event.Event
	prevTimestamp := 0.0
	for _, rec := range strings.Split(text, ";") {
		fields := strings.Fields(rec)
		if len(fields) == 0 {
			continue
		}

		vals := make([]float64, 0, len(fields))
		bad := false
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				bad = true
				break
			}
			vals = append(vals, v)
		}
		if bad {
			if len(events) > 0 {
				logger.Warn("bad text file (truncated)")
			}
			break
		}

		timestamp := vals[0]
		delta := timestamp - prevTimestamp
		prevTimestamp = timestamp
		rest := vals[1:]
		if len(rest) > 4 {
			rest = rest[:4]
		}
		bytes := make([]byte, len(rest))
		for i, v := range rest {
			bytes[i] = midiparser.TruncateByte(v)
		}
		events = append(events, event.New(delta, bytes...))
	}
	return events, nil
}
