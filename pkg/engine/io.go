package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zurustar/midiseq/pkg/event"
	"github.com/zurustar/midiseq/pkg/seqtext"
	"github.com/zurustar/midiseq/pkg/smf"
	"github.com/zurustar/midiseq/pkg/tempo"
)

// Open loads a sequence from name: SMF is attempted first, falling back to
// the text format. Failure (file not found, or neither format recognises
// the content) leaves the current sequence unchanged.
func (e *Engine) Open(name string) error {
	data, err := e.files.ReadFile(name)
	if err != nil {
		e.logger.Warn(fmt.Sprintf("file '%s' not found", name))
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	if res, smfErr := smf.Parse(data); smfErr == nil {
		e.loadFromSMF(res)
		e.defaultName = name
		return nil
	}

	events, textErr := seqtext.Decode(string(data), e.logger)
	if textErr != nil {
		e.logger.Warn("unrecognized sequence file format", slog.String("path", name))
		return fmt.Errorf("%w: %s", ErrUnrecognizedFormat, name)
	}
	e.loadEvents(events)
	e.defaultName = name
	return nil
}

func (e *Engine) loadFromSMF(res *smf.Result) {
	e.loadEvents(res.Events)

	e.tempoMap.Clear()
	for _, t := range res.Tempo {
		e.tempoMap.Append(t)
	}

	defaultRate := float64(res.PPQ) * 1e6 / float64(smf.DefaultMicrosPerBeat)
	if res.PPQ == 0 {
		defaultRate = float64(res.FramesPerSecond * res.TicksPerFrame)
	}
	tempo.Fold(e.events.Slice(), res.Tempo, defaultRate)

	if res.TrackCountMismatch {
		e.logger.Warn("smf declared more tracks than it contains")
	}
}

func (e *Engine) loadEvents(events []event.Event) {
	e.events.Clear()
	for _, ev := range events {
		e.events.Append(ev)
	}
}

func (e *Engine) saveSMF(name string) error {
	data, err := smf.Write(e.events.Slice(), smf.WriteOptions{
		PPQ:           smf.DefaultTicksPerBeat,
		MicrosPerBeat: smf.DefaultMicrosPerBeat,
	})
	if err != nil {
		return err
	}
	return e.writeFile(name, data)
}

func (e *Engine) saveText(name string) error {
	text := seqtext.Encode(e.events.Slice())
	return e.writeFile(name, []byte(text))
}

func (e *Engine) writeFile(name string, data []byte) error {
	path := name
	if e.files != nil && e.files.BasePath() != "" && !filepath.IsAbs(name) {
		path = filepath.Join(e.files.BasePath(), name)
	}
	return os.WriteFile(path, data, 0o644)
}
