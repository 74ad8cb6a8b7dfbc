// Command midiseq hosts the MIDI sequence engine as a headless process: it
// wires a wall-clock Clock, a byte-sink Outlet, a logger, and a file-dialog
// stub around pkg/engine, then drives it from a line-oriented command
// script read off stdin (or -script).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/midiseq/pkg/audio"
	"github.com/zurustar/midiseq/pkg/cli"
	"github.com/zurustar/midiseq/pkg/engine"
	"github.com/zurustar/midiseq/pkg/fileutil"
	"github.com/zurustar/midiseq/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// wallClock implements engine.Clock on top of time.AfterFunc: one
// outstanding timer at a time, replacing any previous one.
type wallClock struct {
	timer *time.Timer
}

func (c *wallClock) Delay(delayMS float64, fn func()) {
	c.Unset()
	if delayMS < 0 {
		delayMS = 0
	}
	c.timer = time.AfterFunc(time.Duration(delayMS*float64(time.Millisecond)), fn)
}

func (c *wallClock) Unset() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// stdoutOutlet hex-dumps every MIDI byte to stdout, one per line. It is the
// only sink; the -sink flag does not select another.
type stdoutOutlet struct{}

func (stdoutOutlet) Emit(b byte) { fmt.Printf("outlet: %02x\n", b) }
func (stdoutOutlet) Bang()       { fmt.Println("bang") }

// teeOutlet fans an Emit/Bang pair out to two outlets, used to drive both
// the stdout dump and an audition audio.Bridge at once.
type teeOutlet struct {
	a, b engine.Outlet
}

func (t teeOutlet) Emit(x byte) { t.a.Emit(x); t.b.Emit(x) }
func (t teeOutlet) Bang()       { t.a.Bang(); t.b.Bang() }

// staticDialog answers click with a fixed configured path, the documented
// headless-host limitation for the FileDialog collaborator (SPEC §10.5).
type staticDialog struct {
	path string
}

func (d staticDialog) Choose() (string, bool) {
	if d.path == "" {
		return "", false
	}
	return d.path, true
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	if cfg.ShowHelp {
		cli.PrintHelp()
		return nil
	}
	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.GetLogger()

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	files := fileutil.NewRealFS(".")

	var outlet engine.Outlet = stdoutOutlet{}
	var audioPlayer *audio.Player
	if cfg.SoundfontPath != "" {
		data, err := os.ReadFile(cfg.SoundfontPath)
		if err != nil {
			return fmt.Errorf("reading soundfont: %w", err)
		}
		player, bridge, err := audio.NewPlayer(data)
		if err != nil {
			return fmt.Errorf("starting audition player: %w", err)
		}
		audioPlayer = player
		outlet = teeOutlet{a: outlet, b: bridge}
	}
	if audioPlayer != nil {
		defer audioPlayer.Close()
	}

	eng := engine.New(
		&wallClock{},
		&wallClock{},
		outlet,
		log,
		files,
		staticDialog{path: cfg.OpenDir},
		func() float64 { return float64(time.Now().UnixNano()) / float64(time.Millisecond) },
	)

	if cfg.OpenPath != "" {
		if err := eng.Open(cfg.OpenPath); err != nil {
			log.Warn("initial open failed", slog.String("path", cfg.OpenPath), slog.Any("error", err))
		}
	}

	script, closeScript, err := commandSource(cfg.ScriptFile)
	if err != nil {
		return err
	}
	defer closeScript()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driveCommands(ctx, eng, script)
	})
	return g.Wait()
}

// commandSource opens -script or falls back to stdin.
func commandSource(scriptFile string) (*bufio.Scanner, func(), error) {
	if scriptFile == "" {
		return bufio.NewScanner(os.Stdin), func() {}, nil
	}
	f, err := os.Open(scriptFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening script file: %w", err)
	}
	return bufio.NewScanner(f), func() { f.Close() }, nil
}

// driveCommands reads one §6.3 command per line until EOF or ctx is done.
func driveCommands(ctx context.Context, eng *engine.Engine, scanner *bufio.Scanner) error {
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		dispatch(eng, scanner.Text())
	}
	return scanner.Err()
}

func dispatch(eng *engine.Engine, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, rest := fields[0], fields[1:]
	arg := func() string {
		if len(rest) == 0 {
			return ""
		}
		return rest[0]
	}

	switch cmd {
	case "record":
		eng.Record()
	case "play":
		eng.Play()
	case "start":
		eng.Start()
	case "stop":
		eng.Stop()
	case "pause":
		eng.Pause()
	case "continue":
		eng.Continue()
	case "loop":
		eng.SetLoop(arg() == "1")
	case "speed":
		if v, err := strconv.ParseFloat(arg(), 64); err == nil {
			eng.Speed(v)
		}
	case "dump":
		eng.Dump()
	case "panic":
		eng.Panic()
	case "open":
		if err := eng.Open(arg()); err != nil {
			logger.GetLogger().Warn("open command failed", slog.Any("error", err))
		}
	case "save":
		if err := eng.Save(arg()); err != nil {
			logger.GetLogger().Warn("save command failed", slog.Any("error", err))
		}
	case "click":
		eng.Click()
	case "float":
		if v, err := strconv.ParseFloat(arg(), 64); err == nil {
			eng.Float(v)
		}
	case "bang":
		eng.Bang()
	default:
		logger.GetLogger().Warn("unrecognized command", slog.String("command", cmd))
	}
}
