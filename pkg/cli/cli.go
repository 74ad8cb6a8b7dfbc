// Package cli parses the midiseq host process's command-line arguments.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings parsed from command-line arguments.
type Config struct {
	OpenPath      string        // sequence file (.mid or .txt) to open immediately
	ScriptFile    string        // command script file; empty means read commands from stdin
	SoundfontPath string        // SoundFont (.sf2) used for -audition playback
	Sink          string        // parsed and stored only; the midiseq host always writes the stdout hex dump
	OpenDir       string        // default directory `click` resolves to in headless hosts
	Timeout       time.Duration // 0 is unlimited
	LogLevel      string        // debug, info, warn, error
	Headless      bool
	ShowHelp      bool
}

// ParseArgs parses args into a Config.
func ParseArgs(args []string) (*Config, error) {
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("midiseq", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "exit after this many seconds")
	fs.IntVar(&timeoutSec, "t", 0, "exit after this many seconds (short form)")
	fs.StringVar(&config.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (short form)")
	fs.StringVar(&config.ScriptFile, "script", "", "command script file (one command per line); defaults to stdin")
	fs.StringVar(&config.SoundfontPath, "audition", "", "SoundFont (.sf2) path; when set, played sequences are also auditioned")
	fs.StringVar(&config.Sink, "sink", "", "outlet destination name (accepted but unused; output is always a stdout hex dump)")
	fs.StringVar(&config.OpenDir, "open-dir", "", "directory click resolves to in headless hosts")
	fs.BoolVar(&config.Headless, "headless", false, "headless mode (no GUI FileDialog)")
	fs.BoolVar(&config.ShowHelp, "help", false, "show this help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show this help (short form)")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	if !config.Headless {
		if headlessEnv := os.Getenv("MIDISEQ_HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if fs.NArg() > 0 {
		config.OpenPath = fs.Arg(0)
	}

	return config, nil
}

// reorderArgs moves flags (and their values) before positional arguments, so
// callers can freely interleave them.
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "--headless" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp prints the usage message.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `midiseq - MIDI sequence engine

Usage:
  midiseq [options] [open-path]

Arguments:
  open-path    a .mid or .txt sequence file to open immediately (optional)

Options:
  -t, --timeout <seconds>     exit after this many seconds (default: unlimited)
  -l, --log-level <level>     log level: debug, info, warn, error (default: info)
  --script <file>             command script file (default: read commands from stdin)
  --audition <file.sf2>       SoundFont used to audibly play recorded/loaded sequences
  --sink <name>                accepted but unused; output is always a stdout hex dump
  --open-dir <dir>            directory a headless click resolves to
  --headless                  headless mode (no GUI FileDialog)
  -h, --help                  show this help

Environment Variables:
  MIDISEQ_HEADLESS=1           enable headless mode
  TIMEOUT=<seconds>            timeout in seconds
  LOG_LEVEL=<level>            log level

Examples:
  midiseq sequence.mid               open a sequence file and wait for commands on stdin
  midiseq --script commands.txt      drive the engine from a command script
  midiseq --audition piano.sf2       audibly play back whatever is recorded or opened
  midiseq --headless --open-dir ./seqs
`)
}
