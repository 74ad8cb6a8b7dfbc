package cli

import (
	"os"
	"testing"
	"time"
)

func TestParseArgs_ValidArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name: "defaults",
			args: []string{},
			expected: Config{
				LogLevel: "info",
			},
		},
		{
			name: "open path",
			args: []string{"/path/to/seq.mid"},
			expected: Config{
				OpenPath: "/path/to/seq.mid",
				LogLevel: "info",
			},
		},
		{
			name: "timeout",
			args: []string{"--timeout", "10"},
			expected: Config{
				Timeout:  10 * time.Second,
				LogLevel: "info",
			},
		},
		{
			name: "timeout short form",
			args: []string{"-t", "5"},
			expected: Config{
				Timeout:  5 * time.Second,
				LogLevel: "info",
			},
		},
		{
			name: "log level",
			args: []string{"--log-level", "debug"},
			expected: Config{
				LogLevel: "debug",
			},
		},
		{
			name: "log level short form",
			args: []string{"-l", "error"},
			expected: Config{
				LogLevel: "error",
			},
		},
		{
			name: "headless mode",
			args: []string{"--headless"},
			expected: Config{
				Headless: true,
				LogLevel: "info",
			},
		},
		{
			name: "help",
			args: []string{"--help"},
			expected: Config{
				ShowHelp: true,
				LogLevel: "info",
			},
		},
		{
			name: "help short form",
			args: []string{"-h"},
			expected: Config{
				ShowHelp: true,
				LogLevel: "info",
			},
		},
		{
			name: "script and audition flags",
			args: []string{"--script", "cmds.txt", "--audition", "piano.sf2"},
			expected: Config{
				ScriptFile:    "cmds.txt",
				SoundfontPath: "piano.sf2",
				LogLevel:      "info",
			},
		},
		{
			name: "sink and open-dir flags",
			args: []string{"--sink", "hw:1", "--open-dir", "./seqs"},
			expected: Config{
				Sink:     "hw:1",
				OpenDir:  "./seqs",
				LogLevel: "info",
			},
		},
		{
			name: "multiple options",
			args: []string{"--timeout", "30", "--log-level", "warn", "--headless", "/path/to/seq.txt"},
			expected: Config{
				OpenPath: "/path/to/seq.txt",
				Timeout:  30 * time.Second,
				LogLevel: "warn",
				Headless: true,
			},
		},
		{
			name: "positional argument after flags (order-independent)",
			args: []string{"-log-level", "debug", "./samples/song.mid", "--timeout", "5"},
			expected: Config{
				OpenPath: "./samples/song.mid",
				Timeout:  5 * time.Second,
				LogLevel: "debug",
			},
		},
		{
			name: "positional argument first (order-independent)",
			args: []string{"/path/to/seq.mid", "--timeout", "10", "--headless"},
			expected: Config{
				OpenPath: "/path/to/seq.mid",
				Timeout:  10 * time.Second,
				LogLevel: "info",
				Headless: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if config.OpenPath != tt.expected.OpenPath {
				t.Errorf("OpenPath = %q, want %q", config.OpenPath, tt.expected.OpenPath)
			}
			if config.ScriptFile != tt.expected.ScriptFile {
				t.Errorf("ScriptFile = %q, want %q", config.ScriptFile, tt.expected.ScriptFile)
			}
			if config.SoundfontPath != tt.expected.SoundfontPath {
				t.Errorf("SoundfontPath = %q, want %q", config.SoundfontPath, tt.expected.SoundfontPath)
			}
			if config.Sink != tt.expected.Sink {
				t.Errorf("Sink = %q, want %q", config.Sink, tt.expected.Sink)
			}
			if config.OpenDir != tt.expected.OpenDir {
				t.Errorf("OpenDir = %q, want %q", config.OpenDir, tt.expected.OpenDir)
			}
			if config.Timeout != tt.expected.Timeout {
				t.Errorf("Timeout = %v, want %v", config.Timeout, tt.expected.Timeout)
			}
			if config.LogLevel != tt.expected.LogLevel {
				t.Errorf("LogLevel = %q, want %q", config.LogLevel, tt.expected.LogLevel)
			}
			if config.Headless != tt.expected.Headless {
				t.Errorf("Headless = %v, want %v", config.Headless, tt.expected.Headless)
			}
			if config.ShowHelp != tt.expected.ShowHelp {
				t.Errorf("ShowHelp = %v, want %v", config.ShowHelp, tt.expected.ShowHelp)
			}
		})
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "negative timeout",
			args: []string{"--timeout", "-10"},
		},
		{
			name: "invalid log level",
			args: []string{"--log-level", "invalid"},
		},
		{
			name: "invalid log level short form",
			args: []string{"-l", "trace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseArgs_EnvironmentVariables(t *testing.T) {
	origHeadless := os.Getenv("MIDISEQ_HEADLESS")
	origTimeout := os.Getenv("TIMEOUT")
	origLogLevel := os.Getenv("LOG_LEVEL")

	defer func() {
		os.Setenv("MIDISEQ_HEADLESS", origHeadless)
		os.Setenv("TIMEOUT", origTimeout)
		os.Setenv("LOG_LEVEL", origLogLevel)
	}()

	tests := []struct {
		name     string
		args     []string
		envVars  map[string]string
		expected Config
	}{
		{
			name: "MIDISEQ_HEADLESS=1 enables headless mode",
			args: []string{},
			envVars: map[string]string{
				"MIDISEQ_HEADLESS": "1",
			},
			expected: Config{Headless: true, LogLevel: "info"},
		},
		{
			name: "MIDISEQ_HEADLESS=true enables headless mode",
			args: []string{},
			envVars: map[string]string{
				"MIDISEQ_HEADLESS": "true",
			},
			expected: Config{Headless: true, LogLevel: "info"},
		},
		{
			name: "TIMEOUT sets timeout",
			args: []string{},
			envVars: map[string]string{
				"TIMEOUT": "30",
			},
			expected: Config{Timeout: 30 * time.Second, LogLevel: "info"},
		},
		{
			name: "LOG_LEVEL sets log level",
			args: []string{},
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			expected: Config{LogLevel: "debug"},
		},
		{
			name: "command line flag overrides MIDISEQ_HEADLESS env var",
			args: []string{"--headless"},
			envVars: map[string]string{
				"MIDISEQ_HEADLESS": "0",
			},
			expected: Config{Headless: true, LogLevel: "info"},
		},
		{
			name: "command line flag overrides TIMEOUT env var",
			args: []string{"--timeout", "10"},
			envVars: map[string]string{
				"TIMEOUT": "30",
			},
			expected: Config{Timeout: 10 * time.Second, LogLevel: "info"},
		},
		{
			name: "command line flag overrides LOG_LEVEL env var",
			args: []string{"--log-level", "error"},
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			expected: Config{LogLevel: "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("MIDISEQ_HEADLESS")
			os.Unsetenv("TIMEOUT")
			os.Unsetenv("LOG_LEVEL")

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if config.Headless != tt.expected.Headless {
				t.Errorf("Headless = %v, want %v", config.Headless, tt.expected.Headless)
			}
			if config.Timeout != tt.expected.Timeout {
				t.Errorf("Timeout = %v, want %v", config.Timeout, tt.expected.Timeout)
			}
			if config.LogLevel != tt.expected.LogLevel {
				t.Errorf("LogLevel = %q, want %q", config.LogLevel, tt.expected.LogLevel)
			}
		})
	}
}
