// Package logger holds the process-wide zerolog logger of the DevJobs API.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	// Level is trace, debug, info, warn or error; anything else means info.
	Level string
	// Pretty switches to the console writer for local runs.
	Pretty  bool
	Output  io.Writer // os.Stdout when nil
	Service string    // added as "service" on every entry
}

var (
	mu    sync.Mutex
	root  zerolog.Logger
	ready bool
)

// Init builds the shared logger on the first call and returns it. Later
// calls return the existing logger and ignore opts.
func Init(opts Options) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if ready {
		return root
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := opts.Output
	if w == nil {
		w = os.Stdout
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)

	fields := zerolog.New(w).Level(level).With().Timestamp()
	if opts.Service != "" {
		fields = fields.Str("service", opts.Service)
	}
	root = fields.Logger()
	ready = true
	return root
}

// Get returns the shared logger and panics when Init has not run.
func Get() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !ready {
		panic("logger: Get before Init")
	}
	return root
}

// Component tags the shared logger with a "component" field. It is a no-op
// logger until Init runs.
func Component(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !ready {
		return zerolog.Nop()
	}
	return root.With().Str("component", name).Logger()
}

// Reset forgets the shared logger. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.Logger{}
	ready = false
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
