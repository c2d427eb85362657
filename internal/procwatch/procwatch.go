package procwatch

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Logger defines the logging interface for the process watcher.
type Logger interface {
	Debug(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Finder locates a running process by name substring match.
// It is used for presence and restart detection only; the bridge never
// signals or manages the device process.
type Finder struct {
	patterns []string
	logger   Logger
}

// NewFinder creates a finder matching any of the given name substrings.
func NewFinder(patterns []string) *Finder {
	return &Finder{
		patterns: patterns,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the finder.
func (f *Finder) SetLogger(logger Logger) {
	f.logger = logger
}

// Find returns the PID of the first running process whose name contains
// one of the configured patterns, and whether one was found.
//
// Enumeration errors are treated as "not found": a transient failure to
// list processes must not crash the supervisor loop.
func (f *Finder) Find(ctx context.Context) (int32, bool) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		f.logger.Debug("process enumeration failed", "error", err)
		return 0, false
	}

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Process may have exited between listing and inspection.
			continue
		}
		if matches(name, f.patterns) {
			return p.Pid, true
		}
	}

	return 0, false
}

// matches reports whether name contains any of the patterns.
func matches(name string, patterns []string) bool {
	if name == "" {
		return false
	}
	for _, pat := range patterns {
		if pat != "" && strings.Contains(name, pat) {
			return true
		}
	}
	return false
}
