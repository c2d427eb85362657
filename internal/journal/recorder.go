package journal

import (
	"context"
	"time"

	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// Logger abstracts logging so this package doesn't depend on a
// specific logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// writeTimeout bounds a single journal insert so a locked database
// cannot stall the event stream.
const writeTimeout = 5 * time.Second

// Recorder subscribes to the notifier and journals every event.
type Recorder struct {
	repo     Repository
	notifier *notify.Notifier
	logger   Logger
}

// NewRecorder creates a recorder writing through repo.
func NewRecorder(repo Repository, notifier *notify.Notifier) *Recorder {
	return &Recorder{
		repo:     repo,
		notifier: notifier,
		logger:   noopLogger{},
	}
}

// SetLogger replaces the recorder's logger. Call before Run.
func (r *Recorder) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// Run consumes events until ctx is cancelled. Insert failures are
// logged and skipped; the journal is an audit trail, not a gate on the
// event stream.
func (r *Recorder) Run(ctx context.Context) {
	sub := r.notifier.Subscribe(128)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := r.repo.Record(writeCtx, FromEvent(ev)); err != nil {
				r.logger.Warn("journalling notification failed",
					"kind", string(ev.Kind), "error", err)
			}
			cancel()
		}
	}
}
