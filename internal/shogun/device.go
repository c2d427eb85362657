package shogun

import (
	"context"
	"strings"
)

// Device establishes sessions against a Shogun Live instance. The
// concrete implementation lives behind this interface so the worker
// and tests never depend on the vendor API directly.
type Device interface {
	// Connect establishes a session to the device at host. The returned
	// session is owned by the caller and must be closed when no longer
	// needed.
	Connect(ctx context.Context, host string) (Session, error)
}

// Session is a live connection to a Shogun Live instance.
//
// Methods follow a shared convention: a non-nil error means the
// transport failed and the session is suspect, while ok == false with
// a nil error means the device understood the request and rejected it.
// Rejections are terminal; transport failures are candidates for a
// reconnect and retry.
type Session interface {
	// LatestCaptureState returns the device's capture engine state
	// string. It doubles as the liveness probe: an error here means the
	// connection is no longer usable.
	LatestCaptureState(ctx context.Context) (string, error)

	// CaptureName returns the currently configured capture name.
	// ok is false when the device could not provide one.
	CaptureName(ctx context.Context) (name string, ok bool)

	// SetCaptureName configures the name used for the next capture.
	SetCaptureName(ctx context.Context, name string) (ok bool, err error)

	// CaptureFolder returns the folder captures are written to.
	CaptureFolder(ctx context.Context) (folder string, ok bool)

	// SetCaptureFolder configures the folder captures are written to.
	SetCaptureFolder(ctx context.Context, folder string) (ok bool, err error)

	// StartCapture begins recording.
	StartCapture(ctx context.Context) (ok bool, err error)

	// StopCapture ends the active recording. flags is passed through to
	// the device verbatim; zero requests the default stop behaviour.
	StopCapture(ctx context.Context, flags int) (ok bool, err error)

	// Close releases the session.
	Close() error
}

// DescriptionSetter is implemented by sessions whose API version
// supports setting the capture description. The worker asserts this
// once per connection and degrades gracefully when absent.
type DescriptionSetter interface {
	SetCaptureDescription(ctx context.Context, description string) (ok bool, err error)
}

// isRecording reports whether a capture state string indicates an
// active recording. Shogun reports states like "Started" and
// "StartedRecording" while capturing.
func isRecording(state string) bool {
	return strings.Contains(state, "Started")
}
