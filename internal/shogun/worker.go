package shogun

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// Logger abstracts logging so this package doesn't depend on a
// specific logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ProcessFinder locates the Shogun Live process on the local machine.
type ProcessFinder interface {
	// Find returns the PID of a matching process, or false when none is
	// running.
	Find(ctx context.Context) (int32, bool)
}

// Config holds worker tuning. Zero values select sensible defaults.
type Config struct {
	// Host is the address the device listens on.
	Host string

	// CheckInterval is the cadence of the background health check.
	// Defaults to 1s.
	CheckInterval time.Duration

	// SleepSlice bounds how long the worker sleeps without checking for
	// shutdown. Defaults to 100ms.
	SleepSlice time.Duration

	// MaxReconnectAttempts caps a single reconnect sequence.
	// Defaults to 5.
	MaxReconnectAttempts int

	// BaseReconnectDelay seeds the backoff between reconnect attempts.
	// Defaults to 1s.
	BaseReconnectDelay time.Duration

	// MaxReconnectDelay caps the backoff between reconnect attempts.
	// Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	if cfg.SleepSlice <= 0 {
		cfg.SleepSlice = 100 * time.Millisecond
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.BaseReconnectDelay <= 0 {
		cfg.BaseReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = 30 * time.Second
	}
	return cfg
}

// CaptureOutcome describes how a start-capture request resolved.
type CaptureOutcome string

const (
	// OutcomeStarted means recording began on the first attempt.
	OutcomeStarted CaptureOutcome = "started"

	// OutcomeAlreadyRecording means a recording was already active and
	// no start was issued.
	OutcomeAlreadyRecording CaptureOutcome = "already_recording"

	// OutcomeStartedAfterReconnect means the first attempt failed at
	// the transport level and the retry after reconnecting succeeded.
	OutcomeStartedAfterReconnect CaptureOutcome = "started_after_reconnect"
)

// State is a snapshot of the supervised session.
type State struct {
	Connected          bool   `json:"connected"`
	Recording          bool   `json:"recording"`
	CaptureName        string `json:"capture_name"`
	CaptureFolder      string `json:"capture_folder"`
	CaptureDescription string `json:"capture_description"`
	PID                int32  `json:"pid"`
	ReconnectAttempts  int    `json:"reconnect_attempts"`
}

// Worker supervises a single Shogun Live session: it watches the host
// process, connects when the process is up, probes liveness on a fixed
// cadence, reconnects with bounded backoff when the connection drops,
// and serialises capture operations against the session.
//
// Device operations and the poll loop share opMu, so at most one device
// call is in flight at a time. State snapshots use their own lock and
// never block behind a slow device call.
type Worker struct {
	cfg      Config
	device   Device
	finder   ProcessFinder
	notifier *notify.Notifier
	logger   Logger

	// opMu serialises session use. Held across reconnect sequences.
	opMu    sync.Mutex
	session Session
	desc    DescriptionSetter // nil when the API version lacks support

	stateMu sync.RWMutex
	state   State
}

// NewWorker creates a session supervisor. The notifier may be nil when
// no subscribers are interested in session events.
func NewWorker(cfg Config, device Device, finder ProcessFinder, notifier *notify.Notifier) *Worker {
	if notifier == nil {
		notifier = notify.New()
	}
	return &Worker{
		cfg:      cfg.withDefaults(),
		device:   device,
		finder:   finder,
		notifier: notifier,
		logger:   noopLogger{},
	}
}

// SetLogger replaces the worker's logger. Call before Run.
func (w *Worker) SetLogger(l Logger) {
	if l != nil {
		w.logger = l
	}
}

// Run drives the supervision loop until ctx is cancelled. The session,
// if any, is released before Run returns.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("session worker started",
		"host", w.cfg.Host,
		"check_interval", w.cfg.CheckInterval)

	var lastCheck time.Time
	for {
		if ctx.Err() != nil {
			break
		}
		if time.Since(lastCheck) >= w.cfg.CheckInterval {
			lastCheck = time.Now()
			w.poll(ctx)
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.cfg.SleepSlice):
		}
	}

	w.opMu.Lock()
	w.teardownLocked()
	w.opMu.Unlock()
	w.logger.Info("session worker stopped")
}

// Connected reports whether a device session is established.
func (w *Worker) Connected() bool {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state.Connected
}

// Snapshot returns a copy of the current session state.
func (w *Worker) Snapshot() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

// poll runs one health check: process presence, restart detection,
// liveness probe and capture setting refresh.
func (w *Worker) poll(ctx context.Context) {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	pid, running := w.finder.Find(ctx)
	if !running {
		if w.session != nil {
			w.logger.Warn("shogun process no longer running")
			w.teardownLocked()
		}
		w.setPID(0)
		return
	}

	prev := w.Snapshot().PID
	w.setPID(pid)
	if w.session != nil && prev != 0 && prev != pid {
		w.logger.Info("shogun process restart detected",
			"old_pid", prev, "new_pid", pid)
		w.teardownLocked()
	}

	if w.session == nil {
		if err := w.connectLocked(ctx); err != nil {
			w.logger.Debug("connect attempt failed", "error", err)
		}
		return
	}

	state, err := w.session.LatestCaptureState(ctx)
	if err != nil {
		w.logger.Warn("connection to shogun lost", "error", err)
		w.teardownLocked()
		return
	}
	w.setRecording(isRecording(state))
	w.refreshCaptureSettingsLocked(ctx)
}

// connectLocked establishes a session, probes it once and captures the
// initial snapshot of capture settings. Caller holds opMu.
func (w *Worker) connectLocked(ctx context.Context) error {
	session, err := w.device.Connect(ctx, w.cfg.Host)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", w.cfg.Host, err)
	}

	// A session handle alone proves nothing. Probe before trusting it.
	state, err := session.LatestCaptureState(ctx)
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("probing new session: %w", err)
	}

	w.session = session
	w.desc, _ = session.(DescriptionSetter)
	if w.desc == nil {
		w.logger.Warn("device API does not support capture description")
	}

	w.stateMu.Lock()
	w.state.Connected = true
	w.state.ReconnectAttempts = 0
	w.stateMu.Unlock()
	w.logger.Info("connected to shogun", "host", w.cfg.Host)
	w.notifier.Publish(notify.KindConnected, "true")
	w.notifier.Publish(notify.KindStatus, "connected to Shogun Live")

	if name, ok := session.CaptureName(ctx); ok && name != "" {
		w.stateMu.Lock()
		w.state.CaptureName = name
		w.stateMu.Unlock()
		w.notifier.Publish(notify.KindCaptureName, name)
	}
	if folder, ok := session.CaptureFolder(ctx); ok && folder != "" {
		w.stateMu.Lock()
		w.state.CaptureFolder = folder
		w.stateMu.Unlock()
		w.notifier.Publish(notify.KindCaptureFolder, folder)
	}
	w.setRecording(isRecording(state))
	return nil
}

// teardownLocked releases the session and emits disconnect events.
// Caller holds opMu. Safe to call with no session.
func (w *Worker) teardownLocked() {
	if w.session != nil {
		if err := w.session.Close(); err != nil {
			w.logger.Debug("closing session", "error", err)
		}
		w.session = nil
		w.desc = nil
	}

	w.stateMu.Lock()
	wasConnected := w.state.Connected
	wasRecording := w.state.Recording
	w.state.Connected = false
	w.state.Recording = false
	w.stateMu.Unlock()

	if wasConnected {
		w.notifier.Publish(notify.KindConnected, "false")
		w.notifier.Publish(notify.KindStatus, "disconnected from Shogun Live")
	}
	if wasRecording {
		w.notifier.Publish(notify.KindRecording, "false")
	}
}

// refreshCaptureSettingsLocked diffs the device's capture name and
// folder against the cached snapshot and emits one event per change.
// Caller holds opMu with a live session.
func (w *Worker) refreshCaptureSettingsLocked(ctx context.Context) {
	name, ok := w.session.CaptureName(ctx)
	if !ok {
		w.logger.Debug("could not read capture name")
		return
	}
	w.stateMu.Lock()
	changed := name != w.state.CaptureName
	w.state.CaptureName = name
	w.stateMu.Unlock()
	if changed {
		w.logger.Info("capture name changed", "name", name)
		w.notifier.Publish(notify.KindCaptureName, name)
	}

	folder, ok := w.session.CaptureFolder(ctx)
	if !ok {
		w.logger.Debug("could not read capture folder")
		return
	}
	w.stateMu.Lock()
	changed = folder != w.state.CaptureFolder
	w.state.CaptureFolder = folder
	w.stateMu.Unlock()
	if changed {
		w.logger.Info("capture folder changed", "folder", folder)
		w.notifier.Publish(notify.KindCaptureFolder, folder)
	}
}

// reconnectLocked tears down the current session and retries the
// connection with exponential backoff until it succeeds, the attempt
// budget is exhausted or ctx is cancelled. Caller holds opMu.
func (w *Worker) reconnectLocked(ctx context.Context) error {
	w.logger.Info("attempting reconnect",
		"max_attempts", w.cfg.MaxReconnectAttempts)
	w.teardownLocked()

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxReconnectAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.stateMu.Lock()
		w.state.ReconnectAttempts = attempt
		w.stateMu.Unlock()

		lastErr = w.connectLocked(ctx)
		if lastErr == nil {
			w.logger.Info("reconnected to shogun", "attempt", attempt)
			return nil
		}
		w.logger.Debug("reconnect attempt failed",
			"attempt", attempt, "error", lastErr)

		if attempt < w.cfg.MaxReconnectAttempts {
			delay := w.backoffDelay(attempt)
			w.logger.Debug("waiting before next attempt", "delay", delay)
			if !w.sleep(ctx, delay) {
				return ctx.Err()
			}
		}
	}

	w.logger.Error("reconnect failed",
		"attempts", w.cfg.MaxReconnectAttempts, "error", lastErr)
	w.notifier.Publish(notify.KindError,
		fmt.Sprintf("failed to reconnect after %d attempts", w.cfg.MaxReconnectAttempts))
	return fmt.Errorf("%w after %d attempts: %v",
		ErrReconnectFailed, w.cfg.MaxReconnectAttempts, lastErr)
}

// backoffDelay returns the wait after a failed attempt, growing by a
// factor of 1.5 per attempt up to the configured cap.
func (w *Worker) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(w.cfg.BaseReconnectDelay) * math.Pow(1.5, float64(attempt-1)))
	if delay > w.cfg.MaxReconnectDelay {
		delay = w.cfg.MaxReconnectDelay
	}
	return delay
}

// sleep waits for d in short slices so shutdown is never delayed by a
// long backoff. Returns false when ctx was cancelled.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		slice := w.cfg.SleepSlice
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(slice):
		}
	}
}

// ensureSessionLocked verifies the session is usable before an
// operation. A missing session fails fast; a session that fails its
// probe triggers a full reconnect sequence. Caller holds opMu.
func (w *Worker) ensureSessionLocked(ctx context.Context) error {
	if w.session == nil {
		return ErrNotConnected
	}
	if _, err := w.session.LatestCaptureState(ctx); err != nil {
		w.logger.Warn("session probe failed before operation", "error", err)
		return w.reconnectLocked(ctx)
	}
	return nil
}

// recordingNowLocked asks the device whether a capture is active right
// now. Transport failures read as not recording, matching the probe
// semantics of the health check. Caller holds opMu with a live session.
func (w *Worker) recordingNowLocked(ctx context.Context) bool {
	state, err := w.session.LatestCaptureState(ctx)
	if err != nil {
		return false
	}
	return isRecording(state)
}

func (w *Worker) setRecording(recording bool) {
	w.stateMu.Lock()
	changed := w.state.Recording != recording
	w.state.Recording = recording
	w.stateMu.Unlock()
	if changed {
		w.logger.Info("recording state changed", "recording", recording)
		w.notifier.Publish(notify.KindRecording, fmt.Sprintf("%t", recording))
	}
}

func (w *Worker) setPID(pid int32) {
	w.stateMu.Lock()
	w.state.PID = pid
	w.stateMu.Unlock()
}

func (w *Worker) publishError(msg string) {
	w.logger.Error(msg)
	w.notifier.Publish(notify.KindError, msg)
}

// StartCapture begins a recording. When a recording is already active
// the device is left untouched. A transport failure triggers exactly
// one reconnect sequence and one retry; a rejection is terminal.
func (w *Worker) StartCapture(ctx context.Context) (CaptureOutcome, error) {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	if err := w.ensureSessionLocked(ctx); err != nil {
		w.publishError("failed to start recording: no connection to Shogun Live")
		return "", err
	}
	if w.recordingNowLocked(ctx) {
		w.logger.Info("start requested while already recording")
		w.notifier.Publish(notify.KindStatus, "recording already active")
		return OutcomeAlreadyRecording, nil
	}

	ok, err := w.session.StartCapture(ctx)
	if err != nil {
		w.logger.Error("start capture failed", "error", err)
		if rErr := w.reconnectLocked(ctx); rErr != nil {
			w.publishError("failed to start recording: connection could not be restored")
			return "", fmt.Errorf("starting capture: %w", err)
		}
		ok, err = w.session.StartCapture(ctx)
		if err != nil {
			w.publishError("failed to start recording after reconnect")
			return "", fmt.Errorf("starting capture after reconnect: %w", err)
		}
		if !ok {
			w.publishError("shogun rejected start capture request")
			return "", fmt.Errorf("starting capture after reconnect: %w", ErrRejected)
		}
		w.setRecording(true)
		w.logger.Info("recording started after reconnect")
		w.notifier.Publish(notify.KindStatus, "recording started after reconnect")
		return OutcomeStartedAfterReconnect, nil
	}
	if !ok {
		w.publishError("shogun rejected start capture request")
		return "", fmt.Errorf("starting capture: %w", ErrRejected)
	}

	w.setRecording(true)
	w.logger.Info("recording started")
	w.notifier.Publish(notify.KindStatus, "recording started")
	return OutcomeStarted, nil
}

// StopCapture ends the active recording. When no recording is active
// the device is left untouched.
func (w *Worker) StopCapture(ctx context.Context) error {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	if err := w.ensureSessionLocked(ctx); err != nil {
		w.publishError("failed to stop recording: no connection to Shogun Live")
		return err
	}
	if !w.recordingNowLocked(ctx) {
		w.logger.Info("stop requested while not recording")
		w.notifier.Publish(notify.KindStatus, "recording not active")
		return nil
	}

	ok, err := w.session.StopCapture(ctx, 0)
	if err != nil {
		w.logger.Error("stop capture failed", "error", err)
		if rErr := w.reconnectLocked(ctx); rErr != nil {
			w.publishError("failed to stop recording: connection could not be restored")
			return fmt.Errorf("stopping capture: %w", err)
		}
		ok, err = w.session.StopCapture(ctx, 0)
		if err != nil {
			w.publishError("failed to stop recording after reconnect")
			return fmt.Errorf("stopping capture after reconnect: %w", err)
		}
		if !ok {
			w.publishError("shogun rejected stop capture request")
			return fmt.Errorf("stopping capture after reconnect: %w", ErrRejected)
		}
		w.setRecording(false)
		w.logger.Info("recording stopped after reconnect")
		w.notifier.Publish(notify.KindStatus, "recording stopped after reconnect")
		return nil
	}
	if !ok {
		w.publishError("shogun rejected stop capture request")
		return fmt.Errorf("stopping capture: %w", ErrRejected)
	}

	w.setRecording(false)
	w.logger.Info("recording stopped")
	w.notifier.Publish(notify.KindStatus, "recording stopped")
	return nil
}

// SetCaptureName configures the name for the next capture.
func (w *Worker) SetCaptureName(ctx context.Context, name string) error {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	if err := w.ensureSessionLocked(ctx); err != nil {
		w.publishError("failed to set capture name: no connection to Shogun Live")
		return err
	}

	ok, err := w.session.SetCaptureName(ctx, name)
	if err != nil {
		w.logger.Error("set capture name failed", "error", err)
		if rErr := w.reconnectLocked(ctx); rErr != nil {
			w.publishError("failed to set capture name: connection could not be restored")
			return fmt.Errorf("setting capture name: %w", err)
		}
		ok, err = w.session.SetCaptureName(ctx, name)
		if err != nil {
			w.publishError("failed to set capture name after reconnect")
			return fmt.Errorf("setting capture name after reconnect: %w", err)
		}
	}
	if !ok {
		w.publishError(fmt.Sprintf("shogun rejected capture name %q", name))
		return fmt.Errorf("setting capture name: %w", ErrRejected)
	}

	w.stateMu.Lock()
	changed := name != w.state.CaptureName
	w.state.CaptureName = name
	w.stateMu.Unlock()
	if changed {
		w.notifier.Publish(notify.KindCaptureName, name)
	}
	w.logger.Info("capture name set", "name", name)
	w.notifier.Publish(notify.KindStatus, fmt.Sprintf("capture name set to %q", name))
	return nil
}

// SetCaptureFolder configures the folder captures are written to.
func (w *Worker) SetCaptureFolder(ctx context.Context, folder string) error {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	if err := w.ensureSessionLocked(ctx); err != nil {
		w.publishError("failed to set capture folder: no connection to Shogun Live")
		return err
	}

	ok, err := w.session.SetCaptureFolder(ctx, folder)
	if err != nil {
		w.logger.Error("set capture folder failed", "error", err)
		if rErr := w.reconnectLocked(ctx); rErr != nil {
			w.publishError("failed to set capture folder: connection could not be restored")
			return fmt.Errorf("setting capture folder: %w", err)
		}
		ok, err = w.session.SetCaptureFolder(ctx, folder)
		if err != nil {
			w.publishError("failed to set capture folder after reconnect")
			return fmt.Errorf("setting capture folder after reconnect: %w", err)
		}
	}
	if !ok {
		w.publishError(fmt.Sprintf("shogun rejected capture folder %q", folder))
		return fmt.Errorf("setting capture folder: %w", ErrRejected)
	}

	w.stateMu.Lock()
	changed := folder != w.state.CaptureFolder
	w.state.CaptureFolder = folder
	w.stateMu.Unlock()
	if changed {
		w.notifier.Publish(notify.KindCaptureFolder, folder)
	}
	w.logger.Info("capture folder set", "folder", folder)
	w.notifier.Publish(notify.KindStatus, fmt.Sprintf("capture folder set to %q", folder))
	return nil
}

// SetCaptureDescription configures the description attached to the
// next capture. Returns ErrDescriptionUnsupported when the connected
// API version lacks the call.
func (w *Worker) SetCaptureDescription(ctx context.Context, description string) error {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	if err := w.ensureSessionLocked(ctx); err != nil {
		w.publishError("failed to set capture description: no connection to Shogun Live")
		return err
	}
	if w.desc == nil {
		w.logger.Warn("capture description requested but unsupported by device API")
		return ErrDescriptionUnsupported
	}

	ok, err := w.desc.SetCaptureDescription(ctx, description)
	if err != nil {
		w.logger.Error("set capture description failed", "error", err)
		if rErr := w.reconnectLocked(ctx); rErr != nil {
			w.publishError("failed to set capture description: connection could not be restored")
			return fmt.Errorf("setting capture description: %w", err)
		}
		if w.desc == nil {
			w.logger.Warn("capture description unsupported after reconnect")
			return ErrDescriptionUnsupported
		}
		ok, err = w.desc.SetCaptureDescription(ctx, description)
		if err != nil {
			w.publishError("failed to set capture description after reconnect")
			return fmt.Errorf("setting capture description after reconnect: %w", err)
		}
	}
	if !ok {
		w.publishError("shogun rejected capture description")
		return fmt.Errorf("setting capture description: %w", ErrRejected)
	}

	w.stateMu.Lock()
	changed := description != w.state.CaptureDescription
	w.state.CaptureDescription = description
	w.stateMu.Unlock()
	if changed {
		w.notifier.Publish(notify.KindCaptureDescription, description)
	}
	w.logger.Info("capture description set")
	w.notifier.Publish(notify.KindStatus, "capture description updated")
	return nil
}
