package shogun

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// fakeSession is a scriptable in-memory Session. It also implements
// DescriptionSetter; wrap it in legacySession to drop the capability.
type fakeSession struct {
	mu           sync.Mutex
	captureState string
	name         string
	folder       string
	description  string

	nameOK   bool
	folderOK bool
	startOK  bool
	stopOK   bool
	setOK    bool

	stateErr error
	startErr error
	stopErr  error
	setErr   error

	startCalls    int
	stopCalls     int
	lastStopFlags int
	closeCalls    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		captureState: "Stopped",
		nameOK:       true,
		folderOK:     true,
		startOK:      true,
		stopOK:       true,
		setOK:        true,
	}
}

func (s *fakeSession) LatestCaptureState(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateErr != nil {
		return "", s.stateErr
	}
	return s.captureState, nil
}

func (s *fakeSession) CaptureName(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, s.nameOK
}

func (s *fakeSession) SetCaptureName(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if !s.setOK {
		return false, nil
	}
	s.name = name
	return true, nil
}

func (s *fakeSession) CaptureFolder(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder, s.folderOK
}

func (s *fakeSession) SetCaptureFolder(ctx context.Context, folder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if !s.setOK {
		return false, nil
	}
	s.folder = folder
	return true, nil
}

func (s *fakeSession) StartCapture(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	if s.startErr != nil {
		return false, s.startErr
	}
	if !s.startOK {
		return false, nil
	}
	s.captureState = "Started"
	return true, nil
}

func (s *fakeSession) StopCapture(ctx context.Context, flags int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	s.lastStopFlags = flags
	if s.stopErr != nil {
		return false, s.stopErr
	}
	if !s.stopOK {
		return false, nil
	}
	s.captureState = "Stopped"
	return true, nil
}

func (s *fakeSession) SetCaptureDescription(ctx context.Context, description string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if !s.setOK {
		return false, nil
	}
	s.description = description
	return true, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *fakeSession) setState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureState = state
}

func (s *fakeSession) setStateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateErr = err
}

func (s *fakeSession) counts() (starts, stops, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls, s.stopCalls, s.closeCalls
}

// legacySession hides the description capability of a fakeSession,
// modelling an older API version.
type legacySession struct{ s *fakeSession }

func (l legacySession) LatestCaptureState(ctx context.Context) (string, error) {
	return l.s.LatestCaptureState(ctx)
}
func (l legacySession) CaptureName(ctx context.Context) (string, bool) {
	return l.s.CaptureName(ctx)
}
func (l legacySession) SetCaptureName(ctx context.Context, name string) (bool, error) {
	return l.s.SetCaptureName(ctx, name)
}
func (l legacySession) CaptureFolder(ctx context.Context) (string, bool) {
	return l.s.CaptureFolder(ctx)
}
func (l legacySession) SetCaptureFolder(ctx context.Context, folder string) (bool, error) {
	return l.s.SetCaptureFolder(ctx, folder)
}
func (l legacySession) StartCapture(ctx context.Context) (bool, error) {
	return l.s.StartCapture(ctx)
}
func (l legacySession) StopCapture(ctx context.Context, flags int) (bool, error) {
	return l.s.StopCapture(ctx, flags)
}
func (l legacySession) Close() error { return l.s.Close() }

// fakeDevice hands out queued sessions, optionally failing the first
// few connect attempts.
type fakeDevice struct {
	mu       sync.Mutex
	queue    []Session
	failures int
	connects int
}

func (d *fakeDevice) Connect(ctx context.Context, host string) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	if d.connects <= d.failures {
		return nil, errors.New("connection refused")
	}
	if len(d.queue) == 0 {
		return newFakeSession(), nil
	}
	s := d.queue[0]
	if len(d.queue) > 1 {
		d.queue = d.queue[1:]
	}
	return s, nil
}

func (d *fakeDevice) connectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

type fakeFinder struct {
	mu      sync.Mutex
	pid     int32
	running bool
}

func (f *fakeFinder) Find(ctx context.Context) (int32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pid, f.running
}

func (f *fakeFinder) set(pid int32, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pid = pid
	f.running = running
}

func testConfig() Config {
	return Config{
		Host:                 "testhost",
		CheckInterval:        time.Millisecond,
		SleepSlice:           time.Millisecond,
		MaxReconnectAttempts: 2,
		BaseReconnectDelay:   time.Millisecond,
		MaxReconnectDelay:    2 * time.Millisecond,
	}
}

func newTestWorker(t *testing.T, dev Device, finder ProcessFinder) (*Worker, *notify.Subscription) {
	t.Helper()
	n := notify.New()
	sub := n.Subscribe(128)
	t.Cleanup(sub.Close)
	return NewWorker(testConfig(), dev, finder, n), sub
}

func drainEvents(sub *notify.Subscription) []notify.Event {
	var events []notify.Event
	for {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func hasEvent(events []notify.Event, kind notify.Kind, value string) bool {
	for _, ev := range events {
		if ev.Kind == kind && ev.Value == value {
			return true
		}
	}
	return false
}

func countKind(events []notify.Event, kind notify.Kind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestPollConnectsAndPublishesSnapshot(t *testing.T) {
	session := newFakeSession()
	session.name = "take_001"
	session.folder = "/data/captures"
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{pid: 100, running: true}
	w, sub := newTestWorker(t, dev, finder)

	w.poll(context.Background())

	if !w.Connected() {
		t.Fatal("expected worker to be connected after poll")
	}
	events := drainEvents(sub)
	if !hasEvent(events, notify.KindConnected, "true") {
		t.Error("missing connected event")
	}
	if !hasEvent(events, notify.KindCaptureName, "take_001") {
		t.Error("missing capture name snapshot event")
	}
	if !hasEvent(events, notify.KindCaptureFolder, "/data/captures") {
		t.Error("missing capture folder snapshot event")
	}
	state := w.Snapshot()
	if state.PID != 100 || state.CaptureName != "take_001" || state.CaptureFolder != "/data/captures" {
		t.Errorf("unexpected snapshot: %+v", state)
	}
}

func TestPollSkipsConnectWhileProcessDown(t *testing.T) {
	dev := &fakeDevice{}
	finder := &fakeFinder{running: false}
	w, _ := newTestWorker(t, dev, finder)

	w.poll(context.Background())

	if w.Connected() {
		t.Fatal("connected without a running process")
	}
	if dev.connectCount() != 0 {
		t.Errorf("connect attempted %d times, want 0", dev.connectCount())
	}
}

func TestPollTearsDownOnProcessExit(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{pid: 100, running: true}
	w, sub := newTestWorker(t, dev, finder)

	w.poll(context.Background())
	drainEvents(sub)

	finder.set(0, false)
	w.poll(context.Background())

	if w.Connected() {
		t.Fatal("still connected after process exit")
	}
	if _, _, closes := session.counts(); closes != 1 {
		t.Errorf("session closed %d times, want 1", closes)
	}
	events := drainEvents(sub)
	if !hasEvent(events, notify.KindConnected, "false") {
		t.Error("missing disconnected event")
	}
}

func TestPollReconnectsOnProcessRestart(t *testing.T) {
	first := newFakeSession()
	second := newFakeSession()
	dev := &fakeDevice{queue: []Session{first, second}}
	finder := &fakeFinder{pid: 100, running: true}
	w, _ := newTestWorker(t, dev, finder)

	w.poll(context.Background())
	if dev.connectCount() != 1 {
		t.Fatalf("connects = %d, want 1", dev.connectCount())
	}

	// Same process names, new PID: Shogun was restarted.
	finder.set(200, true)
	w.poll(context.Background())

	if _, _, closes := first.counts(); closes != 1 {
		t.Error("stale session was not closed on restart")
	}
	if dev.connectCount() != 2 {
		t.Errorf("connects = %d, want 2", dev.connectCount())
	}
	if !w.Connected() {
		t.Error("expected reconnect after restart")
	}
	if got := w.Snapshot().PID; got != 200 {
		t.Errorf("PID = %d, want 200", got)
	}
}

func TestPollPublishesRecordingTransitions(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{pid: 100, running: true}
	w, sub := newTestWorker(t, dev, finder)

	w.poll(context.Background())
	drainEvents(sub)

	session.setState("Started")
	w.poll(context.Background())
	events := drainEvents(sub)
	if !hasEvent(events, notify.KindRecording, "true") {
		t.Fatal("missing recording=true event")
	}

	// Unchanged state must not re-publish.
	w.poll(context.Background())
	if n := countKind(drainEvents(sub), notify.KindRecording); n != 0 {
		t.Errorf("got %d duplicate recording events", n)
	}

	session.setState("Stopped")
	w.poll(context.Background())
	if !hasEvent(drainEvents(sub), notify.KindRecording, "false") {
		t.Error("missing recording=false event")
	}
}

func TestPollTearsDownOnProbeFailure(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{pid: 100, running: true}
	w, sub := newTestWorker(t, dev, finder)

	w.poll(context.Background())
	drainEvents(sub)

	session.setStateErr(errors.New("broken pipe"))
	w.poll(context.Background())

	if w.Connected() {
		t.Fatal("still connected after probe failure")
	}
	if !hasEvent(drainEvents(sub), notify.KindConnected, "false") {
		t.Error("missing disconnected event")
	}
}

func connectWorker(t *testing.T, w *Worker, finder *fakeFinder) {
	t.Helper()
	finder.set(100, true)
	w.poll(context.Background())
	if !w.Connected() {
		t.Fatal("setup: worker did not connect")
	}
}

func TestStartCapture(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, sub := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)
	drainEvents(sub)

	outcome, err := w.StartCapture(context.Background())
	if err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if outcome != OutcomeStarted {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeStarted)
	}
	if !w.Snapshot().Recording {
		t.Error("snapshot does not show recording")
	}
	if !hasEvent(drainEvents(sub), notify.KindRecording, "true") {
		t.Error("missing recording event")
	}
}

func TestStartCaptureAlreadyRecording(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, _ := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)

	if _, err := w.StartCapture(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	outcome, err := w.StartCapture(context.Background())
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if outcome != OutcomeAlreadyRecording {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeAlreadyRecording)
	}
	if starts, _, _ := session.counts(); starts != 1 {
		t.Errorf("device start calls = %d, want 1", starts)
	}
}

func TestStartCaptureRetriesOnceAfterTransportFailure(t *testing.T) {
	broken := newFakeSession()
	broken.startErr = errors.New("connection reset")
	fresh := newFakeSession()
	dev := &fakeDevice{queue: []Session{broken, fresh}}
	finder := &fakeFinder{}
	w, _ := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)

	outcome, err := w.StartCapture(context.Background())
	if err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if outcome != OutcomeStartedAfterReconnect {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeStartedAfterReconnect)
	}
	if dev.connectCount() != 2 {
		t.Errorf("connects = %d, want 2", dev.connectCount())
	}
	if starts, _, _ := fresh.counts(); starts != 1 {
		t.Errorf("retry start calls = %d, want 1", starts)
	}
}

func TestStartCaptureRejectionIsTerminal(t *testing.T) {
	session := newFakeSession()
	session.startOK = false
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, sub := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)
	drainEvents(sub)

	_, err := w.StartCapture(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	// A rejection is a device answer, not a broken link. No reconnect.
	if dev.connectCount() != 1 {
		t.Errorf("connects = %d, want 1", dev.connectCount())
	}
	if starts, _, _ := session.counts(); starts != 1 {
		t.Errorf("start calls = %d, want 1", starts)
	}
	if countKind(drainEvents(sub), notify.KindError) != 1 {
		t.Error("expected exactly one error event")
	}
}

func TestOperationsFailFastWhenDisconnected(t *testing.T) {
	dev := &fakeDevice{}
	finder := &fakeFinder{}
	w, sub := newTestWorker(t, dev, finder)

	if _, err := w.StartCapture(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("StartCapture err = %v, want ErrNotConnected", err)
	}
	if err := w.StopCapture(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("StopCapture err = %v, want ErrNotConnected", err)
	}
	if err := w.SetCaptureName(context.Background(), "x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SetCaptureName err = %v, want ErrNotConnected", err)
	}
	if dev.connectCount() != 0 {
		t.Errorf("connects = %d, want 0", dev.connectCount())
	}
	events := drainEvents(sub)
	if countKind(events, notify.KindError) != 3 {
		t.Errorf("error events = %d, want 3", countKind(events, notify.KindError))
	}
}

func TestStopCaptureNotRecording(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, sub := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)
	drainEvents(sub)

	if err := w.StopCapture(context.Background()); err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
	if _, stops, _ := session.counts(); stops != 0 {
		t.Errorf("stop calls = %d, want 0", stops)
	}
	if !hasEvent(drainEvents(sub), notify.KindStatus, "recording not active") {
		t.Error("missing not-active status event")
	}
}

func TestStopCaptureUsesDefaultFlags(t *testing.T) {
	session := newFakeSession()
	session.captureState = "Started"
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, _ := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)

	if err := w.StopCapture(context.Background()); err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
	session.mu.Lock()
	flags := session.lastStopFlags
	session.mu.Unlock()
	if flags != 0 {
		t.Errorf("stop flags = %d, want 0", flags)
	}
	if w.Snapshot().Recording {
		t.Error("snapshot still shows recording")
	}
}

func TestSetCaptureNamePublishesChangeOnce(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, sub := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)
	drainEvents(sub)

	if err := w.SetCaptureName(context.Background(), "take_042"); err != nil {
		t.Fatalf("SetCaptureName: %v", err)
	}
	events := drainEvents(sub)
	if !hasEvent(events, notify.KindCaptureName, "take_042") {
		t.Fatal("missing capture name change event")
	}

	// Same name again succeeds but emits no second change event.
	if err := w.SetCaptureName(context.Background(), "take_042"); err != nil {
		t.Fatalf("repeat SetCaptureName: %v", err)
	}
	if n := countKind(drainEvents(sub), notify.KindCaptureName); n != 0 {
		t.Errorf("got %d duplicate change events", n)
	}

	// The poll loop sees the cached value and stays quiet too.
	w.poll(context.Background())
	if n := countKind(drainEvents(sub), notify.KindCaptureName); n != 0 {
		t.Errorf("poll re-published %d change events", n)
	}
}

func TestSetCaptureFolder(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, sub := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)
	drainEvents(sub)

	if err := w.SetCaptureFolder(context.Background(), "/mnt/capture"); err != nil {
		t.Fatalf("SetCaptureFolder: %v", err)
	}
	if !hasEvent(drainEvents(sub), notify.KindCaptureFolder, "/mnt/capture") {
		t.Error("missing capture folder change event")
	}
	if got := w.Snapshot().CaptureFolder; got != "/mnt/capture" {
		t.Errorf("snapshot folder = %q", got)
	}
}

func TestSetCaptureDescription(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, _ := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)

	if err := w.SetCaptureDescription(context.Background(), "lobby walkthrough"); err != nil {
		t.Fatalf("SetCaptureDescription: %v", err)
	}
	session.mu.Lock()
	desc := session.description
	session.mu.Unlock()
	if desc != "lobby walkthrough" {
		t.Errorf("description = %q", desc)
	}
}

func TestSetCaptureDescriptionUnsupported(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{legacySession{s: session}}}
	finder := &fakeFinder{}
	w, _ := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)

	err := w.SetCaptureDescription(context.Background(), "ignored")
	if !errors.Is(err, ErrDescriptionUnsupported) {
		t.Fatalf("err = %v, want ErrDescriptionUnsupported", err)
	}
}

func TestReconnectExhaustsAttemptBudget(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, sub := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)
	drainEvents(sub)

	session.setStateErr(errors.New("broken pipe"))
	dev.mu.Lock()
	dev.failures = dev.connects + 10 // every further connect fails
	dev.mu.Unlock()

	_, err := w.StartCapture(context.Background())
	if !errors.Is(err, ErrReconnectFailed) {
		t.Fatalf("err = %v, want ErrReconnectFailed", err)
	}
	// One initial connect plus the full attempt budget.
	if got := dev.connectCount(); got != 1+testConfig().MaxReconnectAttempts {
		t.Errorf("connects = %d, want %d", got, 1+testConfig().MaxReconnectAttempts)
	}
	if w.Connected() {
		t.Error("worker still reports connected")
	}
	events := drainEvents(sub)
	if countKind(events, notify.KindError) == 0 {
		t.Error("missing error event after exhausted reconnect")
	}
}

func TestReconnectStopsOnContextCancel(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	w, _ := newTestWorker(t, dev, finder)
	connectWorker(t, w, finder)

	session.setStateErr(errors.New("broken pipe"))
	dev.mu.Lock()
	dev.failures = dev.connects + 10
	dev.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.StartCapture(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReconnectCancelDuringBackoff(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{}
	cfg := testConfig()
	cfg.SleepSlice = 10 * time.Millisecond
	cfg.BaseReconnectDelay = 5 * time.Second
	cfg.MaxReconnectDelay = 5 * time.Second
	w := NewWorker(cfg, dev, finder, notify.New())
	connectWorker(t, w, finder)

	session.setStateErr(errors.New("broken pipe"))
	dev.mu.Lock()
	dev.failures = dev.connects + 10
	dev.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := w.StartCapture(ctx)
		errCh <- err
	}()

	// Let the first attempt fail and the backoff wait begin.
	time.Sleep(50 * time.Millisecond)
	cancel()

	start := time.Now()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("StartCapture did not return after cancel")
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("returned %v after cancel, want well under the remaining backoff", elapsed)
	}
}

func TestBackoffDelay(t *testing.T) {
	w := NewWorker(Config{
		BaseReconnectDelay: 100 * time.Millisecond,
		MaxReconnectDelay:  300 * time.Millisecond,
	}, &fakeDevice{}, &fakeFinder{}, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 150 * time.Millisecond},
		{3, 225 * time.Millisecond},
		{4, 300 * time.Millisecond},
		{10, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := w.backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRunReleasesSessionOnCancel(t *testing.T) {
	session := newFakeSession()
	dev := &fakeDevice{queue: []Session{session}}
	finder := &fakeFinder{pid: 100, running: true}
	w, _ := newTestWorker(t, dev, finder)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !w.Connected() {
		select {
		case <-deadline:
			t.Fatal("worker never connected")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, _, closes := session.counts(); closes != 1 {
		t.Errorf("session closed %d times, want 1", closes)
	}
	if w.Connected() {
		t.Error("worker still reports connected after shutdown")
	}
}
