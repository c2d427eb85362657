package vicon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/shogun-tools/osc-bridge/internal/shogun"
)

// resultOK is the result string Shogun returns for accepted calls.
// Anything else is a rejection.
const resultOK = "Ok"

// resultNotSupported is the result string returned for API functions
// the connected Shogun version does not expose.
const resultNotSupported = "NotSupported"

// Config holds connection tuning. Zero values select defaults.
type Config struct {
	// Port is the Shogun Live API port. Defaults to 52800.
	Port int

	// DialTimeout bounds connection establishment. Defaults to 5s.
	DialTimeout time.Duration

	// CallTimeout bounds a single API call. Defaults to 5s.
	CallTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Port <= 0 {
		cfg.Port = 52800
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	return cfg
}

// Device dials Shogun Live instances. Implements shogun.Device.
type Device struct {
	cfg Config
}

// NewDevice creates a device factory with the given tuning.
func NewDevice(cfg Config) *Device {
	return &Device{cfg: cfg.withDefaults()}
}

// Connect establishes an API session to the application at host.
//
// The returned session only carries the capture description setter
// when the connected version exposes the description functions, so
// callers can detect support with a type assertion instead of a
// failing call.
func (d *Device) Connect(ctx context.Context, host string) (shogun.Session, error) {
	dialer := net.Dialer{Timeout: d.cfg.DialTimeout}
	addr := net.JoinHostPort(host, strconv.Itoa(d.cfg.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing shogun api at %s: %w", addr, err)
	}
	s := &session{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		callTimeout: d.cfg.CallTimeout,
	}
	supported, err := s.hasDescriptionAPI(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !supported {
		return s, nil
	}
	return &descriptionSession{session: s}, nil
}

type request struct {
	ID   uint64        `json:"id"`
	Func string        `json:"func"`
	Args []interface{} `json:"args,omitempty"`
}

type response struct {
	ID     uint64            `json:"id"`
	Result string            `json:"result"`
	Values []json.RawMessage `json:"values,omitempty"`
}

func (r *response) ok() bool { return r.Result == resultOK }

// session is a single API connection. Calls are serialised; the
// protocol has no interleaving.
type session struct {
	mu          sync.Mutex
	conn        net.Conn
	reader      *bufio.Reader
	callTimeout time.Duration
	nextID      uint64
}

func (s *session) call(ctx context.Context, fn string, args ...interface{}) (*response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(s.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%s: setting deadline: %w", fn, err)
	}

	s.nextID++
	req := request{ID: s.nextID, Func: fn, Args: args}
	payload, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request: %w", fn, err)
	}
	if _, err := s.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", fn, err)
	}

	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", fn, err)
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", fn, err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%s: response id %d does not match request id %d", fn, resp.ID, req.ID)
	}
	return &resp, nil
}

func (s *session) LatestCaptureState(ctx context.Context) (string, error) {
	resp, err := s.call(ctx, "CaptureServices.LatestCaptureState")
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", fmt.Errorf("latest capture state: device returned %q", resp.Result)
	}
	return firstStringValue(resp), nil
}

func (s *session) CaptureName(ctx context.Context) (string, bool) {
	resp, err := s.call(ctx, "CaptureServices.CaptureName")
	if err != nil || !resp.ok() {
		return "", false
	}
	return firstStringValue(resp), true
}

func (s *session) SetCaptureName(ctx context.Context, name string) (bool, error) {
	resp, err := s.call(ctx, "CaptureServices.SetCaptureName", name)
	if err != nil {
		return false, err
	}
	return resp.ok(), nil
}

func (s *session) CaptureFolder(ctx context.Context) (string, bool) {
	resp, err := s.call(ctx, "CaptureServices.CaptureFolder")
	if err != nil || !resp.ok() {
		return "", false
	}
	return firstStringValue(resp), true
}

func (s *session) SetCaptureFolder(ctx context.Context, folder string) (bool, error) {
	resp, err := s.call(ctx, "CaptureServices.SetCaptureFolder", folder)
	if err != nil {
		return false, err
	}
	return resp.ok(), nil
}

func (s *session) StartCapture(ctx context.Context) (bool, error) {
	resp, err := s.call(ctx, "CaptureServices.StartCapture")
	if err != nil {
		return false, err
	}
	return resp.ok(), nil
}

func (s *session) StopCapture(ctx context.Context, flags int) (bool, error) {
	resp, err := s.call(ctx, "CaptureServices.StopCapture", flags)
	if err != nil {
		return false, err
	}
	return resp.ok(), nil
}

func (s *session) Close() error {
	return s.conn.Close()
}

// hasDescriptionAPI probes the read side of the description functions.
// Older Shogun versions answer NotSupported for names they do not know.
func (s *session) hasDescriptionAPI(ctx context.Context) (bool, error) {
	resp, err := s.call(ctx, "CaptureServices.CaptureDescription")
	if err != nil {
		return false, fmt.Errorf("probing description support: %w", err)
	}
	return resp.Result != resultNotSupported, nil
}

// descriptionSession extends session with the description setter on
// API versions that have it. Satisfies shogun.DescriptionSetter.
type descriptionSession struct {
	*session
}

func (s *descriptionSession) SetCaptureDescription(ctx context.Context, description string) (bool, error) {
	resp, err := s.call(ctx, "CaptureServices.SetCaptureDescription", description)
	if err != nil {
		return false, err
	}
	return resp.ok(), nil
}

func firstStringValue(resp *response) string {
	if len(resp.Values) == 0 {
		return ""
	}
	var v string
	if err := json.Unmarshal(resp.Values[0], &v); err != nil {
		return ""
	}
	return v
}
