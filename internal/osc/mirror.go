package osc

import (
	"context"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/shogun-tools/osc-bridge/internal/infrastructure/config"
	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// Sender transmits one OSC message. Satisfied by *Client.
type Sender interface {
	Send(msg *goosc.Message) error
}

// Mirror forwards selected session events back onto the network as
// outbound OSC messages, so controllers listening on the target
// address learn about errors and capture setting changes.
type Mirror struct {
	sender   Sender
	addrs    config.AddressesConfig
	notifier *notify.Notifier
	logger   Logger
}

// NewMirror creates a mirror publishing through sender.
func NewMirror(addrs config.AddressesConfig, sender Sender, notifier *notify.Notifier) *Mirror {
	return &Mirror{
		sender:   sender,
		addrs:    addrs,
		notifier: notifier,
		logger:   noopLogger{},
	}
}

// SetLogger replaces the mirror's logger. Call before Run.
func (m *Mirror) SetLogger(l Logger) {
	if l != nil {
		m.logger = l
	}
}

// Run consumes session events until ctx is cancelled. Send failures
// are logged and do not stop the mirror.
func (m *Mirror) Run(ctx context.Context) {
	sub := m.notifier.Subscribe(64)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			addr := m.addressFor(ev.Kind)
			if addr == "" {
				continue
			}
			msg := goosc.NewMessage(addr)
			msg.Append(ev.Value)
			if err := m.sender.Send(msg); err != nil {
				m.logger.Warn("mirroring event failed",
					"kind", string(ev.Kind), "error", err)
			}
		}
	}
}

func (m *Mirror) addressFor(kind notify.Kind) string {
	switch kind {
	case notify.KindError:
		return m.addrs.CaptureError
	case notify.KindCaptureName:
		return m.addrs.CaptureNameChanged
	case notify.KindCaptureFolder:
		return m.addrs.CaptureFolderChanged
	}
	return ""
}
