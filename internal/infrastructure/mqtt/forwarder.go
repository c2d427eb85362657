package mqtt

import (
	"context"
	"errors"

	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// Forwarder consumes session events and mirrors them to the broker.
type Forwarder struct {
	client   *Client
	notifier *notify.Notifier
}

// NewForwarder creates a forwarder publishing through client.
func NewForwarder(client *Client, notifier *notify.Notifier) *Forwarder {
	return &Forwarder{client: client, notifier: notifier}
}

// Run mirrors events until ctx is cancelled. Publish failures while
// the broker is unreachable are expected during reconnects and are
// logged at most; events published meanwhile are dropped, not queued.
func (f *Forwarder) Run(ctx context.Context) {
	sub := f.notifier.Subscribe(64)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			if err := f.client.PublishNotification(ev); err != nil {
				if errors.Is(err, ErrNotConnected) {
					continue
				}
				if logger := f.client.getLogger(); logger != nil {
					logger.Warn("mirroring event to mqtt failed",
						"kind", string(ev.Kind), "error", err)
				}
			}
		}
	}
}
