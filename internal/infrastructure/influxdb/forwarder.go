package influxdb

import (
	"context"

	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// Forwarder consumes session events and records them as time series
// points. Writes are batched by the client; nothing here blocks on the
// network.
type Forwarder struct {
	client   *Client
	notifier *notify.Notifier
	host     string
}

// NewForwarder creates a forwarder writing through client. host tags
// the recording state series with the supervised Shogun host.
func NewForwarder(client *Client, notifier *notify.Notifier, host string) *Forwarder {
	return &Forwarder{client: client, notifier: notifier, host: host}
}

// Run records events until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) {
	sub := f.notifier.Subscribe(64)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			f.client.WriteSessionEvent(ev)
			if ev.Kind == notify.KindRecording {
				f.client.WriteRecordingState(f.host, ev.Value == "true")
			}
		}
	}
}
