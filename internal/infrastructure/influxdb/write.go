package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// WriteSessionEvent records one session notification.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Event kind goes into a tag so dashboards can filter transitions by
// type; the value is stored as a field.
func (c *Client) WriteSessionEvent(ev notify.Event) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"session_events",
		map[string]string{
			"kind": string(ev.Kind),
		},
		map[string]interface{}{
			"value": ev.Value,
		},
		ev.Time,
	)

	c.writeAPI.WritePoint(point)
}

// WriteRecordingState records the recording flag for a host, giving a
// step chart of capture activity over time.
func (c *Client) WriteRecordingState(host string, recording bool) {
	state := 0
	if recording {
		state = 1
	}
	c.WritePoint("recording",
		map[string]string{"host": host},
		map[string]interface{}{"state": state},
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
