package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shogun-tools/osc-bridge/internal/notify"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Retained messages are stored by the broker and delivered to new
// subscribers immediately. Use for state topics, not events.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// eventPayload is the JSON body published for each mirrored notification.
type eventPayload struct {
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishNotification mirrors one session event to the broker under
// the event topic for its kind.
//
// Example: shogunosc/event/recording <- {"kind":"recording","value":"true",...}
func (c *Client) PublishNotification(ev notify.Event) error {
	payload, err := json.Marshal(eventPayload{
		Kind:      string(ev.Kind),
		Value:     ev.Value,
		Timestamp: ev.Time.UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrPublishFailed, err)
	}
	return c.Publish(c.topics.Event(string(ev.Kind)), payload, byte(c.cfg.QoS), false)
}
