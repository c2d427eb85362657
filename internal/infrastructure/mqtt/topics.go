package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "shogunosc"

// Topics builds the bridge's MQTT topic names under a configured
// prefix. Using these helpers keeps topic naming consistent between
// the LWT, status publishes and event publishes.
//
//	topics := mqtt.NewTopics("shogunosc")
//	topics.Event("recording") // "shogunosc/event/recording"
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder with the given prefix. An empty
// prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Status returns the bridge status topic, also used for the LWT.
//
// Example: shogunosc/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

// Event returns the topic for a notification kind.
//
// Example: shogunosc/event/recording
func (t Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix, kind)
}
