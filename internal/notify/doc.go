// Package notify is the event bus between the bridge core and its
// notification sinks (log output, OSC mirror, MQTT mirror, journal).
//
// The command dispatcher and the session supervisor publish events;
// sinks subscribe and consume at their own pace. Publishing is
// fire-and-forget: a slow or stalled sink never blocks the emitter,
// and within one emitting goroutine delivery order is preserved.
package notify
