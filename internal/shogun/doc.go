// Package shogun supervises the connection to a Vicon Shogun Live
// instance and exposes capture operations against it.
//
// The worker owns the full session lifecycle: it waits for the Shogun
// process to appear, connects and probes the session, polls liveness
// and capture settings on a fixed cadence, detects process restarts by
// PID change, and reconnects with bounded exponential backoff when the
// connection drops. Capture operations (start, stop, name, folder,
// description) are serialised against the session and retry exactly
// once after a transport failure.
//
// State transitions and capture setting changes are published through
// a notify.Notifier so transports can mirror them without coupling to
// this package.
package shogun
