// Package procwatch provides process-presence detection for the session
// supervisor.
//
// The supervisor needs to know whether the Shogun Live process is
// running before attempting to connect, and whether its PID changed
// between checks (which indicates a restart). This package answers
// both questions by enumerating running processes and matching their
// names against configured substrings.
package procwatch
