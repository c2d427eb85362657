// Package osc is the OSC transport of the bridge: a UDP server that
// receives command datagrams, a dispatcher that maps OSC addresses to
// capture operations, a client for outbound messages and a mirror that
// forwards selected session events back onto the network.
//
// The server loop never blocks on device work. Each recognised command
// is dispatched on its own goroutine and its outcome surfaces through
// the notifier, not through a reply on the receive path.
package osc
