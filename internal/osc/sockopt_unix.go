//go:build unix

package osc

import "syscall"

// enableBroadcast is a net.ListenConfig Control hook that sets
// SO_BROADCAST on the socket before it is bound.
func enableBroadcast(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
