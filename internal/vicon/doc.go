// Package vicon talks to the Vicon Shogun Live application API. It is
// the only package that knows the wire format; everything else works
// against the shogun.Device and shogun.Session contracts.
//
// The API is a line-oriented JSON request/response protocol on a TCP
// port (52800 by default). Calls are serialised over one connection
// and every call carries a deadline so a wedged application cannot
// hang the supervisor.
//
// Connect probes whether the application exposes the capture
// description functions; on older versions the returned session
// omits the setter so callers can detect the gap with a type
// assertion instead of a failing call.
package vicon
