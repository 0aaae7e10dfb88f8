// Package transport drives a streaming framer over a net.Conn.
//
// Ownership boundary:
// - read loop with idle deadline and context cancellation
// - serialized writes of encoded messages
// - accept loop for inbound connections
// - TLS and mutual TLS on Dial and Listen
// - per-connection metrics and dropped frame logging
//
// Session level behavior (logon, sequence numbers, resend) is left to the
// handler.
package transport
