package transport

import "fmt"

// ConnectError wraps a failure dialing a peer address. Non-fatal: logged
// and the send or bootstrap attempt is dropped.
type ConnectError struct {
	Addr  string
	Cause error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: connect to %s: %v", e.Addr, e.Cause)
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// ConnectionEstablishError wraps a failure completing the QUIC/TLS
// handshake after the dial succeeded at the UDP layer.
type ConnectionEstablishError struct {
	Addr  string
	Cause error
}

func (e *ConnectionEstablishError) Error() string {
	return fmt.Sprintf("transport: establish connection to %s: %v", e.Addr, e.Cause)
}

func (e *ConnectionEstablishError) Unwrap() error { return e.Cause }

// ConnectionError wraps a connection that was up and then dropped.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: connection: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// WriteStreamError wraps a mid-send failure writing to a uni-stream.
type WriteStreamError struct {
	Addr  string
	Cause error
}

func (e *WriteStreamError) Error() string {
	return fmt.Sprintf("transport: write stream to %s: %v", e.Addr, e.Cause)
}

func (e *WriteStreamError) Unwrap() error { return e.Cause }

// BindError wraps a fatal failure binding the UDP endpoint at startup.
type BindError struct {
	Addr  string
	Cause error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("transport: bind %s: %v", e.Addr, e.Cause)
}

func (e *BindError) Unwrap() error { return e.Cause }
