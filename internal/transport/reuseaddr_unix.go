//go:build unix

package transport

import "syscall"

// controlSetReuseAddr is passed as net.ListenConfig.Control so the UDP
// socket is bound with SO_REUSEADDR before Bind, matching the teacher's
// per-platform syscall split for socket options.
func controlSetReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
