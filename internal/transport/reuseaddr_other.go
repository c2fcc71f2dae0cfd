//go:build !unix

package transport

import "syscall"

// controlSetReuseAddr is a no-op on non-Unix platforms; SO_REUSEADDR has no
// equivalent benefit for this transport's single-listener usage there.
func controlSetReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
