//go:build !linux && !freebsd && !openbsd && !darwin && !netbsd && !dragonfly
// +build !linux,!freebsd,!openbsd,!darwin,!netbsd,!dragonfly

package transport

import "net"

// tuneSocket is a no-op on platforms without golang.org/x/sys/unix socket
// option support (e.g. Windows, WASM).
func tuneSocket(*net.UDPConn) error {
	return nil
}
