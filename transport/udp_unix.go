//go:build linux || freebsd || openbsd || darwin || netbsd || dragonfly
// +build linux freebsd openbsd darwin netbsd dragonfly

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket raises the kernel socket buffers for a freshly bound UDP
// listener so a burst of retransmissions (worst case: up to Rc resends
// for each of max_outstanding_transactions transactions per peer) does not
// overrun the receive queue. Grounded on the pack's
// pkg/kernel/kernel_unix.go, which reaches for golang.org/x/sys/unix the
// same way to touch a facility encoding/binary and net alone don't
// expose.
func tuneSocket(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	const bufSize = 1 << 20 // 1 MiB
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, bufSize); e != nil {
			sockErr = e
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, bufSize)
	})
	if err != nil {
		return err
	}
	return sockErr
}
