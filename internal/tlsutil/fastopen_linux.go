//go:build linux

package tlsutil

import (
	"net"

	"golang.org/x/sys/unix"
)

// setFastOpenConnect best-effort enables TCP_FASTOPEN_CONNECT, the Go
// equivalent of ssl.cc's "#ifdef TCP_FASTOPEN_CONNECT" setsockopt guard.
// Failure is never fatal, matching the original's unchecked setsockopt call.
func setFastOpenConnect(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_FASTOPEN_CONNECT, 1)
	})
}
