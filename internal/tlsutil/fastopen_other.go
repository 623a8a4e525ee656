//go:build !linux

package tlsutil

import "net"

// setFastOpenConnect is a no-op outside Linux; TCP_FASTOPEN_CONNECT is a
// Linux-specific socket option and the original's "#ifdef" guard meant the
// same thing on other platforms.
func setFastOpenConnect(conn net.Conn) {}
