package wire

import (
	"fmt"
	"net"
	"strings"
)

// PTRName builds the in-addr.arpa/ip6.arpa fqdn used for reverse lookups
// from a resolved IP address. It is the Go equivalent of the original
// A2PTR_fqdn/AAAA2PTR_fqdn pair, collapsed into one function since net.IP
// already tells the two families apart.
func PTRName(ip net.IP) (string, error) {
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa", v4[3], v4[2], v4[1], v4[0]), nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return "", fmt.Errorf("wire: %v is neither a valid IPv4 nor IPv6 address", ip)
	}

	var b strings.Builder
	for i := len(v6) - 1; i >= 0; i-- {
		lo := v6[i] & 0xf
		hi := (v6[i] & 0xf0) >> 4
		fmt.Fprintf(&b, "%x.%x.", lo, hi)
	}
	b.WriteString("ip6.arpa")
	return b.String(), nil
}
