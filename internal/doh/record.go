// Package doh implements the DNS-over-HTTPS protocol adaptor: encoding a
// query for either wire dialect a configured upstream speaks (RFC 8484
// binary or the "Google-style" JSON dialect), hand-framing the HTTP/1.1
// request over a pinned TLS connection, and decoding whichever dialect
// comes back into a dialect-independent Record slice.
package doh

import (
	"net"

	"github.com/miekg/dns"
)

// Record is the dialect-independent shape both parsers produce, grounded on
// the answer_t struct in the original client (qname/qtype/qclass/ttl/rdata),
// with the rdata union resolved into typed fields since Go has no
// convenient equivalent of reinterpreting a string as whichever type fits.
type Record struct {
	Name      string // owner name, presentation format with a trailing dot
	Type      uint16
	Class     uint16
	TTL       uint32
	IP        net.IP // set when Type is A or AAAA
	Target    string // set when Type is CNAME or NS (presentation format)
	RawRData  []byte // set when Type is MX: copied verbatim, no decompression (matches dnshttps.cc's "XXX: handle decompression" MX/NS rdata copy)
	Synthetic bool   // true for "NSS CNAME" marker records: never sent on the wire
}

// Reply is the outcome of a single upstream exchange.
type Reply struct {
	Records []Record
	// NXDomain is true when the upstream returned a clean "no such name"
	// response (status 3 for JSON, RCODE 3 for RFC 8484) rather than an
	// error or a successful answer.
	NXDomain bool
}

// HasAnswer reports whether at least one non-synthetic A, AAAA, NS or MX
// record was produced, mirroring the original parsers' has_answer
// bookkeeping (a CNAME on its own is not a usable answer).
func (r *Reply) HasAnswer() bool {
	for _, rec := range r.Records {
		if rec.Synthetic {
			continue
		}
		switch rec.Type {
		case dns.TypeA, dns.TypeAAAA, dns.TypeNS, dns.TypeMX:
			return true
		}
	}
	return false
}
