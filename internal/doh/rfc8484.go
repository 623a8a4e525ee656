package doh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/sebkrahmer/harddns-go/internal/wire"
)

// ParseRFC8484 decodes a raw RFC 8484 binary DNS message into a Reply,
// grounded on parse_rfc8484 in the original client: a first pass over the
// answer section collects the chain of names reachable from queryName via
// CNAME (emitting one synthetic "NSS CNAME" marker record per hop so the
// NSS adaptor can rebuild the alias chain without redecoding the message),
// then a second pass emits the actual A/AAAA/CNAME/NS/MX records whose
// owner is a member of that chain.
func ParseRFC8484(queryName string, qtype uint16, msg []byte) (*Reply, error) {
	const headerLen = 12
	if len(msg) < headerLen+5 {
		return nil, errors.New("doh: rfc8484 reply too short")
	}

	flags := binary.BigEndian.Uint16(msg[2:4])
	if flags&0x8000 == 0 {
		return nil, errors.New("doh: rfc8484 reply has QR=0, not a response")
	}
	rcode := int(flags & 0xf)
	if rcode == 3 {
		return &Reply{NXDomain: true}, nil
	}
	if rcode != 0 {
		// Any other non-zero rcode (e.g. SERVFAIL) is a no-answer, not a
		// retryable parse failure: build_error(..., 0) in dnshttps.cc, never -1.
		return &Reply{}, nil
	}

	qdcount := binary.BigEndian.Uint16(msg[4:6])
	ancount := binary.BigEndian.Uint16(msg[6:8])
	if qdcount != 1 {
		return nil, fmt.Errorf("doh: rfc8484 reply has %d questions, expected 1", qdcount)
	}

	idx := headerLen
	qname, n, err := wire.DecodeName(msg, idx)
	if err != nil {
		return nil, fmt.Errorf("doh: rfc8484 question name: %w", err)
	}
	if idx+n+4 > len(msg) {
		return nil, errors.New("doh: rfc8484 reply truncated after question")
	}
	fqdn := wire.Lower(qname)
	if wire.Lower(queryName+".") != fqdn {
		return nil, fmt.Errorf("doh: rfc8484 reply name %q does not match query %q", fqdn, queryName)
	}
	idx += n + 4 // qtype + qclass

	answerStart := idx

	// Pass 1: discover the CNAME chain rooted at fqdn.
	chain := map[string]bool{fqdn: true}
	var records []Record

	walkIdx := answerStart
	for i := uint16(0); i < ancount && walkIdx < len(msg); i++ {
		aname, n, err := wire.DecodeName(msg, walkIdx)
		if err != nil {
			return nil, fmt.Errorf("doh: rfc8484 answer name (pass 1): %w", err)
		}
		owner := wire.Lower(aname)
		walkIdx += n
		if walkIdx+10 > len(msg) {
			return nil, errors.New("doh: rfc8484 answer truncated (pass 1)")
		}
		rtype := binary.BigEndian.Uint16(msg[walkIdx : walkIdx+2])
		rclass := binary.BigEndian.Uint16(msg[walkIdx+2 : walkIdx+4])
		ttl := binary.BigEndian.Uint32(msg[walkIdx+4 : walkIdx+8])
		rdlen := int(binary.BigEndian.Uint16(msg[walkIdx+8 : walkIdx+10]))
		walkIdx += 10
		if rclass != dns.ClassINET || rdlen == 0 || walkIdx+rdlen > len(msg) {
			return nil, errors.New("doh: rfc8484 answer rdata out of range (pass 1)")
		}

		if rtype == dns.TypeCNAME && chain[owner] {
			cname, _, err := wire.DecodeName(msg, walkIdx)
			if err != nil {
				return nil, fmt.Errorf("doh: rfc8484 cname target: %w", err)
			}
			target := wire.Lower(cname)
			chain[target] = true
			records = append(records, Record{Name: "NSS CNAME", TTL: ttl, Target: target, Synthetic: true})
		}
		walkIdx += rdlen
	}

	// Pass 2: emit the actual answer records for chain members.
	idx = answerStart
	hasAnswer := false
	for i := uint16(0); i < ancount && idx < len(msg); i++ {
		aname, n, err := wire.DecodeName(msg, idx)
		if err != nil {
			return nil, fmt.Errorf("doh: rfc8484 answer name (pass 2): %w", err)
		}
		idx += n
		if idx+10 > len(msg) {
			return nil, errors.New("doh: rfc8484 answer truncated (pass 2)")
		}
		rtype := binary.BigEndian.Uint16(msg[idx : idx+2])
		rclass := binary.BigEndian.Uint16(msg[idx+2 : idx+4])
		ttl := binary.BigEndian.Uint32(msg[idx+4 : idx+8])
		rdlen := int(binary.BigEndian.Uint16(msg[idx+8 : idx+10]))
		idx += 10
		if rclass != dns.ClassINET || rdlen == 0 || idx+rdlen > len(msg) {
			return nil, errors.New("doh: rfc8484 answer rdata out of range (pass 2)")
		}

		owner := wire.Lower(aname)
		rdata := msg[idx : idx+rdlen]

		switch {
		case rtype == dns.TypeA && chain[owner]:
			if rdlen != 4 {
				return nil, errors.New("doh: rfc8484 malformed A record")
			}
			records = append(records, Record{Name: aname, Type: rtype, Class: rclass, TTL: ttl, IP: net.IP(append([]byte{}, rdata...))})
			hasAnswer = true
		case rtype == dns.TypeAAAA && chain[owner]:
			if rdlen != 16 {
				return nil, errors.New("doh: rfc8484 malformed AAAA record")
			}
			records = append(records, Record{Name: aname, Type: rtype, Class: rclass, TTL: ttl, IP: net.IP(append([]byte{}, rdata...))})
			hasAnswer = true
		case rtype == dns.TypeCNAME && chain[owner]:
			target, _, err := wire.DecodeName(msg, idx)
			if err != nil {
				return nil, fmt.Errorf("doh: rfc8484 cname answer: %w", err)
			}
			records = append(records, Record{Name: aname, Type: rtype, Class: rclass, TTL: ttl, Target: wire.Lower(target)})
		case rtype == dns.TypeNS && rtype == qtype && chain[owner]:
			target, _, err := wire.DecodeName(msg, idx)
			if err == nil {
				records = append(records, Record{Name: aname, Type: rtype, Class: rclass, TTL: ttl, Target: wire.Lower(target)})
				hasAnswer = true
			}
		case rtype == dns.TypeMX && rtype == qtype && chain[owner]:
			records = append(records, Record{Name: aname, Type: rtype, Class: rclass, TTL: ttl, RawRData: append([]byte{}, rdata...)})
			hasAnswer = true
		}

		idx += rdlen
	}

	if !hasAnswer {
		return &Reply{Records: records}, nil
	}
	return &Reply{Records: records}, nil
}
