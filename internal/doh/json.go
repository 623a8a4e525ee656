package doh

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/sebkrahmer/harddns-go/internal/wire"
)

// jsonAnswer mirrors one element of the "answer" array in the Google/
// Cloudflare-style JSON DoH dialect.
type jsonAnswer struct {
	Name string `json:"name"`
	Type uint16 `json:"type"`
	TTL  uint32 `json:"TTL"`
	Data string `json:"data"`
}

type jsonReply struct {
	Status int          `json:"Status"`
	Answer []jsonAnswer `json:"Answer"`
}

// ParseJSON decodes a JSON-dialect DoH response body into a Reply. It
// follows the same two-stage approach as parse_json in the original
// client - first walk the CNAME chain rooted at queryName, emitting one
// synthetic "NSS CNAME" marker per hop, then emit the real records whose
// owner is a member of that chain - but drives it off decoded Go structs
// via encoding/json rather than re-implementing a JSON scanner by hand,
// since Go's standard library already gives us a correct, idiomatic
// parser for this (original_source/'s string-search approach was a
// workaround for not having one available in C++).
func ParseJSON(queryName string, qtype uint16, body []byte) (*Reply, error) {
	var parsed jsonReply
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("doh: invalid json reply: %w", err)
	}

	if parsed.Status == 3 {
		return &Reply{NXDomain: true}, nil
	}
	if parsed.Status != 0 {
		// Any other non-zero status (e.g. SERVFAIL=2) is a no-answer, not a
		// retryable parse failure: parse_json returns 0 for any status != 0,
		// never -1.
		return &Reply{}, nil
	}

	var records []Record
	chain := map[string]bool{wire.Lower(queryName): true}

	current := wire.Lower(queryName)
	for level := 0; level < 10; level++ {
		if !wire.ValidName(current) {
			return nil, errors.New("doh: invalid name in cname chain")
		}
		target, ttl, found := findCNAME(parsed.Answer, current)
		if !found {
			break
		}
		if !wire.ValidName(target) {
			return nil, errors.New("doh: invalid cname target")
		}
		records = append(records, Record{Name: "NSS CNAME", TTL: ttl, Target: target, Synthetic: true})
		chain[target] = true
		current = target
	}

	for _, a := range parsed.Answer {
		owner := wire.Lower(strings.TrimSuffix(a.Name, "."))
		if !chain[owner] {
			continue
		}

		switch uint16(a.Type) {
		case dns.TypeA:
			ip := net.ParseIP(a.Data).To4()
			if ip == nil {
				continue
			}
			records = append(records, Record{Name: a.Name, Type: dns.TypeA, Class: dns.ClassINET, TTL: a.TTL, IP: ip})
		case dns.TypeAAAA:
			ip := net.ParseIP(a.Data).To16()
			if ip == nil {
				continue
			}
			records = append(records, Record{Name: a.Name, Type: dns.TypeAAAA, Class: dns.ClassINET, TTL: a.TTL, IP: ip})
		case dns.TypeNS:
			if !wire.ValidName(a.Data) {
				return nil, errors.New("doh: invalid NS target in json reply")
			}
			records = append(records, Record{Name: a.Name, Type: dns.TypeNS, Class: dns.ClassINET, TTL: a.TTL, Target: wire.Lower(strings.TrimSuffix(a.Data, "."))})
		case dns.TypeCNAME:
			records = append(records, Record{Name: a.Name, Type: dns.TypeCNAME, Class: dns.ClassINET, TTL: a.TTL, Target: wire.Lower(strings.TrimSuffix(a.Data, "."))})
		}
	}

	_ = qtype // kept for parity with the dialect-independent parser signature; filtering is by chain membership, not qtype, matching the original
	return &Reply{Records: records}, nil
}

func findCNAME(answers []jsonAnswer, owner string) (target string, ttl uint32, found bool) {
	for _, a := range answers {
		if a.Type != dns.TypeCNAME {
			continue
		}
		if wire.Lower(strings.TrimSuffix(a.Name, ".")) != owner {
			continue
		}
		return wire.Lower(strings.TrimSuffix(a.Data, ".")), a.TTL, true
	}
	return "", 0, false
}
