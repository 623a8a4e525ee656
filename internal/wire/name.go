// Package wire implements the hand-framed DNS name encoding this module
// needs to stay byte-compatible with the legacy resolver it replaces:
// label (un)compression, query header construction and the PTR-name
// helpers used by reverse lookups.
package wire

import (
	"errors"
	"strings"

	"github.com/sebkrahmer/harddns-go/internal/constants"
)

// EncodeName turns "foo.bar" or "foo.bar." into wire-format labels:
// \003foo\003bar\000. Labels longer than the 63-byte maximum are split into
// synthetic sub-labels rather than rejected, matching host2qname's behaviour
// of silently accommodating oversized components.
func EncodeName(host string) ([]byte, error) {
	c := constants.Get()

	var labels []string
	for _, part := range strings.Split(host, ".") {
		for len(part) > c.DNSMaxLabelLength {
			labels = append(labels, part[:c.DNSMaxLabelLength])
			part = part[c.DNSMaxLabelLength:]
		}
		if len(part) > 0 { // skip the empty trailing component from a trailing dot
			labels = append(labels, part)
		}
	}

	out := make([]byte, 0, len(host)+2)
	for _, l := range labels {
		out = append(out, byte(len(l)))
		out = append(out, l...)
	}
	out = append(out, 0)

	if len(out) >= 2048 {
		return nil, errors.New("wire: encoded name exceeds internal size limit")
	}
	return out, nil
}

// DecodeName decodes a wire-format name starting at offset in msg, following
// compression pointers. startIdx of 0 means msg is a bare name buffer (not a
// full message) and compression pointers are therefore invalid, mirroring
// qname2host's refusal to decompress when start_idx==0.
//
// It returns the decoded dotted name (trailing dot included) and the number
// of bytes consumed from the *uncompressed* portion of msg (i.e. the value
// needed to advance a reader past this name, irrespective of any pointer
// jump at the end).
func DecodeName(msg []byte, startIdx int) (string, int, error) {
	c := constants.Get()

	var b strings.Builder
	i := startIdx
	consumed := 0
	hops := 0

	for {
		if i >= len(msg) {
			return "", 0, errors.New("wire: name runs past end of message")
		}
		length := int(msg[i])
		if length == 0 {
			break
		}

		if length > c.DNSMaxLabelLength {
			if startIdx == 0 {
				return "", 0, errors.New("wire: compression pointer not allowed in bare name")
			}
			hops++
			if hops > c.MaxCompressionHop {
				return "", 0, errors.New("wire: too many compression hops")
			}
			if length&0xc0 != 0xc0 {
				return "", 0, errors.New("wire: invalid label length byte")
			}
			if i+1 >= len(msg) {
				return "", 0, errors.New("wire: truncated compression pointer")
			}
			target := int(msg[i+1])
			if target >= len(msg) {
				return "", 0, errors.New("wire: compression pointer out of range")
			}
			if hops == 1 {
				consumed++ // the trailing +1 below accounts for the rest
			}
			i = target
			continue
		}

		if i+length+1 > len(msg) {
			return "", 0, errors.New("wire: label runs past end of message")
		}
		b.Write(msg[i+1 : i+1+length])
		b.WriteByte('.')

		i += length + 1
		if hops == 0 {
			consumed += length + 1
		}
	}

	name := b.String()
	if len(name) == 0 {
		return "", 0, nil
	}
	if len(name) > c.DNSMaxNameLength {
		return "", 0, errors.New("wire: decoded name exceeds RFC1035 length limit")
	}
	return name, consumed + 1, nil
}

// ValidName checks the legacy charset for a presentation-format name:
// letters, digits, hyphen and dot only, 2-254 bytes. It does not check
// individual label lengths.
func ValidName(name string) bool {
	c := constants.Get()
	l := len(name)
	if l > c.DNSMaxNameLength-1 || l < 2 {
		return false
	}
	for i := 0; i < l; i++ {
		ch := name[i]
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch == '-' || ch == '.':
		default:
			return false
		}
	}
	return true
}

// Lower returns an ASCII-lowercased copy of s, used to normalize fqdns
// before they become cache or forward-pending table keys.
func Lower(s string) string {
	return strings.ToLower(s)
}
