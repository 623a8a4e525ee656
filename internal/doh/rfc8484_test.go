package doh

import (
	"encoding/binary"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebkrahmer/harddns-go/internal/wire"
)

func appendRR(t *testing.T, buf []byte, owner string, rtype uint16, ttl uint32, rdata []byte) []byte {
	t.Helper()
	name, err := wire.EncodeName(owner)
	require.NoError(t, err)
	buf = append(buf, name...)
	var tail [10]byte
	binary.BigEndian.PutUint16(tail[0:2], rtype)
	binary.BigEndian.PutUint16(tail[2:4], dns.ClassINET)
	binary.BigEndian.PutUint32(tail[4:8], ttl)
	binary.BigEndian.PutUint16(tail[8:10], uint16(len(rdata)))
	buf = append(buf, tail[:]...)
	buf = append(buf, rdata...)
	return buf
}

func buildReply(t *testing.T, qname string, qtype uint16, ancount uint16, answers func([]byte) []byte) []byte {
	t.Helper()
	msg := make([]byte, 12)
	binary.BigEndian.PutUint16(msg[2:4], 0x8180) // QR=1, RD+RA, RCODE 0
	binary.BigEndian.PutUint16(msg[4:6], 1)      // qdcount
	binary.BigEndian.PutUint16(msg[6:8], ancount)

	qn, err := wire.EncodeName(qname)
	require.NoError(t, err)
	msg = append(msg, qn...)
	var qtail [4]byte
	binary.BigEndian.PutUint16(qtail[0:2], qtype)
	binary.BigEndian.PutUint16(qtail[2:4], dns.ClassINET)
	msg = append(msg, qtail[:]...)

	msg = answers(msg)
	return msg
}

func TestParseRFC8484SimpleA(t *testing.T) {
	msg := buildReply(t, "example.net", dns.TypeA, 1, func(buf []byte) []byte {
		return appendRR(t, buf, "example.net.", dns.TypeA, 300, []byte{192, 0, 2, 1})
	})

	reply, err := ParseRFC8484("example.net", dns.TypeA, msg)
	require.NoError(t, err)
	require.True(t, reply.HasAnswer())
	assert.Equal(t, "192.0.2.1", reply.Records[0].IP.String())
}

func TestParseRFC8484RejectsNameMismatch(t *testing.T) {
	msg := buildReply(t, "example.net", dns.TypeA, 1, func(buf []byte) []byte {
		return appendRR(t, buf, "example.net.", dns.TypeA, 300, []byte{192, 0, 2, 1})
	})
	_, err := ParseRFC8484("other.example.net", dns.TypeA, msg)
	require.Error(t, err)
}

func TestParseRFC8484ServfailIsNoAnswerNotError(t *testing.T) {
	msg := make([]byte, 12)
	binary.BigEndian.PutUint16(msg[2:4], 0x8182) // QR=1, RCODE=2 (SERVFAIL)
	binary.BigEndian.PutUint16(msg[4:6], 1)
	qn, err := wire.EncodeName("example.net")
	require.NoError(t, err)
	msg = append(msg, qn...)
	msg = append(msg, 0, 1, 0, 1)

	reply, err := ParseRFC8484("example.net", dns.TypeA, msg)
	require.NoError(t, err)
	assert.False(t, reply.NXDomain)
	assert.False(t, reply.HasAnswer())
}

func TestParseRFC8484MXCarriesRawRData(t *testing.T) {
	rdata := []byte{0, 10, 3, 'm', 'x', 'a', 0}
	msg := buildReply(t, "example.net", dns.TypeMX, 1, func(buf []byte) []byte {
		return appendRR(t, buf, "example.net.", dns.TypeMX, 300, rdata)
	})

	reply, err := ParseRFC8484("example.net", dns.TypeMX, msg)
	require.NoError(t, err)
	require.True(t, reply.HasAnswer())
	assert.Equal(t, rdata, reply.Records[0].RawRData)
}

func TestParseRFC8484NXDomain(t *testing.T) {
	msg := make([]byte, 12)
	binary.BigEndian.PutUint16(msg[2:4], 0x8183) // QR=1, RCODE=3
	binary.BigEndian.PutUint16(msg[4:6], 1)
	qn, err := wire.EncodeName("nonexistent.example.net")
	require.NoError(t, err)
	msg = append(msg, qn...)
	msg = append(msg, 0, 1, 0, 1)

	reply, err := ParseRFC8484("nonexistent.example.net", dns.TypeA, msg)
	require.NoError(t, err)
	assert.True(t, reply.NXDomain)
}
