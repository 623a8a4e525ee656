package proxy

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebkrahmer/harddns-go/internal/cache"
	"github.com/sebkrahmer/harddns-go/internal/doh"
	"github.com/sebkrahmer/harddns-go/internal/wire"
)

type fakeResolver struct {
	reply *doh.Reply
	err   error
}

func (f *fakeResolver) Resolve(name string, qtype uint16) (*doh.Reply, error) {
	return f.reply, f.err
}

func newTestProxy(t *testing.T, resolver Resolver) *Proxy {
	t.Helper()
	p, err := New(Config{
		ListenAddr: "127.0.0.1:0",
		Cache:      cache.New(),
		Resolver:   resolver,
		InternalDomains: []InternalDomain{
			{Suffix: "corp.example.net", Nameserver: "127.0.0.1"},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestRdataBytesMXUsesRawRData(t *testing.T) {
	raw := []byte{0, 10, 3, 'm', 'x', 'a', 0}
	rdata, err := rdataBytes(doh.Record{Type: dns.TypeMX, RawRData: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, rdata)
}

func TestRdataBytesMXMissingRawRDataErrors(t *testing.T) {
	_, err := rdataBytes(doh.Record{Type: dns.TypeMX})
	assert.Error(t, err)
}

func TestInternalNameserverSuffixMatch(t *testing.T) {
	p := newTestProxy(t, &fakeResolver{})
	ns, ok := p.internalNameserver("host.corp.example.net")
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1", ns)

	_, ok = p.internalNameserver("host.public.example.net")
	assert.False(t, ok)
}

func TestAnswerQueryCachesAndReportsCounters(t *testing.T) {
	reply := &doh.Reply{Records: []doh.Record{
		{Name: "example.net.", Type: dns.TypeA, Class: dns.ClassINET, TTL: 60, IP: net.ParseIP("192.0.2.1").To4()},
	}}
	p := newTestProxy(t, &fakeResolver{reply: reply})

	from := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5353}
	query := buildTestQuery(t, "example.net", dns.TypeA)

	p.answerQuery(from, query, 1234, "example.net", dns.TypeA, questionNameLen(t, query))

	_, cached := p.cache.Get(cache.Key{FQDN: "example.net.", QType: dns.TypeA})
	assert.True(t, cached)

	report := p.Report(false)
	assert.Contains(t, report, "answered=1")
}

func buildTestQuery(t *testing.T, name string, qtype uint16) []byte {
	t.Helper()
	msg := make([]byte, 12)
	msg[5] = 1 // qdcount = 1
	labels, err := wire.EncodeName(name)
	require.NoError(t, err)
	msg = append(msg, labels...)
	msg = append(msg, byte(qtype>>8), byte(qtype), 0, 1)
	return msg
}

func questionNameLen(t *testing.T, query []byte) int {
	t.Helper()
	i := 12
	for query[i] != 0 {
		i += int(query[i]) + 1
	}
	return i - 12 + 1
}
