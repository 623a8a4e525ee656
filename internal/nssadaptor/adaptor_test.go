package nssadaptor

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebkrahmer/harddns-go/internal/doh"
)

type scriptedResolver struct {
	replies map[string]*doh.Reply
	err     error
}

func (s *scriptedResolver) Resolve(name string, qtype uint16) (*doh.Reply, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.replies[name+"|"+dns.TypeToString[qtype]]
	if !ok {
		return &doh.Reply{}, nil
	}
	return r, nil
}

func TestLookupByNameDirect(t *testing.T) {
	resolver := &scriptedResolver{replies: map[string]*doh.Reply{
		"example.net|A": {Records: []doh.Record{
			{Name: "example.net.", Type: dns.TypeA, TTL: 300, IP: net.ParseIP("192.0.2.1").To4()},
		}},
	}}
	a := New(resolver)

	result, err := a.LookupByName("example.net", dns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, "example.net", result.Name)
	assert.Len(t, result.Addrs, 1)
	assert.Equal(t, uint32(300), result.TTL)
}

func TestLookupByNameFollowsCNAMEChain(t *testing.T) {
	resolver := &scriptedResolver{replies: map[string]*doh.Reply{
		"www.example.net|A": {Records: []doh.Record{
			{Name: "NSS CNAME", TTL: 300, Target: "edge.example.net.", Synthetic: true},
		}},
		"edge.example.net.|A": {Records: []doh.Record{
			{Name: "edge.example.net.", Type: dns.TypeA, TTL: 120, IP: net.ParseIP("198.51.100.1").To4()},
		}},
	}}
	a := New(resolver)

	result, err := a.LookupByName("www.example.net", dns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge.example.net."}, result.Aliases)
	require.Len(t, result.Addrs, 1)
	assert.Equal(t, "198.51.100.1", result.Addrs[0].String())
}

func TestLookupByNameGivesUpAfterThreeLevels(t *testing.T) {
	resolver := &scriptedResolver{replies: map[string]*doh.Reply{
		"a|A": {Records: []doh.Record{{Name: "NSS CNAME", Target: "b", Synthetic: true}}},
		"b|A": {Records: []doh.Record{{Name: "NSS CNAME", Target: "c", Synthetic: true}}},
		"c|A": {Records: []doh.Record{{Name: "NSS CNAME", Target: "d", Synthetic: true}}},
	}}
	a := New(resolver)

	_, err := a.LookupByName("a", dns.TypeA)
	assert.Error(t, err)
}

func TestLookupByNameRejectsUnsupportedType(t *testing.T) {
	a := New(&scriptedResolver{})
	_, err := a.LookupByName("example.net", dns.TypeMX)
	assert.Error(t, err)
}

func TestLookupBothFamiliesCombinesAnswers(t *testing.T) {
	resolver := &scriptedResolver{replies: map[string]*doh.Reply{
		"dual.example.net|A": {Records: []doh.Record{
			{Name: "dual.example.net.", Type: dns.TypeA, TTL: 60, IP: net.ParseIP("192.0.2.2").To4()},
		}},
		"dual.example.net|AAAA": {Records: []doh.Record{
			{Name: "dual.example.net.", Type: dns.TypeAAAA, TTL: 60, IP: net.ParseIP("2001:db8::1")},
		}},
	}}
	a := New(resolver)

	result, err := a.LookupBothFamilies("dual.example.net")
	require.NoError(t, err)
	assert.Len(t, result.Addrs, 2)
}

func TestLookupPTR(t *testing.T) {
	name, err := LookupPTR(net.ParseIP("192.0.2.1"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.0.192.in-addr.arpa", name)
}
