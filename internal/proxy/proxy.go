// Package proxy implements the stub-resolver UDP front-end: a
// single-threaded event loop that answers A/AAAA queries via the DoH
// client (consulting a TTL cache first) and transparently forwards
// anything under a configured internal domain to a conventional
// nameserver, grounded on doh_proxy::loop in the original proxy.
package proxy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/sebkrahmer/harddns-go/internal/cache"
	"github.com/sebkrahmer/harddns-go/internal/doh"
	"github.com/sebkrahmer/harddns-go/internal/wire"
)

const me = "proxy"

// Resolver is the subset of *doh.Client the proxy needs, kept as an
// interface so tests can substitute a fake upstream.
type Resolver interface {
	Resolve(name string, qtype uint16) (*doh.Reply, error)
}

// InternalDomain routes any query whose fqdn ends in Suffix, verbatim and
// undecoded, to Nameserver instead of resolving it over DoH - the Go
// equivalent of config::internal_domains.
type InternalDomain struct {
	Suffix     string
	Nameserver string
}

// Config configures a Proxy instance.
type Config struct {
	ListenAddr      string
	Cache           *cache.Cache
	Resolver        Resolver
	InternalDomains []InternalDomain
	LogRequests     bool
}

type pendingKey struct {
	fqdn     string
	id       uint16
	upstream string
}

// Proxy is the single-threaded UDP stub resolver. It is not safe for
// concurrent use of Run from multiple goroutines - there is exactly one
// event loop, matching the original's single recvfrom loop, so the
// forward-pending table needs no mutex.
type Proxy struct {
	conn            *net.UDPConn
	cache           *cache.Cache
	resolver        Resolver
	internalDomains []InternalDomain
	logRequests     bool
	pending         map[pendingKey]*net.UDPAddr

	answered   atomic.Int64
	forwarded  atomic.Int64
	failures   atomic.Int64
	cacheHits  atomic.Int64
}

// New binds the listen socket and returns a ready-to-run Proxy.
func New(cfg Config) (*Proxy, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("%s: resolve listen addr: %w", me, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: listen: %w", me, err)
	}
	return &Proxy{
		conn:            conn,
		cache:           cfg.Cache,
		resolver:        cfg.Resolver,
		internalDomains: cfg.InternalDomains,
		logRequests:     cfg.LogRequests,
		pending:         make(map[pendingKey]*net.UDPAddr),
	}, nil
}

// Close releases the listen socket.
func (p *Proxy) Close() error {
	return p.conn.Close()
}

// Run drives the event loop until quit is closed or a fatal socket error
// occurs. It is the Go shape of doh_proxy::loop()'s for(;;) body.
func (p *Proxy) Run(quit <-chan struct{}) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-quit:
			return nil
		default:
		}

		p.conn.SetReadDeadline(deadlineShort())
		n, from, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("%s: read: %w", me, err)
		}
		p.handleDatagram(buf[:n], from)
	}
}

func deadlineShort() time.Time {
	return time.Now().Add(200 * time.Millisecond)
}

func (p *Proxy) handleDatagram(msg []byte, from *net.UDPAddr) {
	if len(msg) < 12+4+1 {
		return
	}
	qdcount, err := wire.QuestionCount(msg)
	if err != nil || qdcount != 1 {
		return
	}
	id, err := wire.QueryID(msg)
	if err != nil {
		return
	}

	qname, qnlen, err := wire.DecodeName(msg, 12)
	if err != nil || qnlen <= 0 {
		return
	}
	fqdn := strings.TrimSuffix(qname, ".")

	isResponse, err := wire.IsResponse(msg)
	if err != nil {
		return
	}
	if isResponse {
		p.forwardAnswer(from, wire.Lower(fqdn), id, msg)
		return
	}

	opcode, err := wire.Opcode(msg)
	if err != nil || opcode != 0 {
		return
	}

	if ns, ok := p.internalNameserver(fqdn); ok {
		p.forwardQuery(ns, from, wire.Lower(fqdn), id, msg)
		return
	}

	tail := 12 + qnlen
	if tail+4 > len(msg) {
		return
	}
	qtype := binary.BigEndian.Uint16(msg[tail : tail+2])
	qclass := binary.BigEndian.Uint16(msg[tail+2 : tail+4])

	if (qtype != dns.TypeA && qtype != dns.TypeAAAA) || qclass != dns.ClassINET {
		return
	}

	p.answerQuery(from, msg, id, fqdn, qtype, qnlen)
}

// internalNameserver returns the forwarding nameserver for fqdn if it falls
// under a configured internal domain suffix, the InBailiwick-style check
// the original does over config::internal_domains.
func (p *Proxy) internalNameserver(fqdn string) (string, bool) {
	for _, d := range p.internalDomains {
		if len(fqdn) >= len(d.Suffix) && strings.HasSuffix(fqdn, d.Suffix) {
			return d.Nameserver, true
		}
	}
	return "", false
}

func (p *Proxy) forwardQuery(nameserver string, from *net.UDPAddr, fqdn string, id uint16, raw []byte) {
	upstream, err := net.ResolveUDPAddr("udp", net.JoinHostPort(nameserver, "53"))
	if err != nil {
		log.Printf("%s: forward query: %v", me, err)
		return
	}
	if _, err := p.conn.WriteToUDP(raw, upstream); err != nil {
		log.Printf("%s: forward query sendto: %v", me, err)
		return
	}
	p.pending[pendingKey{fqdn: fqdn, id: id, upstream: upstream.String()}] = from
	p.forwarded.Add(1)
	if p.logRequests {
		log.Printf("%s: fwd %s to %s", me, fqdn, nameserver)
	}
}

func (p *Proxy) forwardAnswer(from *net.UDPAddr, fqdn string, id uint16, raw []byte) {
	key := pendingKey{fqdn: fqdn, id: id, upstream: from.String()}
	client, ok := p.pending[key]
	if !ok {
		return // no matching outstanding forwarded query; silently drop, matching the original's log-and-continue
	}
	delete(p.pending, key)
	if _, err := p.conn.WriteToUDP(raw, client); err != nil {
		log.Printf("%s: forward answer sendto: %v", me, err)
	}
}

func (p *Proxy) answerQuery(from *net.UDPAddr, query []byte, id uint16, fqdn string, qtype uint16, qnlen int) {
	key := cache.Key{FQDN: wire.Lower(fqdn) + ".", QType: qtype}

	records, fromCache := p.cache.Get(key)
	if fromCache {
		p.cacheHits.Add(1)
	} else {
		reply, err := p.resolver.Resolve(fqdn, qtype)
		switch {
		case err != nil:
			p.failures.Add(1)
			p.sendError(from, query, id, qnlen, 2) // SERVFAIL
			log.Printf("%s: %s: %v", me, fqdn, err)
			return
		case reply.NXDomain:
			p.sendError(from, query, id, qnlen, 3) // NXDOMAIN
			return
		case !reply.HasAnswer():
			p.sendError(from, query, id, qnlen, 3)
			return
		default:
			records = reply.Records
			p.cache.Insert(key, records, false)
		}
	}

	p.answered.Add(1)
	if p.logRequests {
		typeName := "A"
		if qtype == dns.TypeAAAA {
			typeName = "AAAA"
		}
		suffix := "(resolved)"
		if fromCache {
			suffix = "(cached)"
		}
		log.Printf("%s: %s %s? -> %s", me, fqdn, typeName, suffix)
	}

	p.sendAnswer(from, query, id, qnlen, records)
}

// sendError synthesizes a header-only reply with rcode set (2=SERVFAIL,
// 3=NXDOMAIN) and the original question copied back, matching the
// "a_count=0; reply = header + question" path in loop().
func (p *Proxy) sendError(from *net.UDPAddr, query []byte, id uint16, qnlen, rcode int) {
	questionEnd := 12 + qnlen + 4
	if questionEnd > len(query) {
		return
	}
	header := buildAnswerHeader(id, 0, rcode)
	reply := append(header, query[12:questionEnd]...)
	p.conn.WriteToUDP(reply, from)
}

func (p *Proxy) sendAnswer(from *net.UDPAddr, query []byte, id uint16, qnlen int, records []doh.Record) {
	questionEnd := 12 + qnlen + 4
	if questionEnd > len(query) {
		return
	}

	var body []byte
	body = append(body, query[12:questionEnd]...)

	count := 0
	for _, r := range records {
		if r.Synthetic {
			continue // never sent on the wire, matching "elem.name.find(\"NSS\") == 0" skip
		}
		rr, err := encodeAnswerRR(r)
		if err != nil {
			continue
		}
		body = append(body, rr...)
		count++
	}

	header := buildAnswerHeader(id, count, 0)
	reply := append(header, body...)
	p.conn.WriteToUDP(reply, from)
}

func buildAnswerHeader(id uint16, ancount, rcode int) []byte {
	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], id)
	flags := uint16(0x8180) | uint16(rcode&0xf) // QR=1, RA=1, rcode
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint16(header[4:6], 1) // qdcount
	binary.BigEndian.PutUint16(header[6:8], uint16(ancount))
	return header
}

func encodeAnswerRR(r doh.Record) ([]byte, error) {
	name, err := wire.EncodeName(r.Name)
	if err != nil {
		return nil, err
	}

	rdata, err := rdataBytes(r)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(name)+10+len(rdata))
	out = append(out, name...)
	var tail [10]byte
	binary.BigEndian.PutUint16(tail[0:2], r.Type)
	binary.BigEndian.PutUint16(tail[2:4], r.Class)
	binary.BigEndian.PutUint32(tail[4:8], r.TTL)
	binary.BigEndian.PutUint16(tail[8:10], uint16(len(rdata)))
	out = append(out, tail[:]...)
	out = append(out, rdata...)
	return out, nil
}

func rdataBytes(r doh.Record) ([]byte, error) {
	switch r.Type {
	case dns.TypeA:
		ip := r.IP.To4()
		if ip == nil {
			return nil, errors.New(me + ": A record missing an IPv4 address")
		}
		return ip, nil
	case dns.TypeAAAA:
		ip := r.IP.To16()
		if ip == nil {
			return nil, errors.New(me + ": AAAA record missing an IPv6 address")
		}
		return ip, nil
	case dns.TypeCNAME, dns.TypeNS:
		return wire.EncodeName(r.Target)
	case dns.TypeMX:
		if r.RawRData == nil {
			return nil, errors.New(me + ": MX record missing rdata")
		}
		return r.RawRData, nil
	default:
		return nil, fmt.Errorf("%s: unsupported record type %d in reply", me, r.Type)
	}
}

// Name implements internal/reporter.Reporter.
func (p *Proxy) Name() string { return "proxy" }

// Report implements internal/reporter.Reporter.
func (p *Proxy) Report(resetCounters bool) string {
	s := fmt.Sprintf("proxy answered=%d cached=%d forwarded=%d failures=%d",
		p.answered.Load(), p.cacheHits.Load(), p.forwarded.Load(), p.failures.Load())
	if resetCounters {
		p.answered.Store(0)
		p.cacheHits.Store(0)
		p.forwarded.Store(0)
		p.failures.Store(0)
	}
	return s
}
