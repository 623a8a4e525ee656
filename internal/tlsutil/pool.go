package tlsutil

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"
)

// Pool manages the upstream DoH resolver list and the single live
// connection to whichever one is currently in use, reproducing
// dnshttps.cc's get() loop: the peer of the live SSL session is preferred,
// and only when there is no live session does the list rotate (pop front,
// push back) before dialing the new front.
type Pool struct {
	mu        sync.Mutex
	endpoints []Endpoint
	conn      *PinnedConn
	base      *tls.Config
	pins      *PinStore
	timeout   time.Duration
}

// NewPool constructs a Pool over endpoints, which must be non-empty.
func NewPool(endpoints []Endpoint, base *tls.Config, pins *PinStore, timeout time.Duration) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%s: pool requires at least one upstream endpoint", me)
	}
	cp := make([]Endpoint, len(endpoints))
	copy(cp, endpoints)
	return &Pool{endpoints: cp, base: base, pins: pins, timeout: timeout}, nil
}

// Len reports how many upstreams are configured.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Current returns the live connection and its endpoint config if the
// session is still usable, rotating the upstream list and dialing a fresh
// endpoint otherwise. This is the direct translation of:
//
//	string ns = ssl->peer();
//	if (ns.size() == 0) { ns = config::ns->front(); rotate(); }
func (p *Pool) Current() (*PinnedConn, Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && p.conn.Peer() != "" {
		for _, ep := range p.endpoints {
			if ep.Addr == p.conn.Peer() {
				return p.conn, ep, nil
			}
		}
	}

	// No live session (or its endpoint vanished from config): rotate and dial.
	ep := p.endpoints[0]
	p.endpoints = append(p.endpoints[1:], ep)

	conn, err := Dial(ep, p.base, p.pins, p.timeout)
	if err != nil {
		return nil, ep, err
	}
	p.conn = conn
	return p.conn, ep, nil
}

// Invalidate drops the current connection, forcing the next Current() call
// to rotate and dial afresh - used when a send/recv against the live
// connection fails, matching get()'s "ssl->close(); continue;" paths.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Timeout returns the configured per-operation timeout, for callers that
// need it to bound Send/Recv calls against the current connection.
func (p *Pool) Timeout() time.Duration {
	return p.timeout
}
