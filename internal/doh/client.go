package doh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sebkrahmer/harddns-go/internal/base64url"
	"github.com/sebkrahmer/harddns-go/internal/constants"
	"github.com/sebkrahmer/harddns-go/internal/tlsutil"
	"github.com/sebkrahmer/harddns-go/internal/wire"
)

const me = "doh"

// Client resolves names by hand-framing HTTP/1.1 requests over a pinned
// TLS connection pool, grounded on dnshttps::get() in the original client:
// it tries each configured upstream in turn (via the pool's destructive
// round-robin), reusing a live connection when one exists and rotating to
// a fresh upstream otherwise, decoding with whichever dialect that
// upstream speaks.
type Client struct {
	pool    *tlsutil.Pool
	lastErr error
}

// NewClient wraps an already-constructed upstream pool.
func NewClient(pool *tlsutil.Pool) *Client {
	return &Client{pool: pool}
}

// Why returns the last error recorded across the pool, for Reporter-style
// status lines (the Go analogue of ssl_box::why()).
func (c *Client) Why() string {
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Error()
}

// Resolve queries qtype for name, trying each upstream in the pool up to
// once before giving up, matching the "for (i = 0; i < ns->size(); ++i)"
// loop in get().
func (c *Client) Resolve(name string, qtype uint16) (*Reply, error) {
	if !wire.ValidName(name) {
		return nil, fmt.Errorf("%s: invalid fqdn %q", me, name)
	}

	attempts := c.pool.Len()
	var lastErr error
	for i := 0; i < attempts; i++ {
		reply, err := c.tryOnce(name, qtype)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		c.pool.Invalidate()
	}
	c.lastErr = lastErr
	return nil, fmt.Errorf("%s: all upstreams failed: %w", me, lastErr)
}

func (c *Client) tryOnce(name string, qtype uint16) (*Reply, error) {
	conn, ep, err := c.pool.Current()
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", me, err)
	}

	req, err := buildRequest(ep, name, qtype)
	if err != nil {
		return nil, err
	}

	timeout := c.pool.Timeout()
	if _, err := conn.Send(req, timeout); err != nil {
		return nil, fmt.Errorf("%s: send: %w", me, err)
	}

	raw := conn.Conn()
	raw.SetReadDeadline(deadlineFrom(timeout))
	resp, err := http.ReadResponse(bufio.NewReader(raw), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", me, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: upstream %s returned %s", me, ep.Addr, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 65536))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", me, err)
	}

	if ep.RFC8484 {
		return ParseRFC8484(name, qtype, body)
	}
	return ParseJSON(name, qtype, body)
}

// buildRequest constructs the HTTP/1.1 GET request by hand, including the
// X-Igno padding-to-450-bytes header, matching the request text built in
// get() byte for byte in spirit (header names/order, Keep-Alive, padding).
func buildRequest(ep tlsutil.Endpoint, name string, qtype uint16) ([]byte, error) {
	c := constants.Get()

	var query string
	var accept string
	if ep.RFC8484 {
		b64, err := rfc8484Query(name, qtype)
		if err != nil {
			return nil, err
		}
		query = ep.Get + b64
		accept = c.Rfc8484AcceptValue
	} else {
		typeName, err := jsonTypeParam(qtype)
		if err != nil {
			return nil, err
		}
		query = ep.Get + name + "&type=" + typeName
		accept = c.JSONAcceptValue
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", query)
	fmt.Fprintf(&b, "Host: %s\r\n", ep.Host)
	fmt.Fprintf(&b, "%s: %s\r\n", c.UserAgentHeader, c.PackageName+"/"+c.Version+" "+c.PackageURL)
	fmt.Fprintf(&b, "Connection: Keep-Alive\r\n")
	fmt.Fprintf(&b, "%s: %s\r\n", c.AcceptHeader, accept)

	if uint(b.Len()) < c.XIgnoPadModulo {
		fmt.Fprintf(&b, "%s: %s\r\n", c.XIgnoHeader, strings.Repeat("X", int(c.XIgnoPadModulo)-b.Len()))
	}
	b.WriteString("\r\n")

	return []byte(b.String()), nil
}

func rfc8484Query(name string, qtype uint16) (string, error) {
	msg, err := wire.BuildQuery(name, qtype)
	if err != nil {
		return "", fmt.Errorf("%s: build query: %w", me, err)
	}
	return base64url.Encode(msg), nil
}

func deadlineFrom(timeout time.Duration) time.Time {
	return time.Now().Add(timeout)
}

func jsonTypeParam(qtype uint16) (string, error) {
	switch qtype {
	case 1:
		return "A", nil
	case 28:
		return "AAAA", nil
	case 2:
		return "NS", nil
	case 15:
		return "MX", nil
	default:
		return "", errors.New(me + ": unsupported query type for json dialect")
	}
}
