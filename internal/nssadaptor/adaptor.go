// Package nssadaptor implements the host name-service lookup adaptor: the
// behaviour a libc NSS module built on this resolver would expose, chasing
// CNAME chains up to three levels and serializing all lookups through a
// single mutex so only one host-lookup question is in flight at a time,
// grounded on do_nss_harddns_gethostbyname3_r/4_r in the original adaptor.
//
// Registering an actual libc NSS module (the _nss_harddns_gethostbyname3_r
// C ABI entry points) is out of scope; this package is the Go-native
// equivalent any such wrapper would call into, and is exercised directly by
// cmd/harddns-nsscheck.
package nssadaptor

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"

	"github.com/sebkrahmer/harddns-go/internal/doh"
	"github.com/sebkrahmer/harddns-go/internal/osutil"
	"github.com/sebkrahmer/harddns-go/internal/wire"
)

const me = "nssadaptor"

// Resolver is the subset of *doh.Client the adaptor needs.
type Resolver interface {
	Resolve(name string, qtype uint16) (*doh.Reply, error)
}

// HostResult is the Go-native analogue of struct hostent: the canonical
// name, any CNAME aliases encountered while chasing the chain, and the
// resolved addresses.
type HostResult struct {
	Name    string
	Aliases []string
	Addrs   []net.IP
	TTL     uint32
}

// Adaptor serializes host lookups through a single mutex, the Go
// equivalent of the original's global ssl_mtx - there is exactly one
// pinned TLS session shared across every lookup, so only one question may
// be in flight at a time.
type Adaptor struct {
	mu       sync.Mutex
	resolver Resolver
}

// New wraps resolver for use by the adaptor.
func New(resolver Resolver) *Adaptor {
	return &Adaptor{resolver: resolver}
}

// LookupByName resolves name for a single address family (qtype is
// dns.TypeA or dns.TypeAAAA), chasing up to three CNAME indirections,
// mirroring do_nss_harddns_gethostbyname3_r's "for (i = 0; s.size() > 0 &&
// naddr == 0 && i < 3; ++i)" loop.
func (a *Adaptor) LookupByName(name string, qtype uint16) (*HostResult, error) {
	if qtype != dns.TypeA && qtype != dns.TypeAAAA {
		return nil, fmt.Errorf("%s: unsupported address family", me)
	}

	restore := osutil.SIGPIPEGuard()
	defer restore()

	a.mu.Lock()
	defer a.mu.Unlock()

	result := &HostResult{Name: name}

	current := name
	for level := 0; current != "" && len(result.Addrs) == 0 && level < 3; level++ {
		reply, err := a.resolver.Resolve(current, qtype)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", me, err)
		}
		current = ""
		for _, rec := range reply.Records {
			if rec.Synthetic {
				current = rec.Target
				result.Aliases = append(result.Aliases, rec.Target)
				continue
			}
			if rec.Type == qtype && rec.IP != nil {
				result.Addrs = append(result.Addrs, rec.IP)
				result.TTL = rec.TTL
			}
		}
	}

	if len(result.Addrs) == 0 {
		return nil, errors.New(me + ": " + name + ": not found")
	}
	return result, nil
}

// LookupBothFamilies resolves both A and AAAA for name in a single call,
// mirroring do_nss_harddns_gethostbyname4_r, which queries both families at
// each level of the CNAME chase before giving up.
func (a *Adaptor) LookupBothFamilies(name string) (*HostResult, error) {
	restore := osutil.SIGPIPEGuard()
	defer restore()

	a.mu.Lock()
	defer a.mu.Unlock()

	result := &HostResult{Name: name}
	current := name

	for level := 0; current != "" && len(result.Addrs) == 0 && level < 3; level++ {
		next := ""
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			reply, err := a.resolver.Resolve(current, qtype)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", me, err)
			}
			for _, rec := range reply.Records {
				if rec.Synthetic {
					next = rec.Target
					result.Aliases = append(result.Aliases, rec.Target)
					continue
				}
				if (rec.Type == dns.TypeA || rec.Type == dns.TypeAAAA) && rec.IP != nil {
					result.Addrs = append(result.Addrs, rec.IP)
					result.TTL = rec.TTL
				}
			}
		}
		current = next
	}

	if len(result.Addrs) == 0 {
		return nil, errors.New(me + ": " + name + ": not found")
	}
	return result, nil
}

// LookupPTR builds the reverse-lookup name for ip - the Go home for the
// A2PTR_fqdn/AAAA2PTR_fqdn helpers (see internal/wire.PTRName). It sends no
// query and does not depend on the cache_PTR config directive.
func LookupPTR(ip net.IP) (string, error) {
	return wire.PTRName(ip)
}
