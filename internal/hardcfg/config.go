// Package hardcfg parses the harddns.conf directive file and the directory
// of pinned certificates it references, producing an immutable Config ready
// to wire up the proxy, the DoH client pool and the NSS adaptor. Grounded on
// config::parse_config in the original config.cc.
package hardcfg

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sebkrahmer/harddns-go/internal/proxy"
	"github.com/sebkrahmer/harddns-go/internal/tlsutil"
)

const me = "hardcfg"

// NameserverConfig is one "nameserver=" block from harddns.conf, the Go
// shape of config::a_ns_cfg.
type NameserverConfig struct {
	Addr    string
	Port    string
	CN      string
	Host    string
	Get     string
	RFC8484 bool
}

// Config is the fully parsed harddns.conf, plus the pin store built from
// the pinned-certificate directory.
type Config struct {
	LogRequests bool
	NSSAAAA     bool
	CachePTR    bool

	InternalDomains []proxy.InternalDomain
	Nameservers     []NameserverConfig

	Pins *tlsutil.PinStore
}

// Endpoints converts the parsed nameserver blocks into tlsutil.Endpoint
// values ready for tlsutil.NewPool.
func (c *Config) Endpoints() []tlsutil.Endpoint {
	endpoints := make([]tlsutil.Endpoint, 0, len(c.Nameservers))
	for _, ns := range c.Nameservers {
		endpoints = append(endpoints, tlsutil.Endpoint{
			Addr:     ns.Addr,
			Port:     ns.Port,
			CN:       ns.CN,
			Host:     ns.Host,
			Get:      ns.Get,
			RFC8484:  ns.RFC8484,
			FastOpen: true,
		})
	}
	return endpoints
}

// Load reads cfgbase+"/harddns.conf" and, if present, walks
// cfgbase+"/pinned" for PEM certificates to pin, mirroring
// config::parse_config and init.cc's load_certificates/pem_walk.
func Load(cfgbase string) (*Config, error) {
	cfg := &Config{}

	if err := parseDirectives(filepath.Join(cfgbase, "harddns.conf"), cfg); err != nil {
		return nil, err
	}

	pins, err := loadPins(filepath.Join(cfgbase, "pinned"))
	if err != nil {
		return nil, err
	}
	cfg.Pins = pins

	return cfg, nil
}

func parseDirectives(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", me, err)
	}
	defer f.Close()

	var current string // address of the nameserver= block currently being filled in
	byAddr := map[string]*NameserverConfig{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := stripWhitespace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case line == "log_requests":
			cfg.LogRequests = true
		case line == "nss_aaaa":
			cfg.NSSAAAA = true
		case line == "cache_PTR":
			cfg.CachePTR = true
		case strings.HasPrefix(line, "internal_domain="):
			rest := line[len("internal_domain="):]
			comma := strings.Index(rest, ",")
			if comma <= 0 {
				return fmt.Errorf("%s: malformed internal_domain directive: %q", me, line)
			}
			cfg.InternalDomains = append(cfg.InternalDomains, proxy.InternalDomain{
				Suffix:     rest[:comma],
				Nameserver: rest[comma+1:],
			})
		case line == "rfc8484":
			ns, ok := byAddr[current]
			if !ok {
				return fmt.Errorf("%s: rfc8484 directive with no preceding nameserver=", me)
			}
			ns.RFC8484 = true
		case strings.HasPrefix(line, "nameserver="):
			current = line[len("nameserver="):]
			ns := &NameserverConfig{Addr: current, Port: "443"}
			byAddr[current] = ns
			cfg.Nameservers = append(cfg.Nameservers, *ns)
		case strings.HasPrefix(line, "cn="):
			if err := setCurrentField(byAddr, current, func(ns *NameserverConfig) { ns.CN = line[len("cn="):] }); err != nil {
				return err
			}
		case strings.HasPrefix(line, "host="):
			if err := setCurrentField(byAddr, current, func(ns *NameserverConfig) { ns.Host = line[len("host="):] }); err != nil {
				return err
			}
		case strings.HasPrefix(line, "get="):
			if err := setCurrentField(byAddr, current, func(ns *NameserverConfig) { ns.Get = line[len("get="):] }); err != nil {
				return err
			}
		case strings.HasPrefix(line, "port="):
			if err := setCurrentField(byAddr, current, func(ns *NameserverConfig) { ns.Port = line[len("port="):] }); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", me, err)
	}

	// Reconcile cfg.Nameservers (appended by value above) with the
	// byAddr map which absorbed the later cn=/host=/get=/port=/rfc8484
	// directives for each block.
	for i, ns := range cfg.Nameservers {
		if updated, ok := byAddr[ns.Addr]; ok {
			cfg.Nameservers[i] = *updated
		}
	}

	for i := range cfg.Nameservers {
		if _, err := strconv.Atoi(cfg.Nameservers[i].Port); err != nil {
			return fmt.Errorf("%s: nameserver %s: invalid port %q", me, cfg.Nameservers[i].Addr, cfg.Nameservers[i].Port)
		}
	}

	return nil
}

func setCurrentField(byAddr map[string]*NameserverConfig, current string, set func(*NameserverConfig)) error {
	ns, ok := byAddr[current]
	if !ok {
		return fmt.Errorf("%s: directive with no preceding nameserver=", me)
	}
	set(ns)
	return nil
}

// stripWhitespace removes every space, tab and newline from line, matching
// the original's character-by-character sline.erase(remove(...)) passes.
func stripWhitespace(line string) string {
	var b strings.Builder
	for _, r := range line {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
