// harddns-nsscheck is a diagnostic CLI exercising the NSS adaptor against a live harddns.conf,
// standing in for the NSS module registration this rewrite deliberately omits.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/miekg/dns"

	"github.com/sebkrahmer/harddns-go/internal/constants"
	"github.com/sebkrahmer/harddns-go/internal/doh"
	"github.com/sebkrahmer/harddns-go/internal/hardcfg"
	"github.com/sebkrahmer/harddns-go/internal/nssadaptor"
	"github.com/sebkrahmer/harddns-go/internal/tlsutil"
)

func fatal(stderr io.Writer, args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", constants.Get().NSSCheckProgramName, ": ")
	fmt.Fprintln(stderr, args...)
	return 1
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flagSet := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	cfgDir := flagSet.String("F", "/etc/harddns", "Config `directory` containing harddns.conf and pinned/")
	both := flagSet.Bool("4", false, "Resolve both A and AAAA families in one call")
	qtype := flagSet.String("t", "A", "Query `type`: A or AAAA (ignored with -4)")
	ptr := flagSet.Bool("x", false, "Treat the argument as an IP address and resolve its PTR name only")

	if err := flagSet.Parse(args[1:]); err != nil {
		return 1
	}
	if flagSet.NArg() != 1 {
		fmt.Fprintln(stderr, "usage:", constants.Get().NSSCheckProgramName, "[options] name")
		return 1
	}
	name := flagSet.Arg(0)

	if *ptr {
		ptrName, err := nssadaptor.LookupPTR(net.ParseIP(name))
		if err != nil {
			return fatal(stderr, err)
		}
		fmt.Fprintln(stdout, ptrName)
		return 0
	}

	hc, err := hardcfg.Load(*cfgDir)
	if err != nil {
		return fatal(stderr, err)
	}
	endpoints := hc.Endpoints()
	if len(endpoints) == 0 {
		return fatal(stderr, "no nameserver= blocks configured in", *cfgDir+"/harddns.conf")
	}

	tlsConfig, err := tlsutil.NewClientTLSConfig(true, nil, "", "")
	if err != nil {
		return fatal(stderr, err)
	}
	pool, err := tlsutil.NewPool(endpoints, tlsConfig, hc.Pins, time.Second*10)
	if err != nil {
		return fatal(stderr, err)
	}

	adaptor := nssadaptor.New(doh.NewClient(pool))

	var result *nssadaptor.HostResult
	if *both {
		result, err = adaptor.LookupBothFamilies(name)
	} else {
		result, err = adaptor.LookupByName(name, qtypeFromFlag(*qtype))
	}
	if err != nil {
		return fatal(stderr, err)
	}

	fmt.Fprintln(stdout, "name:", result.Name)
	for _, a := range result.Aliases {
		fmt.Fprintln(stdout, "alias:", a)
	}
	for _, addr := range result.Addrs {
		fmt.Fprintln(stdout, "addr:", addr, "ttl:", result.TTL)
	}
	return 0
}

func qtypeFromFlag(s string) uint16 {
	if s == "AAAA" {
		return dns.TypeAAAA
	}
	return dns.TypeA
}
