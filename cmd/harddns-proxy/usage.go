package main

import (
	"fmt"
	"io"
	"text/template"

	"github.com/sebkrahmer/harddns-go/internal/constants"
)

// The "flag" package is not tty aware so we've arbitrarily picked 100 columns as a conservative tty
// width for the usage output.

const usageMessageTemplate = `
NAME
          {{.ProxyProgramName}} -- a hardened DNS-over-HTTPS resolving proxy

SYNOPSIS
          {{.ProxyProgramName}} [options]

DESCRIPTION
          {{.ProxyProgramName}} listens for ordinary UDP DNS queries on the local system and
          resolves them over a pinned, certificate-verified HTTPS connection to one or more
          upstream DoH servers configured in harddns.conf. Queries for configured internal
          domains are instead forwarded verbatim to a conventional nameserver, allowing
          split-horizon resolution alongside hardened public resolution.

          Upstream DoH servers are consulted in a destructive round-robin order: the current
          server is used until its TLS session is lost, at which point the next configured
          server is rotated to the front of the list.

CONFIGURATION
          {{.ProxyProgramName}} reads its directives from {{.CfgDirDefault}}/harddns.conf (override
          with -F). Recognized directives are: log_requests, nss_aaaa, cache_PTR,
          internal_domain=suffix,nameserver-ip, and one or more nameserver= blocks each
          followed by cn=, host=, get=, port= and, optionally, rfc8484 (to select the RFC 8484
          binary wire dialect instead of the default JSON dialect).

          Certificates to pin against are read from {{.CfgDirDefault}}/pinned/*.pem. Pinning is
          optional - in its absence regular system root CA verification still applies.

OPTIONS
          [-l listen-address ...] [-p port]
          [-F config-directory]
          [-R chroot-directory] [-u user]
          [-P]
          [-gops] [-cpu-profile file] [-mem-profile file]
          [-status-interval duration]
          [-v] [-version] [-h]

`

func usage(out io.Writer) {
	tmpl, err := template.New("usage").Parse(usageMessageTemplate)
	if err != nil {
		panic(err) // We've messed up our template
	}
	data := struct {
		constants.Constants
		CfgDirDefault string
	}{consts, defaultCfgDir}
	err = tmpl.Execute(out, data)
	if err != nil {
		panic(err) // We've messed up our template
	}
	flagSet.SetOutput(out)
	flagSet.PrintDefaults()
	fmt.Fprintln(out, "\nVersion:", consts.Version)
}

// parseCommandLine sets up the flags-to-config mapping and parses the supplied command line
// arguments. It starts from scratch each time to make it easier for test wrappers to use.
func parseCommandLine(args []string) error {
	flagSet.Var(&cfg.listenAddresses, "l", "Listen `address` for inbound DNS queries (repeatable, default 127.0.0.1)")
	flagSet.StringVar(&cfg.port, "p", "53", "Listen `port`")

	flagSet.StringVar(&cfg.cfgDir, "F", defaultCfgDir, "Config `directory` containing harddns.conf and pinned/")

	flagSet.StringVar(&cfg.chrootDir, "R", "", "chroot `directory` to constrain process after start-up")
	flagSet.StringVar(&cfg.setuidName, "u", "", "setuid `username` to constrain process after start-up")

	flagSet.BoolVar(&cfg.cachePTR, "P", false, "Set the cache_PTR option (reserved: no PTR lookups are cached)")

	flagSet.BoolVar(&cfg.gops, "gops", false, "Start github.com/google/gops agent")
	flagSet.StringVar(&cfg.cpuprofile, "cpu-profile", "", "write cpu profile to `file`")
	flagSet.StringVar(&cfg.memprofile, "mem-profile", "", "write mem profile to `file`")

	flagSet.DurationVar(&cfg.statusInterval, "status-interval", 0, "Periodic status report `interval` (0 disables)")

	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.verbose, "v", false, "Verbose status and stats - otherwise only errors are output")
	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")

	return flagSet.Parse(args[1:])
}
