// harddns-proxy listens for inbound DNS queries and resolves them over a pinned DoH connection
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/sebkrahmer/harddns-go/internal/cache"
	"github.com/sebkrahmer/harddns-go/internal/constants"
	"github.com/sebkrahmer/harddns-go/internal/doh"
	"github.com/sebkrahmer/harddns-go/internal/hardcfg"
	"github.com/sebkrahmer/harddns-go/internal/osutil"
	"github.com/sebkrahmer/harddns-go/internal/proxy"
	"github.com/sebkrahmer/harddns-go/internal/reporter"
	"github.com/sebkrahmer/harddns-go/internal/tlsutil"
)

const defaultCfgDir = "/etc/harddns"

// Program-wide variables
var (
	consts = constants.Get()
	cfg    *config

	stdout io.Writer // All I/O goes via these writers
	stderr io.Writer

	startTime   = time.Now()
	stopChannel chan os.Signal
	flagSet     *flag.FlagSet
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ProxyProgramName, ": ")
	fmt.Fprintln(stderr, args...)
	return 1
}

func stopMain() {
	stopChannel <- syscall.SIGINT
}

// mainInit resets everything such that mainExecute() can be called multiple times in one program
// execution.
func mainInit(out io.Writer, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
	mainState(Initial)
	stopChannel = make(chan os.Signal, 4)
	signal.Notify(stopChannel, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	err := parseCommandLine(args)
	if err != nil {
		return 1 // Error already printed by the flag package
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ProxyProgramName, "Version:", consts.Version)
		return 0
	}

	hc, err := hardcfg.Load(cfg.cfgDir)
	if err != nil {
		return fatal(err)
	}
	if cfg.cachePTR {
		hc.CachePTR = true
	}

	endpoints := hc.Endpoints()
	if len(endpoints) == 0 {
		return fatal("no nameserver= blocks configured in", cfg.cfgDir+"/harddns.conf")
	}

	tlsConfig, err := tlsutil.NewClientTLSConfig(true, nil, "", "")
	if err != nil {
		return fatal(err)
	}

	pool, err := tlsutil.NewPool(endpoints, tlsConfig, hc.Pins, time.Second*10)
	if err != nil {
		return fatal(err)
	}

	dohClient := doh.NewClient(pool)
	ca := cache.New()

	if cfg.listenAddresses.NArg() == 0 {
		cfg.listenAddresses.Set("127.0.0.1")
	}

	var reporters []reporter.Reporter
	var proxies []*proxy.Proxy

	for _, addr := range cfg.listenAddresses.Args() {
		listenAddr := net.JoinHostPort(addr, cfg.port)
		p, err := proxy.New(proxy.Config{
			ListenAddr:      listenAddr,
			Cache:           ca,
			Resolver:        dohClient,
			InternalDomains: hc.InternalDomains,
			LogRequests:     hc.LogRequests || cfg.verbose,
		})
		if err != nil {
			return fatal(err)
		}
		proxies = append(proxies, p)
		reporters = append(reporters, p, ca)
	}

	if cfg.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fatal("gops:", err)
		}
		defer agent.Close()
	}

	if len(cfg.cpuprofile) > 0 {
		f, err := os.Create(cfg.cpuprofile)
		if err != nil {
			return fatal(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	var memProfileFile *os.File
	if len(cfg.memprofile) > 0 {
		memProfileFile, err = os.Create(cfg.memprofile)
		if err != nil {
			return fatal(err)
		}
		defer memProfileFile.Close()
	}

	quit := make(chan struct{})
	done := make(chan error, len(proxies))
	for _, p := range proxies {
		go func(p *proxy.Proxy) { done <- p.Run(quit) }(p)
	}

	if cfg.verbose {
		fmt.Fprintln(stdout, consts.ProxyProgramName, consts.Version, "Starting")
	}

	err = osutil.Constrain(cfg.setuidName, "", cfg.chrootDir)
	if err != nil {
		return fatal(err)
	}
	if cfg.verbose {
		fmt.Fprintf(stdout, "Constraints: %s\n", osutil.ConstraintReport())
	}

	mainState(Started)
	var nextStatusIn <-chan time.Time
	if cfg.statusInterval > 0 {
		t := time.NewTicker(cfg.statusInterval)
		defer t.Stop()
		nextStatusIn = t.C
	}

Running:
	for {
		select {
		case s := <-stopChannel:
			if s == syscall.SIGUSR1 {
				statusReport("User1", false, reporters)
				continue
			}
			if cfg.verbose {
				fmt.Fprintln(stdout, "\nSignal", s)
			}
			break Running

		case err := <-done:
			if err != nil {
				return fatal(err)
			}

		case <-nextStatusIn:
			statusReport("Status", true, reporters)
		}
	}

	close(quit)
	for range proxies {
		<-done
	}
	for _, p := range proxies {
		p.Close()
	}

	mainState(Stopped)

	if cfg.verbose {
		statusReport("Status", true, reporters)
		fmt.Fprintln(stdout, consts.ProxyProgramName, consts.Version, "Exiting after", uptime())
	}

	if memProfileFile != nil {
		runtime.GC()
		if err := pprof.WriteHeapProfile(memProfileFile); err != nil {
			return fatal(err)
		}
	}

	return 0
}

func uptime() string {
	return time.Now().Sub(startTime).Truncate(time.Second).String()
}

func statusReport(what string, resetCounters bool, reporters []reporter.Reporter) {
	fmt.Fprintln(stdout, "Status Up:", consts.ProxyProgramName, consts.Version, uptime())
	for _, r := range reporters {
		fmt.Fprintf(stdout, "%s %s: %s\n", what, r.Name(), r.Report(resetCounters))
	}
}
