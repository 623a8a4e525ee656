package main

import (
	"time"

	"github.com/sebkrahmer/harddns-go/internal/flagutil"
)

type config struct {
	help    bool
	verbose bool
	version bool
	gops    bool

	listenAddresses flagutil.StringValue // -l, repeatable
	port            string               // -p

	cfgDir string // -F, directory containing harddns.conf and pinned/

	chrootDir  string // -R
	setuidName string // -u

	cachePTR bool // -P

	statusInterval time.Duration

	cpuprofile, memprofile string
}
