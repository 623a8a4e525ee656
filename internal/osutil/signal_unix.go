// +build unix !windows

package osutil

import (
	"os"
	"os/signal"
	"syscall"
)

// SignalNotify sends all the main Unix signals to the supplied channel
func SignalNotify(c chan os.Signal) {
	signal.Notify(c, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGUSR1)
}

func IsSignalUSR1(s os.Signal) bool {
	return s == syscall.SIGUSR1
}

// SIGPIPEGuard ignores SIGPIPE for the duration of a host-lookup call and
// returns a restore func that puts the previous disposition back, the Go
// equivalent of the sigaction(SIGPIPE, &new_sig, &old_sig) / restore pair
// wrapped around every _nss_harddns_* entry point in the original adaptor.
func SIGPIPEGuard() func() {
	wasIgnored := signal.Ignored(syscall.SIGPIPE)
	signal.Ignore(syscall.SIGPIPE)
	return func() {
		if !wasIgnored {
			signal.Reset(syscall.SIGPIPE)
		}
	}
}
