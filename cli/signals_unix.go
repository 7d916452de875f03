//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// triggerSignals ask a running daemon for an immediate cycle.
var triggerSignals = []os.Signal{syscall.SIGUSR1}

func isTriggerSignal(sig os.Signal) bool {
	return sig == syscall.SIGUSR1
}
