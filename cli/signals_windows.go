//go:build windows

package cli

import "os"

var triggerSignals []os.Signal

func isTriggerSignal(sig os.Signal) bool {
	return false
}
