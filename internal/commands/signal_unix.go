//go:build !windows

package commands

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals routes Ctrl-C and SIGTERM to ch so a watch can close the
// websocket cleanly.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
