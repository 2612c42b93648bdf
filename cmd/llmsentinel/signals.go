package main

import (
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// notifyShutdown relays sigs, or SIGINT and SIGTERM when none are given,
// until stop is called.
func notifyShutdown(sigs ...os.Signal) (<-chan os.Signal, func()) {
	if len(sigs) == 0 {
		sigs = shutdownSignals
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	return ch, func() { signal.Stop(ch) }
}
