//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/powerwatch/internal/app"
)

// setupDebugSignalHandlers dumps the device snapshot on SIGUSR1.
//
//	kill -USR1 <pid>
func setupDebugSignalHandlers(application *app.App) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	go func() {
		for range sigs {
			application.DumpState()
		}
	}()
}
