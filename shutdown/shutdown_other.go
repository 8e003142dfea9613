//go:build !windows

package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

// Notify delivers interrupt and termination signals to ch so the event
// loop can tear the active session down before exiting.
func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
