package common

import (
	"os"
	"os/signal"
	"syscall"
)

// Interrupted delivers SIGINT, SIGTERM and SIGQUIT.
// Each call registers a new channel, so callers should call it once.
func Interrupted() <-chan os.Signal {
	interrupt := make(chan os.Signal, 2)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	return interrupt
}
