// File: cmd/my99exch/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/annonymususer90/my99exch/cmd"
)

func main() {
	// SIGINT and SIGTERM cancel the context; serve then closes every session
	// and the browser before returning.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		stop()
		os.Exit(1)
	}
}
