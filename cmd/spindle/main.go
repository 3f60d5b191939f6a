// Command spindle serves, renders and inspects the spindle demo application.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	clierrors "github.com/vango-dev/spindle/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		clierrors.PrintError(err)
		os.Exit(1)
	}
}
