// Command omnibus taps, sends to and bridges an Omnibus bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bjaus/omnibus"
	"github.com/bjaus/omnibus/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRoot(omnibus.Dial).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "omnibus:", err)
		stop()
		os.Exit(1)
	}
}
