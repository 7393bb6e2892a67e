package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/buildplan/internal/cmd"
	"github.com/felixgeelhaar/buildplan/internal/exitcode"
	"github.com/felixgeelhaar/buildplan/internal/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	if err != nil {
		_ = ux.RenderError(os.Stderr, err)
		exitcode.ExitWithError(err)
	}
}
