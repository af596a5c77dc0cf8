package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"heartprep/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "heartprep:", err)
		stop()
		os.Exit(1)
	}
}
