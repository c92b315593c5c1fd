// Package main is the entry point for the esimctl client CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"esims/cmd/esimctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
