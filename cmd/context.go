package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cmdcore "github.com/projecteru2/pullwatch/cmd/core"
)

// newCommandContext is cancelled on SIGINT or SIGTERM. An in-flight pull
// polls it as its cancel signal.
func newCommandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func commandContext(cmd *cobra.Command) context.Context {
	return cmdcore.CommandContext(cmd)
}
