package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolcore",
		Short: "Dependency-aware parallel tool execution core",
	}

	cmd.AddCommand(
		newRunCommand(),
		newCacheCommand(),
		newSessionCommand(),
		newWatchCommand(),
		newServeCommand(),
	)
	return cmd
}
