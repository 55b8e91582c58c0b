package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const rootLong = `Share VIP settings, broadcasts and presence through a common store.

The store is chosen with VIPSYNC_STORE (redis, sqlite or memory). The memory
store lives only inside one process and is accepted by serve and watch only.`

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vipsync",
		Short:         "Share VIP settings, broadcasts and presence through a common store",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSettingsCmd(),
		newBroadcastCmd(),
		newUserCmd(),
		newCleanupCmd(),
		newWatchCmd(),
		newServeCmd(),
		newCatalogCmd(),
	)

	return root
}
