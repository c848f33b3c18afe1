// Command cascade runs a wan-area relay agent: it loads a site's
// configuration, starts whichever of the sender/server cores the
// configuration calls for, and keeps the process alive until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "WAN-area relay / geo-replication transport agent",
	Long: `cascade pushes ordered payloads from one site to a fixed set of
server sites over persistent TCP connections, tracks per-site
acknowledgements, and fires a predicate whenever the ack frontier
advances. The same process can also accept connections from sender
sites and dispatch framed requests to an application callback.`,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Printfln("%v", err)
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Fprintf(os.Stdout, "cascade %s\n", version)
}
