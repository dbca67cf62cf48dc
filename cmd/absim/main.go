// Command absim is the Allen-Bradley-family PLC simulator: a
// deterministic, scriptable target for CIP/PCCC client libraries and
// their test suites.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "absim",
		Short:         "Allen-Bradley PLC family simulator",
		Long:          `absim impersonates a ControlLogix, Micro800, Omron NJ/NX, PLC/5, SLC 500, or MicroLogix controller over EtherNet/IP so that CIP/PCCC client libraries have a deterministic target to drive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTagsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
