package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/absim/internal/family"
)

// exampleTagsByFamily are not loaded by serve; they exist so `absim tags`
// gives an operator something concrete to copy-paste into --tag flags
// for a given family.
var exampleTagsByFamily = map[family.Family][]string{
	family.ControlLogix: {"Counter:DINT[1]", "Flags:BOOL[100]", "Name:STRING[1]"},
	family.Micro800:     {"Counter:DINT[1]", "Setpoint:REAL[1]"},
	family.OmronNJNX:    {"Counter:DINT[1]", "Readings:REAL[10]"},
	family.PLC5:         {"N7[100]", "F8[50]"},
	family.SLC500:       {"N7[100]", "ST18[10]"},
	family.MicroLogix:   {"N7[100]", "L19[20]"},
}

func newTagsCmd() *cobra.Command {
	var plc string

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List example tag specs and the expected Forward Open EPATH for a family",
		Long: `tags is a discovery aid: it prints the --tag= specs and Forward Open
connection EPATH a PLC family expects, without starting a listener.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if plc == "" {
				for _, f := range []family.Family{family.ControlLogix, family.Micro800, family.OmronNJNX, family.PLC5, family.SLC500, family.MicroLogix} {
					printFamilyTags(cmd, f)
				}
				return nil
			}
			f, err := family.Parse(plc)
			if err != nil {
				return err
			}
			printFamilyTags(cmd, f)
			return nil
		},
	}
	cmd.Flags().StringVar(&plc, "plc", "", "limit output to one family (default: all)")
	return cmd
}

func printFamilyTags(cmd *cobra.Command, f family.Family) {
	cfg := family.Configs[f]
	fmt.Fprintf(cmd.OutOrStdout(), "%s (max_packet=%d, requires --path=%v):\n", f, cfg.MaxPacket, cfg.RequiresPath)
	if epath, err := family.ExpectedEPATH(f, nil); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Forward Open EPATH: % X\n", epath)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "  Forward Open EPATH: <--path bytes> 20 02 24 01\n")
	}
	for _, t := range exampleTagsByFamily[f] {
		fmt.Fprintf(cmd.OutOrStdout(), "  --tag=%s\n", t)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}
