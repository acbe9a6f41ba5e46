// Command outpost decodes, instantiates and runs WebAssembly binaries, per
// spec.md §6's run/inspect CLI contract.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "outpost",
	Short:         "outpost decodes, instantiates and runs WebAssembly modules",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
