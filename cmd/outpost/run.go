package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	outpost "github.com/outpostwasm/outpost"
	"github.com/outpostwasm/outpost/imports/wasi_snapshot_preview1"
)

var runCmd = &cobra.Command{
	Use:   "run <path.wasm>",
	Short: "Instantiate a module as a WASI-style program and run its _start export",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	rt := outpost.NewRuntime()
	mod, err := rt.CompileModule(raw)
	if err != nil {
		return err
	}

	imports := wasi_snapshot_preview1.Instantiate(cmd.OutOrStdout(), cmd.ErrOrStderr())
	inst, err := rt.Instantiate(mod, args[0], imports)
	if err != nil {
		return err
	}

	if _, err := rt.CallExported(inst, "_start", nil); err != nil {
		var exit *wasi_snapshot_preview1.ExitError
		if errors.As(err, &exit) {
			os.Exit(int(exit.ExitCode))
		}
		return err
	}
	return nil
}
