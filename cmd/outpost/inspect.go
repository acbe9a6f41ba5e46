package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	outpost "github.com/outpostwasm/outpost"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <path.wasm>",
	Short: "Decode a module and print a section-by-section summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	countColor   = color.New(color.FgYellow)
)

func runInspect(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	rt := outpost.NewRuntime()
	mod, err := rt.CompileModule(raw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	headingColor.Fprintln(out, "types")
	fmt.Fprintf(out, "  %s function type(s)\n", countColor.Sprint(len(mod.Types)))
	for i, t := range mod.Types {
		fmt.Fprintf(out, "  [%d] %s\n", i, t)
	}

	headingColor.Fprintln(out, "imports")
	for _, imp := range mod.Imports {
		fmt.Fprintf(out, "  %s.%s\n", imp.Module, imp.Field)
	}

	headingColor.Fprintln(out, "functions")
	fmt.Fprintf(out, "  %s total (%s imported)\n",
		countColor.Sprint(len(mod.Functions)), countColor.Sprint(mod.ImportedFuncCount))

	headingColor.Fprintln(out, "tables")
	fmt.Fprintf(out, "  %s declared\n", countColor.Sprint(len(mod.Tables)))

	headingColor.Fprintln(out, "memories")
	fmt.Fprintf(out, "  %s declared\n", countColor.Sprint(len(mod.Memories)))

	headingColor.Fprintln(out, "globals")
	fmt.Fprintf(out, "  %s declared\n", countColor.Sprint(len(mod.Globals)))

	headingColor.Fprintln(out, "exports")
	for _, e := range mod.Exports {
		fmt.Fprintf(out, "  %s\n", e.Name)
	}

	if mod.StartFunc != nil {
		headingColor.Fprintln(out, "start")
		fmt.Fprintf(out, "  function %d\n", *mod.StartFunc)
	}
	return nil
}
