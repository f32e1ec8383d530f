// Command lowir lowers MIR units into LLVM IR.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lowir/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "lowir",
	Short: "MIR to LLVM IR lowering",
	Long:  `lowir lowers monomorphized MIR units into LLVM IR for a chosen target`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
		stop, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		profileCleanup = stop
		return nil
	},
	SilenceUsage: true,
}

// traceCleanup flushes the tracer installed by the pre-run hook.
var traceCleanup = func(failed bool) {}

// profileCleanup stops the profilers started by the pre-run hook.
var profileCleanup = func() {}

// main registers subcommands and persistent flags, then executes the root
// command. A failing command exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(abiCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")

	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|stage|func|block)")
	rootCmd.PersistentFlags().String("trace-mode", "ring", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept by the ring tracer")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "trace format (auto|text|ndjson|chrome)")

	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to this file")

	err := rootCmd.Execute()
	profileCleanup()
	traceCleanup(err != nil)
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
