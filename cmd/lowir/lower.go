package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lowir/internal/diag"
	"lowir/internal/driver"
)

var lowerCmd = &cobra.Command{
	Use:   "lower <unit.mir>",
	Short: "Lower a MIR unit to LLVM IR",
	Long: `Lower reads an encoded MIR unit, lowers every function for the selected
target and writes the textual LLVM module`,
	Args: cobra.ExactArgs(1),
	RunE: runLower,
}

func init() {
	lowerCmd.Flags().StringP("output", "o", "-", "output file (- for stdout)")
	lowerCmd.Flags().String("target", "", "target preset (see 'lowir targets')")
	lowerCmd.Flags().String("target-file", "", "target description in TOML")
	lowerCmd.Flags().IntP("jobs", "j", 0, "functions lowered in parallel (0 = GOMAXPROCS)")
	lowerCmd.Flags().Bool("keep-going", false, "keep lowering after a function fails")
	lowerCmd.Flags().String("emit", "ll", "what to write (ll|funcs|none)")
	lowerCmd.Flags().Bool("entry-shim", false, "emit a C main calling the unit's entry function")
	lowerCmd.Flags().Bool("cache", false, "reuse IR from earlier runs with the same unit, target and options")
	lowerCmd.Flags().String("cache-dir", "", "cache directory (default: user cache dir)")
	lowerCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	lowerCmd.Flags().String("format", "pretty", "diagnostic format (pretty|short|json)")
	lowerCmd.Flags().Bool("with-notes", false, "print diagnostic notes")
}

type lowerFlags struct {
	output    string
	emit      string
	format    string
	withNotes bool
	ui        uiMode
	cache     bool
	cacheDir  string
	quiet     bool
	timings   bool
	opts      driver.Options
}

func readLowerFlags(cmd *cobra.Command) (lowerFlags, error) {
	var lf lowerFlags
	var err error
	fs := cmd.Flags()
	if lf.output, err = fs.GetString("output"); err != nil {
		return lf, err
	}
	if lf.emit, err = fs.GetString("emit"); err != nil {
		return lf, err
	}
	switch lf.emit = strings.ToLower(lf.emit); lf.emit {
	case "ll", "funcs", "none":
	default:
		return lf, fmt.Errorf("invalid --emit value %q (expected ll|funcs|none)", lf.emit)
	}
	if lf.format, err = fs.GetString("format"); err != nil {
		return lf, err
	}
	switch lf.format = strings.ToLower(lf.format); lf.format {
	case "pretty", "short", "json":
	default:
		return lf, fmt.Errorf("invalid --format value %q (expected pretty|short|json)", lf.format)
	}
	if lf.withNotes, err = fs.GetBool("with-notes"); err != nil {
		return lf, err
	}
	uiValue, err := fs.GetString("ui")
	if err != nil {
		return lf, err
	}
	if lf.ui, err = readUIMode(uiValue); err != nil {
		return lf, err
	}
	if lf.cache, err = fs.GetBool("cache"); err != nil {
		return lf, err
	}
	if lf.cacheDir, err = fs.GetString("cache-dir"); err != nil {
		return lf, err
	}

	root := cmd.Root().PersistentFlags()
	if lf.quiet, err = root.GetBool("quiet"); err != nil {
		return lf, err
	}
	if lf.timings, err = root.GetBool("timings"); err != nil {
		return lf, err
	}
	if lf.opts.MaxDiagnostics, err = root.GetInt("max-diagnostics"); err != nil {
		return lf, err
	}

	if lf.opts.Target, err = fs.GetString("target"); err != nil {
		return lf, err
	}
	if lf.opts.TargetFile, err = fs.GetString("target-file"); err != nil {
		return lf, err
	}
	if lf.opts.Jobs, err = fs.GetInt("jobs"); err != nil {
		return lf, err
	}
	if lf.opts.KeepGoing, err = fs.GetBool("keep-going"); err != nil {
		return lf, err
	}
	if lf.opts.EntryShim, err = fs.GetBool("entry-shim"); err != nil {
		return lf, err
	}
	// JSON consumers get timings as a diagnostic; people get a table.
	lf.opts.Timings = lf.timings && lf.format == "json"
	return lf, nil
}

func openCache(dir string) (driver.Cache, error) {
	var disk *driver.DiskCache
	var err error
	if dir != "" {
		disk, err = driver.OpenDiskCacheAt(dir)
	} else {
		disk, err = driver.OpenDiskCache("lowir")
	}
	if err != nil {
		return nil, err
	}
	return driver.NewMemoryCache(0, disk), nil
}

func runLower(cmd *cobra.Command, args []string) error {
	lf, err := readLowerFlags(cmd)
	if err != nil {
		return err
	}
	path := args[0]
	if lf.cache {
		c, cacheErr := openCache(lf.cacheDir)
		if cacheErr != nil {
			// Lowering still works without a cache.
			fmt.Fprintf(os.Stderr, "warning: cache disabled: %v\n", cacheErr)
		} else {
			lf.opts.Cache = c
		}
	}

	ctx := cmd.Context()
	var res *driver.Result
	if shouldUseTUI(lf.ui) && !lf.quiet {
		res, err = runLowerWithUI(ctx, "lowering "+filepath.Base(path), path, lf.opts)
	} else {
		res, err = driver.Lower(ctx, path, lf.opts)
	}

	colored, colorErr := useColor(cmd, os.Stderr)
	if colorErr != nil {
		return colorErr
	}
	if res != nil {
		bag := res.Bag
		if lf.quiet {
			bag = withoutInfo(bag)
		}
		files := res.Files()
		if printErr := printDiagnostics(os.Stderr, bag, diagOutput{
			format:    lf.format,
			withNotes: lf.withNotes,
			color:     colored,
			max:       lf.opts.MaxDiagnostics,
			files:     files,
		}); printErr != nil {
			return printErr
		}
		if lf.timings && lf.format != "json" {
			if printErr := printTimings(os.Stderr, res.Timings, false); printErr != nil {
				return printErr
			}
		}
	}
	if err != nil {
		// With --keep-going the partial module is still written.
		if lf.opts.KeepGoing && res != nil && res.IR != "" {
			if writeErr := writeResult(cmd.OutOrStdout(), lf, res); writeErr != nil {
				return writeErr
			}
		}
		return loweringFailed(err)
	}

	if err := writeResult(cmd.OutOrStdout(), lf, res); err != nil {
		return err
	}
	if !lf.quiet && lf.output != "-" {
		state := "lowered"
		if res.Cached {
			state = "cached"
		}
		fmt.Fprintf(os.Stderr, "%s %d functions to %s\n", state, len(res.Funcs), lf.output)
	}
	return nil
}

func writeResult(stdout io.Writer, lf lowerFlags, res *driver.Result) error {
	var payload string
	switch lf.emit {
	case "none":
		return nil
	case "funcs":
		if len(res.Funcs) > 0 {
			payload = strings.Join(res.Funcs, "\n") + "\n"
		}
	default:
		payload = res.IR
	}
	if lf.output == "-" {
		_, err := io.WriteString(stdout, payload)
		return err
	}
	if err := os.WriteFile(lf.output, []byte(payload), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", lf.output, err)
	}
	return nil
}

// loweringFailed shortens the returned error: the diagnostics already
// carry the details.
func loweringFailed(err error) error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		if n := len(joined.Unwrap()); n > 1 {
			return fmt.Errorf("lowering failed with %d errors", n)
		}
	}
	return fmt.Errorf("lowering failed: %w", err)
}

func withoutInfo(bag *diag.Bag) *diag.Bag {
	out := diag.NewBag(int(bag.Cap()))
	for _, d := range bag.Items() {
		if d.Severity != diag.SevInfo {
			out.Add(d)
		}
	}
	return out
}
