package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lowir/internal/trace"
)

// setupTracing reads the trace flags, installs the tracer on the command
// context and returns its cleanup.
func setupTracing(cmd *cobra.Command) (func(failed bool), error) {
	root := cmd.Root()
	noop := func(bool) {}

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}

	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}

	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}

	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	formatStr, err := root.PersistentFlags().GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}

	// A trace file without an explicit level traces session stages.
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelStage
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return noop, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	if mode != trace.ModeRing && traceOutput == "" {
		traceOutput = "-"
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: traceOutput,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	counters := &trace.Counters{}
	ctx := trace.WithCounters(trace.WithTracer(cmd.Context(), tracer), counters)
	cmd.SetContext(ctx)
	heartbeat := trace.StartHeartbeat(tracer, heartbeatInterval, counters)

	cleanup := func(failed bool) {
		heartbeat.Stop()
		switch t := tracer.(type) {
		case *trace.RingTracer:
			dumpRing(cmd, t, traceOutput, format, failed)
		case *trace.MultiTracer:
			// The stream already holds the events; the ring only helps
			// when they went to a file the user may not look at.
			if failed && traceOutput != "-" {
				dumpRing(cmd, t.Ring(), "", format, failed)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}

	return cleanup, nil
}

// dumpRing writes the ring's events to the --trace file, or to stderr
// after a failure when no file was named.
func dumpRing(cmd *cobra.Command, ring *trace.RingTracer, path string, format trace.Format, failed bool) {
	if ring == nil {
		return
	}
	if path != "" && path != "-" {
		if format == trace.FormatAuto {
			format = trace.FormatForPath(path)
		}
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
			return
		}
		defer f.Close()
		if err := ring.Dump(f, format); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
		}
		return
	}
	if !failed {
		return
	}
	if n := ring.Dropped(); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: last events before failure (%d older events dropped)\n", n)
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "trace: last events before failure")
	}
	if err := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
	}
}
