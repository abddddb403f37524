package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/aretw0/detent/internal/presentation/tui"
	"github.com/aretw0/detent/internal/scenario"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [config]",
	Short: "Replay a scenario against the simulated platform",
	Long: `Mounts the sheets declared in the config file and runs its scenario
step by step, printing every lifecycle event and the final stack.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		format, _ := cmd.Flags().GetString("format")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		if !quiet && format == "markdown" && isTerminal(out) {
			tui.PrintBanner(out)
		}

		tr := &tracer{out: out, names: map[string]string{}}
		if quiet {
			tr.out = io.Discard
		}

		deps, err := buildEngine(ctx, cfg, logger, engineSetup{hooks: tr.hooks()})
		if err != nil {
			return err
		}
		defer deps.Close()

		runner := scenario.New(deps.engine, deps.platform, logger)
		if err := runner.Mount(cfg.Sheets); err != nil {
			return err
		}
		for _, snap := range deps.engine.List() {
			tr.name(snap.ID, snap.Name)
		}

		results, runErr := runner.Run(ctx, cfg.Scenario)
		deps.platform.Wait()

		fmt.Fprintln(out)
		for _, r := range results {
			status := "ok"
			if r.Err != nil {
				status = "error: " + r.Err.Error()
			}
			fmt.Fprintf(out, "step %d %-16s %-10s %-14s %s\n", r.Step, r.Op, r.Sheet, r.State, status)
		}
		fmt.Fprintln(out)

		if err := renderStack(out, deps.engine.List(), deps.engine.Topmost(), format); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().BoolP("quiet", "q", false, "Don't print lifecycle events")
	simulateCmd.Flags().StringP("format", "f", "markdown", "Final stack format: markdown, mermaid or json")
}

// tracer prints lifecycle events as they are emitted.
type tracer struct {
	mu    sync.Mutex
	out   io.Writer
	names map[string]string
}

func (t *tracer) name(id, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if name == "" {
		name = id[:min(8, len(id))]
	}
	t.names[id] = name
}

func (t *tracer) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(_ context.Context, ev *domain.Event) {
			t.mu.Lock()
			defer t.mu.Unlock()
			name, ok := t.names[ev.SheetID]
			if !ok {
				name = ev.SheetID[:min(8, len(ev.SheetID))]
			}
			line := fmt.Sprintf("  %-10s %s", name, ev.Type)
			if ev.Info != nil {
				line += fmt.Sprintf(" index=%d detent=%g", ev.Info.Index, ev.Info.Detent)
			}
			if ev.Detents != nil {
				line += fmt.Sprintf(" detents=%v", []float64(ev.Detents))
			}
			fmt.Fprintln(t.out, line)
		},
		OnFailure: func(_ context.Context, err *domain.OperationError) {
			t.mu.Lock()
			defer t.mu.Unlock()
			fmt.Fprintf(t.out, "  %-10s failed: %v\n", t.names[err.SheetID], err.Err)
		},
	}
}
