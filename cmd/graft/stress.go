package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/graft/engine"
	"github.com/chazu/graft/hook"
	"github.com/chazu/graft/internal/fixture"
	"github.com/chazu/graft/trace"
	"github.com/chazu/graft/vm"
)

const (
	stressWant   = "test4243replace"
	stressBackup = "test4243"
)

type stressConfig struct {
	iterations int
	goroutines int
	pause      time.Duration
	compact    bool
}

var stressFlags stressConfig

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Call a hooked method many times across a pause and a compaction.",
	Long: "`stress` hooks Sample.normalMethod, calls it through a virtual call " +
		"site, pauses and compacts the runtime half way and keeps calling. " +
		"Every result must come from the replacement.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, e, err := newRuntime()
		if err != nil {
			return err
		}
		tracer, err := openTracer(cmd.Context())
		if err != nil {
			return err
		}
		if tracer != nil {
			defer tracer.Close()
		}
		return runStress(cmd.Context(), cmd.OutOrStdout(), f, e, tracer, stressFlags)
	},
}

func init() {
	rootCmd.AddCommand(stressCmd)
	stressCmd.Flags().IntVarP(&stressFlags.iterations, "iterations", "n", 10000, "calls per goroutine")
	stressCmd.Flags().IntVarP(&stressFlags.goroutines, "goroutines", "g", 1, "concurrent callers")
	stressCmd.Flags().DurationVar(&stressFlags.pause, "pause", 3*time.Second, "pause half way through")
	stressCmd.Flags().BoolVar(&stressFlags.compact, "compact", true, "compact the runtime during the pause")
}

func runStress(ctx context.Context, out io.Writer, f *fixture.Fixture, e *engine.Engine, tracer trace.Tracer, sc stressConfig) (err error) {
	owner, err := f.NewReplacementOwner()
	if err != nil {
		return err
	}
	var opts []hook.Option
	if tracer != nil {
		opts = append(opts, hook.WithTracer(tracer))
	}
	h, err := hook.Hook(e, f.NormalMethod, f.NormalReplacement, owner, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := h.Unhook(); err == nil {
			err = uerr
		}
	}()
	backup := h.Backup()

	site := f.VM.NewCallSite("normalMethod", fixture.NormalParams...)
	half := sc.iterations / 2
	start := time.Now()

	// the first half runs on every goroutine before the pause
	if err := callConcurrently(ctx, f, site, backup, sc.goroutines, half); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d calls done, pausing %s\n", half*sc.goroutines, sc.pause)
	select {
	case <-time.After(sc.pause):
	case <-ctx.Done():
		return ctx.Err()
	}
	if sc.compact {
		f.VM.Compact()
	}

	if err := callConcurrently(ctx, f, site, backup, sc.goroutines, sc.iterations-half); err != nil {
		return err
	}

	_, hits, misses := site.Stats()
	fmt.Fprintf(out, "%d calls in %s, inline cache %d hits / %d misses, %d compactions\n",
		sc.iterations*sc.goroutines, time.Since(start).Round(time.Millisecond), hits, misses, f.VM.Compactions())
	return nil
}

// callConcurrently calls through site and through the backup n times on
// each goroutine. The site must reach the replacement and the backup the
// original code every time.
func callConcurrently(ctx context.Context, f *fixture.Fixture, site *vm.CallSite, backup *vm.Method, goroutines, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	for range max(goroutines, 1) {
		g.Go(func() error {
			obj, err := f.NewSample()
			if err != nil {
				return err
			}
			full := fixture.NormalArgs(obj)
			args := full[1:]
			for i := range n {
				if i%1024 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				got, err := site.Call(obj, args...)
				if err != nil {
					return fmt.Errorf("call %d: %w", i, err)
				}
				if got.String() != stressWant {
					return fmt.Errorf("call %d: got %q, want %q", i, got, stressWant)
				}
				orig, err := backup.Call(full)
				if err != nil {
					return fmt.Errorf("backup call %d: %w", i, err)
				}
				if orig.String() != stressBackup {
					return fmt.Errorf("backup call %d: got %q, want %q", i, orig, stressBackup)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
