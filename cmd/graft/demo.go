package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazu/graft/engine"
	"github.com/chazu/graft/hook"
	"github.com/chazu/graft/internal/fixture"
	"github.com/chazu/graft/trace"
	"github.com/chazu/graft/vm"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Hook a static method, an instance method, a constructor and a proxy.",
	Long: "`demo` walks through one hook of every supported kind, printing " +
		"the result of each call before, during and after the hook.",
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
		return runDemo(cmd.OutOrStdout(), f, e, tracer)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(out io.Writer, f *fixture.Fixture, e *engine.Engine, tracer trace.Tracer) error {
	var opts []hook.Option
	if tracer != nil {
		opts = append(opts, hook.WithTracer(tracer))
	}
	var hooks hook.Set
	defer hooks.UnhookAll()

	owner, err := f.NewReplacementOwner()
	if err != nil {
		return err
	}
	obj, err := f.NewSample()
	if err != nil {
		return err
	}
	proxy, err := f.VM.New(f.GreeterProxy)
	if err != nil {
		return err
	}
	greet := f.VM.NewCallSite("greet", vm.TypeString)

	steps := []struct {
		name        string
		target      *vm.Method
		replacement *vm.Method
		owner       vm.Value
		call        func() (vm.Value, error)
	}{
		{
			name:        "static",
			target:      f.StaticMethod,
			replacement: f.StaticReplacement,
			owner:       vm.Nil,
			call:        func() (vm.Value, error) { return f.StaticMethod.Invoke() },
		},
		{
			name:        "instance",
			target:      f.NormalMethod,
			replacement: f.NormalReplacement,
			owner:       owner,
			call:        func() (vm.Value, error) { return f.NormalMethod.Call(fixture.NormalArgs(obj)) },
		},
		{
			name:        "constructor",
			target:      f.Ctor,
			replacement: f.ConstructorReplacement,
			owner:       owner,
			call: func() (vm.Value, error) {
				v, err := f.NewSample()
				if err != nil {
					return vm.Nil, err
				}
				return f.Describe.Invoke(v)
			},
		},
		{
			name:        "proxy",
			target:      f.Greet,
			replacement: f.GreetReplacement,
			owner:       vm.Nil,
			call:        func() (vm.Value, error) { return greet.Call(proxy, vm.FromString("world")) },
		},
		{
			name:        "builtin",
			target:      f.ParseInt,
			replacement: f.ParseIntReplacement,
			owner:       vm.Nil,
			call:        func() (vm.Value, error) { return f.ParseInt.Invoke(vm.FromString("41")) },
		},
		{
			name:        "legacy",
			target:      f.NormalMethod,
			replacement: f.NormalLegacyStatic,
			owner:       vm.Nil,
			call:        func() (vm.Value, error) { return f.NormalMethod.Call(fixture.NormalArgs(obj)) },
		},
	}

	for _, step := range steps {
		before, err := step.call()
		if err != nil {
			return fmt.Errorf("%s before hook: %w", step.name, err)
		}
		h, err := hook.Hook(e, step.target, step.replacement, step.owner, opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		hooks.Add(h)
		during, err := step.call()
		if err != nil {
			return fmt.Errorf("%s during hook: %w", step.name, err)
		}
		if err := hooks.UnhookAll(); err != nil {
			return err
		}
		after, err := step.call()
		if err != nil {
			return fmt.Errorf("%s after unhook: %w", step.name, err)
		}

		fmt.Fprintf(out, "%-12s %s -> %s\n", step.name, step.target, step.replacement)
		fmt.Fprintf(out, "  before:   %s\n  hooked:   %s\n  restored: %s\n", before, during, after)
	}
	return nil
}
