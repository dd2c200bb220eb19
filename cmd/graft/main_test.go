package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chazu/graft/engine"
	"github.com/chazu/graft/internal/fixture"
	"github.com/chazu/graft/trace"
)

func newTestRuntime(t *testing.T) (*fixture.Fixture, *engine.Engine) {
	t.Helper()
	f, err := fixture.New()
	if err != nil {
		t.Fatalf("fixture.New: %v", err)
	}
	return f, engine.New(f.VM)
}

func TestRunDemo(t *testing.T) {
	f, e := newTestRuntime(t)
	mem := trace.NewMemory(0)

	var out bytes.Buffer
	if err := runDemo(&out, f, e, mem); err != nil {
		t.Fatalf("runDemo: %v", err)
	}

	for _, want := range []string{
		"hooked:   true",
		"hooked:   test4243replace",
		"hooked:   Sample(field=true)",
		"hooked:   hooked proxy greet world",
		"hooked:   42",
		"hooked:   TEST4243",
		"restored: false",
		"restored: Sample(field=false)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("demo output missing %q:\n%s", want, out.String())
		}
	}
	if mem.Total() != 6 {
		t.Errorf("traced %d calls, want 6", mem.Total())
	}
	if n := len(e.Hooked()); n != 0 {
		t.Errorf("%d methods still hooked after demo", n)
	}
}

func TestRunStress(t *testing.T) {
	f, e := newTestRuntime(t)
	var out bytes.Buffer
	sc := stressConfig{iterations: 2000, goroutines: 4, pause: 10 * time.Millisecond, compact: true}
	if err := runStress(context.Background(), &out, f, e, nil, sc); err != nil {
		t.Fatalf("runStress: %v", err)
	}
	if f.VM.Compactions() != 1 {
		t.Errorf("compactions = %d, want 1", f.VM.Compactions())
	}
	if e.IsHooked(f.NormalMethod) {
		t.Error("normalMethod still hooked after stress run")
	}
}

func TestRunStressCancelled(t *testing.T) {
	f, e := newTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := stressConfig{iterations: 10, goroutines: 1, pause: time.Hour}
	if err := runStress(ctx, &bytes.Buffer{}, f, e, nil, sc); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if e.IsHooked(f.NormalMethod) {
		t.Error("normalMethod still hooked after cancelled run")
	}
}

func TestPrintEvents(t *testing.T) {
	var out bytes.Buffer
	err := printEvents(&out, []trace.Event{{
		Target: "Sample.staticMethod()",
		Kind:   "static",
		Start:  time.Unix(0, 0).UTC(),
		Err:    "boom",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Sample.staticMethod()") || !strings.Contains(out.String(), "boom") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
