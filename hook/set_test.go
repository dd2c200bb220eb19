package hook_test

import (
	"testing"

	"github.com/chazu/graft/hook"
	"github.com/chazu/graft/vm"
)

func TestSetUnhookAll(t *testing.T) {
	f, e := setup(t)
	var s hook.Set

	s.Add(mustHook(t, e, f.StaticMethod, f.StaticReplacement, vm.Nil))
	s.Add(mustHook(t, e, f.ParseInt, f.ParseIntReplacement, vm.Nil))
	s.Add(nil)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}

	// an already removed hook is skipped
	first := s.Hookers()[0]
	if err := first.Unhook(); err != nil {
		t.Fatal(err)
	}

	if err := s.UnhookAll(); err != nil {
		t.Fatalf("UnhookAll: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len after UnhookAll = %d, want 0", s.Len())
	}
	if e.IsHooked(f.StaticMethod) || e.IsHooked(f.ParseInt) {
		t.Error("targets still hooked")
	}
	if mustCall(t, f.StaticMethod).Bool() {
		t.Error("staticMethod not restored")
	}
}
