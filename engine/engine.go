// Package engine rewrites method entry points of a vm.VM.
//
// It is the installation primitive behind package hook: Install points a
// target method at a callback and hands back a backup that still runs the
// original code, Uninstall undoes one installation. Installations on the
// same target stack; each layer can be removed independently.
package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/graft/internal/logging"
	"github.com/chazu/graft/vm"
)

var (
	// ErrNotHookable is returned for methods whose dispatch cannot be rewritten.
	ErrNotHookable = errors.New("method is not hookable")
	// ErrAlreadyHooked is returned when stacking is disabled and the target
	// already carries a hook.
	ErrAlreadyHooked = errors.New("method is already hooked")
	// ErrNotHooked is returned when uninstalling something that is not installed.
	ErrNotHooked = errors.New("method is not hooked")
	// ErrNotBuiltin is returned by NativeFunction for user-defined methods.
	ErrNotBuiltin = errors.New("method is not built-in")
)

// layer is one installation on a target. backup runs whatever the target
// ran before callback was installed.
type layer struct {
	callback *vm.Method
	backup   *vm.Method
}

type record struct {
	flags  vm.MethodFlags // target flags before the first layer
	layers []layer        // bottom to top
}

// Engine installs and removes entry-point rewrites on one VM.
type Engine struct {
	vm       *vm.VM
	stacking bool
	log      commonlog.Logger

	mu     sync.Mutex
	hooked map[*vm.Method]*record
}

// Option configures an Engine.
type Option func(*Engine)

// WithStacking controls whether a hooked target may be hooked again.
func WithStacking(allow bool) Option {
	return func(e *Engine) { e.stacking = allow }
}

// WithLogger overrides the engine logger.
func WithLogger(l commonlog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine for v. Stacking is enabled by default.
func New(v *vm.VM, opts ...Option) *Engine {
	e := &Engine{
		vm:       v,
		stacking: true,
		log:      logging.Logger("engine"),
		hooked:   make(map[*vm.Method]*record),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VM returns the runtime the engine rewrites.
func (e *Engine) VM() *vm.VM { return e.vm }

// Install redirects target to callback's entry and returns a backup whose
// entry is the code target ran until now. The switch is a single atomic
// store: a concurrent caller runs either the old code or the callback.
func (e *Engine) Install(target, callback *vm.Method) (*vm.Method, error) {
	if err := e.checkHookable(target, callback); err != nil {
		e.log.Errorf("%s", err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.hooked[target]
	if rec != nil && !e.stacking {
		e.log.Warningf("skip duplicate hook on %s", target)
		return nil, fmt.Errorf("%s: %w", target, ErrAlreadyHooked)
	}

	release := e.vm.SuspendAll()
	defer release()

	e.log.Debugf("hooking: target = %s, callback = %s", target, callback)
	if rec == nil {
		rec = &record{flags: target.Flags()}
		e.hooked[target] = rec
	}

	target.SetFlag(vm.FlagNonCompilable)
	callback.SetFlag(vm.FlagNonCompilable)
	target.Deoptimize()

	// copy after marking non-compilable so tier-up cannot race the copy
	backup := target.Duplicate()
	target.StoreEntry(callback.Entry())
	rec.layers = append(rec.layers, layer{callback: callback, backup: backup})

	e.log.Debugf("done hook: target %s, depth %d", target, len(rec.layers))
	return backup, nil
}

func (e *Engine) checkHookable(target, callback *vm.Method) error {
	switch {
	case target == nil:
		return fmt.Errorf("%w: nil target", ErrNotHookable)
	case callback == nil:
		return fmt.Errorf("%s: %w: nil callback", target, ErrNotHookable)
	case target.HasFlag(vm.FlagSynthetic):
		return fmt.Errorf("%s: %w: synthetic method", target, ErrNotHookable)
	case target.Class() == nil || target.Class().VM() != e.vm:
		return fmt.Errorf("%s: %w: method belongs to another runtime", target, ErrNotHookable)
	case target.Retired():
		return fmt.Errorf("%s: %w: retired method", target, ErrNotHookable)
	}
	return nil
}

// Uninstall removes the installation that produced backup. Removing the
// top layer restores the target entry; removing an inner layer splices it
// out of the chain so the layers above keep working. The backup keeps
// running the original code: calls that entered the callback before the
// switch may still reach it.
func (e *Engine) Uninstall(target, backup *vm.Method) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.hooked[target]
	if rec == nil {
		e.log.Errorf("unable to unhook %s: not hooked", target)
		return fmt.Errorf("%s: %w", target, ErrNotHooked)
	}
	idx := slices.IndexFunc(rec.layers, func(l layer) bool { return l.backup == backup })
	if idx < 0 {
		e.log.Errorf("unable to unhook %s: unknown backup", target)
		return fmt.Errorf("%s: %w: unknown backup", target, ErrNotHooked)
	}

	release := e.vm.SuspendAll()
	defer release()

	e.log.Debugf("unhooking: target = %s, layer %d of %d", target, idx+1, len(rec.layers))
	restored := backup.Entry()
	if idx == len(rec.layers)-1 {
		target.StoreEntry(restored)
	} else {
		rec.layers[idx+1].backup.StoreEntry(restored)
	}
	rec.layers = slices.Delete(rec.layers, idx, idx+1)

	if len(rec.layers) == 0 {
		delete(e.hooked, target)
		if rec.flags&vm.FlagNonCompilable == 0 {
			target.ClearFlag(vm.FlagNonCompilable)
		}
	}
	return nil
}

// IsHooked reports whether m carries at least one installation.
func (e *Engine) IsHooked(m *vm.Method) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.hooked[m]
	return ok
}

// Depth returns the number of installations stacked on m.
func (e *Engine) Depth(m *vm.Method) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec := e.hooked[m]; rec != nil {
		return len(rec.layers)
	}
	return 0
}

// Hooked returns every method that currently carries an installation.
func (e *Engine) Hooked() []*vm.Method {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]*vm.Method, 0, len(e.hooked))
	for m := range e.hooked {
		result = append(result, m)
	}
	return result
}

// Deoptimize puts m back on its interpreted entry and reports whether it
// was compiled. Hooked methods and their backups are never compiled, so
// for them it is a no-op.
func (e *Engine) Deoptimize(m *vm.Method) bool {
	if m == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.hooked[m]; ok {
		return false
	}
	return m.Deoptimize()
}

// NativeFunction returns the Go body of a built-in method, looking through
// any installed hooks.
func (e *Engine) NativeFunction(m *vm.Method) (vm.Body, error) {
	if m == nil || !m.HasFlag(vm.FlagBuiltin) {
		e.log.Errorf("%s is not built-in", m)
		return nil, fmt.Errorf("%s: %w", m, ErrNotBuiltin)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec := e.hooked[m]; rec != nil {
		return rec.layers[0].backup.Entry().Body(), nil
	}
	return m.Entry().Interpreted().Body(), nil
}

// MakeInheritable clears the final modifier of c and of its constructors
// so that c can be subclassed.
func (e *Engine) MakeInheritable(c *vm.Class) error {
	if c == nil {
		return errors.New("make inheritable: nil class")
	}
	if c.IsInterface() {
		return fmt.Errorf("make inheritable: %s is an interface", c)
	}
	c.ClearFlag(vm.ClassFinal)
	for _, ctor := range c.Constructors() {
		ctor.ClearFlag(vm.FlagFinal | vm.FlagPrivate)
	}
	return nil
}
