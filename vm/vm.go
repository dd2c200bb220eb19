package vm

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultTierThreshold is the call count at which an interpreted method is
// swapped for its compiled form.
const DefaultTierThreshold = 1000

// ---------------------------------------------------------------------------
// VM: the graft object runtime
// ---------------------------------------------------------------------------

// VM owns the class and selector tables, the well-known classes and the
// world lock shared by entry-point rewriting and compaction.
type VM struct {
	Selectors *SelectorTable
	Classes   *ClassTable

	// Well-known classes
	ObjectClass  *Class
	StringClass  *Class
	IntegerClass *Class
	MathClass    *Class

	tierThreshold uint64
	epoch         atomic.Uint64
	nextID        atomic.Uint64
	compactions   atomic.Uint64

	// world is held exclusively while dispatch structures are rewritten or
	// relocated. Calls never take it.
	world sync.Mutex
}

// Option configures a VM.
type Option func(*VM)

// WithTierThreshold sets the tier-up threshold. Zero disables tier-up.
func WithTierThreshold(n uint64) Option {
	return func(v *VM) { v.tierThreshold = n }
}

// NewVM creates a runtime with the built-in classes installed.
func NewVM(opts ...Option) *VM {
	v := &VM{
		Selectors:     NewSelectorTable(),
		Classes:       NewClassTable(),
		tierThreshold: DefaultTierThreshold,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.bootstrap()
	return v
}

// TierThreshold returns the configured tier-up threshold.
func (v *VM) TierThreshold() uint64 { return v.tierThreshold }

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// DefineClass creates and registers a class. A nil superclass means Object.
func (v *VM) DefineClass(name string, superclass *Class, instVars ...string) (*Class, error) {
	if superclass == nil {
		superclass = v.ObjectClass
	}
	if superclass.HasFlag(ClassFinal) {
		return nil, fmt.Errorf("%s extends %s: %w", name, superclass, ErrFinalClass)
	}
	if superclass.IsInterface() {
		return nil, fmt.Errorf("%s extends interface %s", name, superclass)
	}
	c := newClass(v, name, superclass, instVars)
	v.Classes.Register(c)
	return c, nil
}

// ClassOf returns the class a value dispatches through, or nil for Nil.
func (v *VM) ClassOf(val Value) *Class {
	switch val.kind {
	case KindNil:
		return nil
	case KindObject:
		return val.ref.(*Object).class
	case KindString:
		return v.StringClass
	case KindByte, KindShort, KindInt, KindLong:
		return v.IntegerClass
	default:
		return v.ObjectClass
	}
}

// New is the direct construction path: allocate an instance of c and run
// the constructor whose parameters accept args. A class without
// constructors accepts only an empty argument list.
func (v *VM) New(c *Class, args ...Value) (Value, error) {
	ctor := c.constructorFor(args)
	if ctor == nil {
		if len(args) > 0 || len(c.Constructors()) > 0 {
			return Nil, fmt.Errorf("%s: %w: no constructor for %d arguments", c, ErrNoSuchMethod, len(args))
		}
		obj, err := c.allocate()
		if err != nil {
			return Nil, err
		}
		return FromObject(obj), nil
	}
	return ctor.NewInstance(args...)
}

// ---------------------------------------------------------------------------
// World lock and maintenance
// ---------------------------------------------------------------------------

// SuspendAll acquires the world lock and returns its release function.
// Entry-point rewriting and Compact are mutually exclusive under it;
// running calls are not blocked.
func (v *VM) SuspendAll() (release func()) {
	v.world.Lock()
	return v.world.Unlock
}

// Compact is the runtime's maintenance pause. It relocates every vtable
// into fresh storage, invalidates all inline caches and runs the Go
// collector. Method descriptors keep their identity, so hooks survive.
func (v *VM) Compact() {
	release := v.SuspendAll()
	defer release()

	for _, c := range v.Classes.All() {
		c.VTable.relocate()
		c.ClassVTable.relocate()
	}
	v.epoch.Add(1)
	v.compactions.Add(1)
	runtime.GC()
}

// Compactions returns how many times Compact has run.
func (v *VM) Compactions() uint64 { return v.compactions.Load() }
