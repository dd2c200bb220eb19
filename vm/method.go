package vm

import (
	"fmt"
	"sync/atomic"
)

// MethodKind distinguishes how a method binds its arguments.
type MethodKind uint8

const (
	// Static methods take only their declared parameters.
	Static MethodKind = iota
	// Instance methods take the receiver at index 0.
	Instance
	// Constructor methods take the freshly allocated receiver at index 0
	// and initialize it in place.
	Constructor
)

func (k MethodKind) String() string {
	switch k {
	case Static:
		return "static"
	case Instance:
		return "instance"
	case Constructor:
		return "constructor"
	}
	return fmt.Sprintf("MethodKind(%d)", uint8(k))
}

// MethodFlags are the modifiers of a method.
type MethodFlags uint32

const (
	FlagAbstract MethodFlags = 1 << iota
	FlagBuiltin
	FlagVarargs
	FlagPrivate
	FlagFinal
	FlagSynthetic
	FlagNonCompilable
)

// Body is the Go implementation of a method. args holds the receiver at
// index 0 for instance methods and constructors.
type Body func(args []Value) (Value, error)

// ---------------------------------------------------------------------------
// Entry: the swappable code pointer of a method
// ---------------------------------------------------------------------------

// Entry is the code a method runs when called. Entries are immutable;
// rewriting dispatch means storing a different *Entry in the method.
type Entry struct {
	body     Body
	compiled bool
	interp   *Entry // interpreted form, set on compiled entries
	retired  bool
}

// NewEntry creates an interpreted entry for body.
func NewEntry(body Body) *Entry {
	return &Entry{body: body}
}

// Body returns the Go function behind the entry.
func (e *Entry) Body() Body { return e.body }

// Compiled returns true if the entry was produced by tier-up.
func (e *Entry) Compiled() bool { return e.compiled }

// Interpreted returns the interpreted form of e.
func (e *Entry) Interpreted() *Entry {
	if e.compiled {
		return e.interp
	}
	return e
}

func (e *Entry) compile() *Entry {
	return &Entry{body: e.body, compiled: true, interp: e}
}

var retiredEntry = &Entry{
	body:    func([]Value) (Value, error) { return Nil, ErrRetiredMethod },
	retired: true,
}

// ---------------------------------------------------------------------------
// Method: callable descriptor
// ---------------------------------------------------------------------------

// Method describes one dispatchable unit: a static method, an instance
// method or a constructor. Everything but the entry point and the
// NonCompilable flag is fixed at definition time.
type Method struct {
	class    *Class
	name     string
	kind     MethodKind
	params   []Type
	ret      Type
	selector int

	flags atomic.Uint32
	entry atomic.Pointer[Entry]
	calls atomic.Uint64
}

func newMethod(class *Class, kind MethodKind, name string, params []Type, ret Type, flags MethodFlags, body Body) *Method {
	m := &Method{
		class:    class,
		name:     name,
		kind:     kind,
		params:   append([]Type(nil), params...),
		ret:      ret,
		selector: -1,
	}
	m.flags.Store(uint32(flags))
	m.entry.Store(NewEntry(body))
	return m
}

// NewTrampoline creates a free-standing variadic static method around fn.
// Trampolines are never compiled and cannot be hooked themselves.
func NewTrampoline(name string, fn Body) *Method {
	return newMethod(nil, Static, name, nil, TypeObject,
		FlagVarargs|FlagSynthetic|FlagNonCompilable, fn)
}

// Class returns the declaring class, or nil for trampolines.
func (m *Method) Class() *Class { return m.class }

// Name returns the method name; constructors are named "<init>".
func (m *Method) Name() string { return m.name }

// Kind returns the binding kind.
func (m *Method) Kind() MethodKind { return m.kind }

// IsStatic returns true for static methods.
func (m *Method) IsStatic() bool { return m.kind == Static }

// Params returns a copy of the declared parameter types.
func (m *Method) Params() []Type { return append([]Type(nil), m.params...) }

// Arity returns the number of declared parameters, excluding the receiver.
func (m *Method) Arity() int { return len(m.params) }

// Return returns the declared return type.
func (m *Method) Return() Type { return m.ret }

// Flags returns the current modifiers.
func (m *Method) Flags() MethodFlags { return MethodFlags(m.flags.Load()) }

// HasFlag reports whether all bits of f are set.
func (m *Method) HasFlag(f MethodFlags) bool { return m.Flags()&f == f }

// SetFlag sets the bits of f.
func (m *Method) SetFlag(f MethodFlags) { m.flags.Or(uint32(f)) }

// ClearFlag clears the bits of f.
func (m *Method) ClearFlag(f MethodFlags) { m.flags.And(^uint32(f)) }

// Entry returns the current entry point.
func (m *Method) Entry() *Entry { return m.entry.Load() }

// StoreEntry atomically publishes e as the entry point. Every call that
// starts after StoreEntry returns runs e.
func (m *Method) StoreEntry(e *Entry) { m.entry.Store(e) }

// CompareAndSwapEntry replaces old with new if old is still current.
func (m *Method) CompareAndSwapEntry(old, new *Entry) bool {
	return m.entry.CompareAndSwap(old, new)
}

// Calls returns how many times the method has been called.
func (m *Method) Calls() uint64 { return m.calls.Load() }

// Retired returns true once Retire has been called.
func (m *Method) Retired() bool { return m.entry.Load().retired }

// Retire makes every future call fail with ErrRetiredMethod.
func (m *Method) Retire() { m.entry.Store(retiredEntry) }

// Duplicate returns a private, synthetic, non-compilable copy of m that
// runs m's current (interpreted) code. The copy shares m's identity
// metadata but has its own entry point and call counter.
func (m *Method) Duplicate() *Method {
	d := &Method{
		class:    m.class,
		name:     m.name,
		kind:     m.kind,
		params:   m.params,
		ret:      m.ret,
		selector: m.selector,
	}
	d.flags.Store(m.flags.Load() | uint32(FlagPrivate|FlagSynthetic|FlagNonCompilable))
	d.entry.Store(m.entry.Load().Interpreted())
	return d
}

// Deoptimize swaps a compiled entry back to its interpreted form. Returns
// false if the method was not running compiled code.
func (m *Method) Deoptimize() bool {
	for {
		e := m.entry.Load()
		if !e.compiled {
			return false
		}
		if m.entry.CompareAndSwap(e, e.interp) {
			return true
		}
	}
}

// String returns Class.name(params).
func (m *Method) String() string {
	owner := "<trampoline>"
	if m.class != nil {
		owner = m.class.FullName()
	}
	return owner + "." + m.name + signature(m.params)
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invoke calls the method with the given argument vector.
func (m *Method) Invoke(args ...Value) (Value, error) {
	return m.Call(args)
}

// Call runs the method's current entry with args. Interpreted entries
// validate the vector against the signature first. Static methods and
// constructors initialize their class on first use. Errors returned by the
// body are passed through untouched.
func (m *Method) Call(args []Value) (Value, error) {
	e := m.entry.Load()
	if e.retired {
		return Nil, fmt.Errorf("%s: %w", m, ErrRetiredMethod)
	}
	if !e.compiled {
		if err := m.checkArgs(args); err != nil {
			return Nil, err
		}
	}
	if m.kind != Instance && m.class != nil {
		if err := m.class.ensureInitialized(); err != nil {
			return Nil, err
		}
	}
	m.countCall(e)
	return e.body(args)
}

// NewInstance allocates an instance of the declaring class and runs this
// constructor on it. This is the reflective construction path.
func (m *Method) NewInstance(args ...Value) (Value, error) {
	if m.kind != Constructor {
		return Nil, fmt.Errorf("%s: %w: not a constructor", m, ErrNoSuchMethod)
	}
	obj, err := m.class.allocate()
	if err != nil {
		return Nil, err
	}
	recv := FromObject(obj)
	full := make([]Value, 0, len(args)+1)
	full = append(full, recv)
	full = append(full, args...)
	if _, err := m.Call(full); err != nil {
		return Nil, err
	}
	return recv, nil
}

func (m *Method) checkArgs(args []Value) error {
	if m.HasFlag(FlagVarargs) {
		return nil
	}
	off := 0
	if m.kind != Static {
		off = 1
	}
	if want := len(m.params) + off; len(args) != want {
		return fmt.Errorf("%s: %w: got %d, want %d", m, ErrArity, len(args), want)
	}
	if off == 1 {
		recv := args[0]
		if recv.IsNil() {
			return fmt.Errorf("%s: %w", m, ErrNilReceiver)
		}
		if m.class != nil {
			if rc := m.class.vm.ClassOf(recv); rc == nil || !rc.ConformsTo(m.class) {
				return fmt.Errorf("%s: %w: %s", m, ErrReceiverClass, recv)
			}
		}
	}
	for i, p := range m.params {
		if a := args[off+i]; !p.Accepts(a) {
			return fmt.Errorf("%s: %w: argument %d is %s, want %s", m, ErrArgType, i, a.Kind(), p)
		}
	}
	return nil
}

func (m *Method) countCall(e *Entry) {
	n := m.calls.Add(1)
	if e.compiled || m.class == nil {
		return
	}
	if t := m.class.vm.tierThreshold; t > 0 && n == t {
		m.tierUp(e)
	}
}

// tierUp swaps the interpreted entry e for a compiled one, unless the
// method is non-compilable or e is no longer current.
func (m *Method) tierUp(e *Entry) bool {
	if m.HasFlag(FlagNonCompilable) {
		return false
	}
	return m.entry.CompareAndSwap(e, e.compile())
}
