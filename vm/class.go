package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ClassFlags are the modifiers of a class.
type ClassFlags uint32

const (
	ClassFinal ClassFlags = 1 << iota
	ClassInterface
	ClassProxy
)

// Class is a runtime class: instance vtable, class-side (static) vtable,
// constructors, implemented interfaces and an optional static initializer
// that runs once, the first time a static method or constructor is used.
type Class struct {
	Name        string
	Namespace   string
	Superclass  *Class
	VTable      *VTable // instance methods
	ClassVTable *VTable // static methods
	InstVars    []string
	NumSlots    int

	vm    *VM
	flags atomic.Uint32

	mu         sync.RWMutex
	interfaces []*Class
	ctors      []*Method
	handler    InvocationHandler

	initFn   func() error
	initMu   sync.Mutex
	initDone atomic.Bool
	initErr  error
}

func newClass(v *VM, name string, superclass *Class, instVars []string) *Class {
	var parentVT, parentClassVT *VTable
	numSlots := 0
	if superclass != nil {
		parentVT = superclass.VTable
		parentClassVT = superclass.ClassVTable
		numSlots = superclass.NumSlots
	}
	c := &Class{
		Name:       name,
		Superclass: superclass,
		InstVars:   append([]string(nil), instVars...),
		NumSlots:   numSlots + len(instVars),
		vm:         v,
	}
	c.VTable = NewVTable(c, parentVT)
	c.ClassVTable = NewVTable(c, parentClassVT)
	return c
}

// VM returns the runtime the class belongs to.
func (c *Class) VM() *VM { return c.vm }

// Flags returns the class modifiers.
func (c *Class) Flags() ClassFlags { return ClassFlags(c.flags.Load()) }

// HasFlag reports whether all bits of f are set.
func (c *Class) HasFlag(f ClassFlags) bool { return c.Flags()&f == f }

// SetFlag sets the bits of f.
func (c *Class) SetFlag(f ClassFlags) { c.flags.Or(uint32(f)) }

// ClearFlag clears the bits of f.
func (c *Class) ClearFlag(f ClassFlags) { c.flags.And(^uint32(f)) }

// IsInterface returns true for interface classes.
func (c *Class) IsInterface() bool { return c.HasFlag(ClassInterface) }

// ---------------------------------------------------------------------------
// Instance variables
// ---------------------------------------------------------------------------

// InstVarIndex returns the slot index for an instance variable by name.
// Returns -1 if the variable is not found.
func (c *Class) InstVarIndex(name string) int {
	for i, n := range c.InstVars {
		if n == name {
			return c.instVarOffset() + i
		}
	}
	if c.Superclass != nil {
		return c.Superclass.InstVarIndex(name)
	}
	return -1
}

// instVarOffset returns the starting slot index for this class's instance
// variables, after all inherited ones.
func (c *Class) instVarOffset() int {
	if c.Superclass == nil {
		return 0
	}
	return c.Superclass.NumSlots
}

// AllInstVarNames returns all instance variable names including inherited ones.
func (c *Class) AllInstVarNames() []string {
	if c.Superclass == nil {
		return append([]string(nil), c.InstVars...)
	}
	return append(c.Superclass.AllInstVarNames(), c.InstVars...)
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// Implement records that c implements the given interfaces.
func (c *Class) Implement(ifaces ...*Class) error {
	for _, i := range ifaces {
		if !i.IsInterface() {
			return fmt.Errorf("%s: %s is not an interface", c, i)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interfaces = append(c.interfaces, ifaces...)
	return nil
}

// Interfaces returns the interfaces declared directly on c.
func (c *Class) Interfaces() []*Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Class(nil), c.interfaces...)
}

// ConformsTo returns true if c is other, a subclass of other, or
// implements other somewhere in its superclass chain.
func (c *Class) ConformsTo(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
		for _, i := range current.Interfaces() {
			if i == other {
				return true
			}
		}
	}
	return false
}

// Superclasses returns all superclasses from immediate parent to root.
func (c *Class) Superclasses() []*Class {
	var result []*Class
	for current := c.Superclass; current != nil; current = current.Superclass {
		result = append(result, current)
	}
	return result
}

// ---------------------------------------------------------------------------
// Method definition
// ---------------------------------------------------------------------------

// DefineMethod defines an instance method.
func (c *Class) DefineMethod(name string, params []Type, ret Type, body Body) *Method {
	return c.define(Instance, name, params, ret, 0, body)
}

// DefineStatic defines a class-side method.
func (c *Class) DefineStatic(name string, params []Type, ret Type, body Body) *Method {
	return c.define(Static, name, params, ret, 0, body)
}

// DefineConstructor defines a constructor. The body receives the already
// allocated receiver at index 0 and returns Nil.
func (c *Class) DefineConstructor(params []Type, body Body) *Method {
	return c.define(Constructor, "<init>", params, Void, 0, body)
}

// DefineBuiltin defines a runtime-provided method of any kind.
func (c *Class) DefineBuiltin(kind MethodKind, name string, params []Type, ret Type, body Body) *Method {
	if kind == Constructor {
		name = "<init>"
		ret = Void
	}
	return c.define(kind, name, params, ret, FlagBuiltin, body)
}

// DeclareAbstract declares an abstract instance method. Calls are
// forwarded to the receiver class's InvocationHandler; classes without one
// fail with ErrAbstractMethod.
func (c *Class) DeclareAbstract(name string, params []Type, ret Type) *Method {
	var m *Method
	m = c.define(Instance, name, params, ret, FlagAbstract, func(args []Value) (Value, error) {
		return dispatchAbstract(m, args)
	})
	return m
}

func (c *Class) define(kind MethodKind, name string, params []Type, ret Type, flags MethodFlags, body Body) *Method {
	m := newMethod(c, kind, name, params, ret, flags, body)
	m.selector = c.vm.Selectors.Intern(SelectorKey(name, params...))
	switch kind {
	case Static:
		c.ClassVTable.AddMethod(m.selector, m)
	case Instance:
		c.VTable.AddMethod(m.selector, m)
	case Constructor:
		c.mu.Lock()
		replaced := false
		for i, existing := range c.ctors {
			if existing.selector == m.selector {
				c.ctors[i] = m
				replaced = true
			}
		}
		if !replaced {
			c.ctors = append(c.ctors, m)
		}
		c.mu.Unlock()
	}
	return m
}

// ---------------------------------------------------------------------------
// Method lookup
// ---------------------------------------------------------------------------

// DeclaredMethod finds an instance or static method declared directly on c
// with exactly the given parameter types.
func (c *Class) DeclaredMethod(name string, params ...Type) *Method {
	sel := c.vm.Selectors.Lookup(SelectorKey(name, params...))
	if sel < 0 {
		return nil
	}
	if m := c.VTable.LookupLocal(sel); m != nil {
		return m
	}
	return c.ClassVTable.LookupLocal(sel)
}

// FindMethod resolves an instance method the way a virtual call does:
// superclass chain first, then implemented interfaces.
func (c *Class) FindMethod(name string, params ...Type) *Method {
	sel := c.vm.Selectors.Lookup(SelectorKey(name, params...))
	if sel < 0 {
		return nil
	}
	return c.resolve(sel)
}

// FindStatic resolves a class-side method through the superclass chain.
func (c *Class) FindStatic(name string, params ...Type) *Method {
	sel := c.vm.Selectors.Lookup(SelectorKey(name, params...))
	if sel < 0 {
		return nil
	}
	return c.ClassVTable.Lookup(sel)
}

// resolve looks up an instance selector, falling back to interface
// declarations when no class in the chain defines it.
func (c *Class) resolve(sel int) *Method {
	if m := c.VTable.Lookup(sel); m != nil {
		return m
	}
	for current := c; current != nil; current = current.Superclass {
		for _, i := range current.Interfaces() {
			if m := i.VTable.LookupLocal(sel); m != nil {
				return m
			}
		}
	}
	return nil
}

// Constructor finds the constructor with exactly the given parameter types.
func (c *Class) Constructor(params ...Type) *Method {
	sel := c.vm.Selectors.Lookup(SelectorKey("<init>", params...))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.ctors {
		if m.selector == sel {
			return m
		}
	}
	return nil
}

// Constructors returns all constructors of c.
func (c *Class) Constructors() []*Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Method(nil), c.ctors...)
}

// constructorFor picks the constructor whose parameters accept args.
func (c *Class) constructorFor(args []Value) *Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
next:
	for _, m := range c.ctors {
		if len(m.params) != len(args) {
			continue
		}
		for i, p := range m.params {
			if !p.Accepts(args[i]) {
				continue next
			}
		}
		return m
	}
	return nil
}

// ---------------------------------------------------------------------------
// Initialization and allocation
// ---------------------------------------------------------------------------

// SetInitializer installs the static initializer. It runs once, after the
// superclass initializer, on first use of a static method or constructor.
// The initializer must not call static methods of its own class.
func (c *Class) SetInitializer(fn func() error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	c.initFn = fn
}

// Initialized returns true once the static initializer has run.
func (c *Class) Initialized() bool { return c.initDone.Load() }

func (c *Class) ensureInitialized() error {
	if c.initDone.Load() {
		return c.initErr
	}
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initDone.Load() {
		return c.initErr
	}
	if c.Superclass != nil {
		if err := c.Superclass.ensureInitialized(); err != nil {
			c.initErr = err
		}
	}
	if c.initErr == nil && c.initFn != nil {
		if err := c.initFn(); err != nil {
			c.initErr = fmt.Errorf("%s: %w: %w", c, ErrInitializer, err)
		}
	}
	c.initDone.Store(true)
	return c.initErr
}

func (c *Class) allocate() (*Object, error) {
	if c.IsInterface() {
		return nil, fmt.Errorf("%s: %w", c, ErrNotInstantiable)
	}
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	return newObject(c, c.vm.nextID.Add(1)), nil
}

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

// FullName returns the fully qualified class name (namespace::name or just name).
func (c *Class) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "::" + c.Name
}

// String implements the Stringer interface.
func (c *Class) String() string {
	return c.FullName()
}

// ---------------------------------------------------------------------------
// ClassTable: Global class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by name.
// It's thread-safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*Class),
	}
}

// Register adds a class to the table.
// Returns the previous class with this name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	key := c.FullName()
	old := ct.classes[key]
	ct.classes[key] = c
	return old
}

// Lookup finds a class by its full name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// All returns all registered classes.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
