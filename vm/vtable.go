package vm

import "sync"

// VTable holds the method dispatch table for one side of a class.
//
// Methods are stored in a slice indexed by selector ID, giving O(1) lookup
// for a resolved call site. Inheritance is handled by walking the parent
// chain when a method is not found locally. Slots hold descriptors, not
// code: rewriting a method's entry point never touches the vtable.
type VTable struct {
	class  *Class
	parent *VTable

	mu      sync.RWMutex
	methods []*Method
}

// NewVTable creates a new vtable for a class.
func NewVTable(class *Class, parent *VTable) *VTable {
	return &VTable{
		class:   class,
		parent:  parent,
		methods: make([]*Method, 0, 16),
	}
}

// Lookup finds a method by selector ID, walking the inheritance chain.
// Returns nil if no method is found.
func (vt *VTable) Lookup(selector int) *Method {
	for v := vt; v != nil; v = v.parent {
		if m := v.LookupLocal(selector); m != nil {
			return m
		}
	}
	return nil
}

// LookupLocal finds a method by selector ID in this vtable only.
func (vt *VTable) LookupLocal(selector int) *Method {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	if selector >= 0 && selector < len(vt.methods) {
		return vt.methods[selector]
	}
	return nil
}

// AddMethod adds or replaces the method at the given selector ID.
// The methods slice is grown as needed.
func (vt *VTable) AddMethod(selector int, method *Method) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if selector >= len(vt.methods) {
		grown := make([]*Method, selector+1, max(selector+1, 2*cap(vt.methods)))
		copy(grown, vt.methods)
		vt.methods = grown
	}
	vt.methods[selector] = method
}

// HasMethod returns true if this vtable (not parents) has a method for selector.
func (vt *VTable) HasMethod(selector int) bool {
	return vt.LookupLocal(selector) != nil
}

// Parent returns the parent vtable.
func (vt *VTable) Parent() *VTable { return vt.parent }

// Class returns the class this vtable belongs to.
func (vt *VTable) Class() *Class { return vt.class }

// LocalMethods returns all non-nil methods defined in this vtable.
func (vt *VTable) LocalMethods() []*Method {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	result := make([]*Method, 0, len(vt.methods))
	for _, m := range vt.methods {
		if m != nil {
			result = append(result, m)
		}
	}
	return result
}

// relocate moves the method slots into freshly allocated, tightly sized
// storage. Used by Compact.
func (vt *VTable) relocate() {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	moved := make([]*Method, len(vt.methods))
	copy(moved, vt.methods)
	vt.methods = moved
}
