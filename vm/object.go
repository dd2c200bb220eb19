package vm

import "sync"

// Object is a heap-allocated instance of a class.
//
// Slots are laid out superclass-first, so a slot index computed on a
// superclass is valid for every subclass instance. Slot access is guarded
// per object because constructors may run on one goroutine while another
// reads a published instance.
type Object struct {
	class *Class
	id    uint64

	mu    sync.RWMutex
	slots []Value
}

// newObject creates an object with all slots set to Nil.
func newObject(c *Class, id uint64) *Object {
	return &Object{
		class: c,
		id:    id,
		slots: make([]Value, c.NumSlots),
	}
}

// Class returns the class of the object.
func (o *Object) Class() *Class { return o.class }

// ID returns the identity hash of the object.
func (o *Object) ID() uint64 { return o.id }

// NumSlots returns the number of instance variable slots.
func (o *Object) NumSlots() int { return len(o.slots) }

// Slot returns the value at index, or Nil when out of range.
func (o *Object) Slot(index int) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if index < 0 || index >= len(o.slots) {
		return Nil
	}
	return o.slots[index]
}

// SetSlot stores v at index. Out-of-range writes are ignored.
func (o *Object) SetSlot(index int, v Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index >= 0 && index < len(o.slots) {
		o.slots[index] = v
	}
}

// Field returns the named instance variable, or Nil if the class has none.
func (o *Object) Field(name string) Value {
	return o.Slot(o.class.InstVarIndex(name))
}

// SetField stores the named instance variable. Returns false if the class
// declares no such variable.
func (o *Object) SetField(name string, v Value) bool {
	idx := o.class.InstVarIndex(name)
	if idx < 0 {
		return false
	}
	o.SetSlot(idx, v)
	return true
}
