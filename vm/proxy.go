package vm

import "fmt"

// ---------------------------------------------------------------------------
// Interfaces and proxy classes
// ---------------------------------------------------------------------------

// InvocationHandler receives every call made on a proxy instance.
type InvocationHandler interface {
	Invoke(proxy Value, method *Method, args []Value) (Value, error)
}

// InvocationHandlerFunc adapts a function to InvocationHandler.
type InvocationHandlerFunc func(proxy Value, method *Method, args []Value) (Value, error)

// Invoke calls f.
func (f InvocationHandlerFunc) Invoke(proxy Value, method *Method, args []Value) (Value, error) {
	return f(proxy, method, args)
}

// DefineInterface creates and registers an interface class. Interfaces
// have no slots and cannot be instantiated; their methods are declared
// with DeclareAbstract.
func (v *VM) DefineInterface(name string) *Class {
	c := newClass(v, name, nil, nil)
	c.SetFlag(ClassInterface)
	v.Classes.Register(c)
	return c
}

// NewProxyClass creates a final class implementing ifaces whose instances
// route every interface call to handler. The proxy class does not define
// methods of its own: its vtable slots resolve to the abstract interface
// descriptors, so rewriting an abstract method's entry reaches every proxy.
func (v *VM) NewProxyClass(name string, handler InvocationHandler, ifaces ...*Class) (*Class, error) {
	if handler == nil {
		return nil, fmt.Errorf("proxy %s: nil invocation handler", name)
	}
	c := newClass(v, name, v.ObjectClass, nil)
	c.SetFlag(ClassProxy | ClassFinal)
	if err := c.Implement(ifaces...); err != nil {
		return nil, err
	}
	for _, i := range ifaces {
		for _, m := range i.VTable.LocalMethods() {
			c.VTable.AddMethod(m.selector, m)
		}
	}
	c.handler = handler
	v.Classes.Register(c)
	return c, nil
}

// Handler returns the invocation handler of a proxy class, or nil.
func (c *Class) Handler() InvocationHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// dispatchAbstract is the original code of every abstract method: look for
// a handler on the receiver's class chain and forward the call to it.
func dispatchAbstract(m *Method, args []Value) (Value, error) {
	recv := args[0]
	for c := m.class.vm.ClassOf(recv); c != nil; c = c.Superclass {
		if h := c.Handler(); h != nil {
			return h.Invoke(recv, m, args[1:])
		}
	}
	return Nil, fmt.Errorf("%s: %w", m, ErrAbstractMethod)
}
