package hook

import "github.com/chazu/graft/vm"

// CallbackType is the parameter type of replacements that take a Callback.
var CallbackType = vm.HostType("graft.Callback")

// Callback is handed to a replacement on every intercepted call. It is
// created fresh per call and must not be retained past the replacement's
// return.
type Callback struct {
	// Backup runs the target's original code. Valid until the hook is
	// removed.
	Backup *vm.Method
	// Args is the argument vector of the intercepted call. For instance
	// methods and constructors Args[0] is the receiver.
	Args []vm.Value
}

// Receiver returns the receiver of the intercepted call, or Nil for a
// static target.
func (c *Callback) Receiver() vm.Value {
	if c.Backup.IsStatic() || len(c.Args) == 0 {
		return vm.Nil
	}
	return c.Args[0]
}

// InvokeBackup runs the original code with args, which must include the
// receiver for instance targets.
func (c *Callback) InvokeBackup(args ...vm.Value) (vm.Value, error) {
	return c.Backup.Call(args)
}

// InvokeOriginal runs the original code with the intercepted arguments.
func (c *Callback) InvokeOriginal() (vm.Value, error) {
	return c.Backup.Call(c.Args)
}

// FromValue extracts a Callback from a replacement argument.
func FromValue(v vm.Value) (*Callback, bool) {
	if v.Kind() != vm.KindHost {
		return nil, false
	}
	cb, ok := v.Host().(*Callback)
	return cb, ok
}

// CallbackArg returns the Callback passed to a replacement body: the last
// element of its argument vector. Returns nil if there is none.
func CallbackArg(args []vm.Value) *Callback {
	if len(args) == 0 {
		return nil
	}
	cb, _ := FromValue(args[len(args)-1])
	return cb
}
