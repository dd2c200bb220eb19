// Package hook intercepts methods of a vm.VM.
//
// Hook binds one target method to one replacement. After it returns, every
// call to the target, from any goroutine and through any call path, runs the
// replacement instead. The replacement receives a *Callback carrying the
// original argument vector and a backup method that still runs the
// target's pre-hook code. Unhook restores the target and retires the backup.
//
// A replacement has one of two shapes:
//
//	// preferred: one Callback parameter, optionally bound to an owner instance
//	repl := c.DefineStatic("onCall", []vm.Type{hook.CallbackType}, vm.TypeBoolean, body)
//
//	// legacy: the target's own argument list (receiver first for a static
//	// replacement of an instance target)
//	repl := c.DefineStatic("onCall", []vm.Type{vm.TypeObject, vm.TypeInt}, vm.TypeInt, body)
//
// The rewriting itself is delegated to an Installer, normally *engine.Engine.
package hook
