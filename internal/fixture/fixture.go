// Package fixture builds the classes the hook tests and the demo command
// exercise: a target class with static, instance and constructor methods,
// a class of replacements, an interface backed by a proxy and a lazily
// initialized class.
package fixture

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chazu/graft/hook"
	"github.com/chazu/graft/vm"
)

// Fixture holds the classes and method descriptors of one VM.
type Fixture struct {
	VM *vm.VM

	// Sample is the hook target.
	Sample         *vm.Class
	Ctor           *vm.Method
	StaticMethod   *vm.Method
	NormalMethod   *vm.Method
	ManyParameters *vm.Method
	Describe       *vm.Method

	// Replacement holds Callback-form replacements.
	Replacement               *vm.Class
	StaticReplacement         *vm.Method
	NormalReplacement         *vm.Method
	ConstructorReplacement    *vm.Method
	ManyParametersReplacement *vm.Method

	// Legacy holds replacements that take the target's own arguments.
	Legacy             *vm.Class
	StaticLegacy       *vm.Method
	NormalLegacyStatic *vm.Method
	NormalLegacyMember *vm.Method

	// Greeter is an interface implemented only by GreeterProxy.
	Greeter          *vm.Class
	Greet            *vm.Method
	GreeterProxy     *vm.Class
	GreetReplacement *vm.Method

	// ParseInt is the built-in Integer.parseInt(String).
	ParseInt            *vm.Method
	ParseIntReplacement *vm.Method

	// Lazy has a static initializer that runs on first use.
	Lazy      *vm.Class
	LazyValue *vm.Method
	LazyInits atomic.Int32
}

// Parameter lists of the Sample methods.
var (
	NormalParams = []vm.Type{vm.TypeString, vm.TypeInt, vm.TypeLong}
	ManyParams   = []vm.Type{
		vm.TypeString, vm.TypeBoolean, vm.TypeByte, vm.TypeShort, vm.TypeInt,
		vm.TypeLong, vm.TypeFloat, vm.TypeDouble, vm.TypeObject, vm.TypeObject,
	}
)

// New builds a VM with the fixture classes defined.
func New(opts ...vm.Option) (*Fixture, error) {
	f := &Fixture{VM: vm.NewVM(opts...)}
	for _, step := range []func() error{
		f.defineSample,
		f.defineReplacement,
		f.defineLegacy,
		f.defineGreeter,
		f.defineBuiltin,
		f.defineLazy,
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Fixture) defineSample() error {
	c, err := f.VM.DefineClass("Sample", nil, "field")
	if err != nil {
		return err
	}
	f.Sample = c

	f.Ctor = c.DefineConstructor(nil, func(args []vm.Value) (vm.Value, error) {
		args[0].Object().SetField("field", vm.False)
		return vm.Nil, nil
	})

	f.StaticMethod = c.DefineStatic("staticMethod", nil, vm.TypeBoolean, func(args []vm.Value) (vm.Value, error) {
		return vm.False, nil
	})

	f.NormalMethod = c.DefineMethod("normalMethod", NormalParams, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		return vm.FromString(vm.Concat(args[1:]...)), nil
	})

	f.ManyParameters = c.DefineMethod("manyParametersMethod", ManyParams, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		return vm.FromString(vm.Concat(args[1:]...)), nil
	})

	f.Describe = c.DefineMethod("describe", nil, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		return vm.FromString("Sample(field=" + args[0].Object().Field("field").String() + ")"), nil
	})
	return nil
}

func (f *Fixture) defineReplacement() error {
	c, err := f.VM.DefineClass("Replacement", nil)
	if err != nil {
		return err
	}
	f.Replacement = c
	cb := []vm.Type{hook.CallbackType}

	f.StaticReplacement = c.DefineStatic("staticMethodReplacement", cb, vm.TypeBoolean, func(args []vm.Value) (vm.Value, error) {
		return vm.True, nil
	})

	f.NormalReplacement = c.DefineMethod("normalMethodReplacement", cb, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		call := hook.CallbackArg(args)
		return vm.FromString(vm.Concat(call.Args[1:]...) + "replace"), nil
	})

	f.ConstructorReplacement = c.DefineMethod("constructorReplacement", cb, vm.Void, func(args []vm.Value) (vm.Value, error) {
		call := hook.CallbackArg(args)
		if _, err := call.InvokeOriginal(); err != nil {
			return vm.Nil, err
		}
		call.Receiver().Object().SetField("field", vm.True)
		return vm.Nil, nil
	})

	f.ManyParametersReplacement = c.DefineMethod("manyParametersReplacement", cb, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		call := hook.CallbackArg(args)
		return vm.FromString(vm.Concat(call.Args[1:]...) + "replace"), nil
	})
	return nil
}

func (f *Fixture) defineLegacy() error {
	c, err := f.VM.DefineClass("Legacy", nil)
	if err != nil {
		return err
	}
	f.Legacy = c

	f.StaticLegacy = c.DefineStatic("staticMethod", nil, vm.TypeBoolean, func(args []vm.Value) (vm.Value, error) {
		return vm.True, nil
	})

	// receiver first, then normalMethod's parameters
	params := append([]vm.Type{vm.TypeObject}, NormalParams...)
	f.NormalLegacyStatic = c.DefineStatic("normalMethod", params, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		return vm.FromString(strings.ToUpper(vm.Concat(args[1:]...))), nil
	})

	// instance legacy replacements run on the target's receiver, so they
	// live on a class the receiver conforms to
	f.NormalLegacyMember = f.Sample.DefineMethod("normalMethodLegacy", NormalParams, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		return vm.FromString("legacy:" + vm.Concat(args[1:]...)), nil
	})
	return nil
}

func (f *Fixture) defineGreeter() error {
	f.Greeter = f.VM.DefineInterface("Greeter")
	f.Greet = f.Greeter.DeclareAbstract("greet", []vm.Type{vm.TypeString}, vm.TypeString)

	handler := vm.InvocationHandlerFunc(func(proxy vm.Value, m *vm.Method, args []vm.Value) (vm.Value, error) {
		return vm.FromString("proxy " + m.Name() + " " + args[0].String()), nil
	})
	c, err := f.VM.NewProxyClass("$Proxy0", handler, f.Greeter)
	if err != nil {
		return err
	}
	f.GreeterProxy = c

	f.GreetReplacement = f.Replacement.DefineStatic("greetReplacement", []vm.Type{hook.CallbackType}, vm.TypeString, func(args []vm.Value) (vm.Value, error) {
		original, err := hook.CallbackArg(args).InvokeOriginal()
		if err != nil {
			return vm.Nil, err
		}
		return vm.FromString("hooked " + original.String()), nil
	})
	return nil
}

func (f *Fixture) defineBuiltin() error {
	f.ParseInt = f.VM.IntegerClass.FindStatic("parseInt", vm.TypeString)
	if f.ParseInt == nil {
		return fmt.Errorf("Integer.parseInt(String) is not defined")
	}
	f.ParseIntReplacement = f.Replacement.DefineStatic("parseIntReplacement", []vm.Type{hook.CallbackType}, vm.TypeInt, func(args []vm.Value) (vm.Value, error) {
		v, err := hook.CallbackArg(args).InvokeOriginal()
		if err != nil {
			return vm.Nil, err
		}
		return vm.FromInt(v.Int() + 1), nil
	})
	return nil
}

func (f *Fixture) defineLazy() error {
	c, err := f.VM.DefineClass("Lazy", nil)
	if err != nil {
		return err
	}
	f.Lazy = c
	c.SetInitializer(func() error {
		f.LazyInits.Add(1)
		return nil
	})
	f.LazyValue = c.DefineStatic("value", nil, vm.TypeInt, func(args []vm.Value) (vm.Value, error) {
		return vm.FromInt(1), nil
	})
	return nil
}

// NewSample constructs a Sample through the direct path.
func (f *Fixture) NewSample() (vm.Value, error) {
	return f.VM.New(f.Sample)
}

// NewReplacementOwner constructs the instance Callback-form replacements
// are bound to.
func (f *Fixture) NewReplacementOwner() (vm.Value, error) {
	return f.VM.New(f.Replacement)
}

// NormalArgs returns the arguments the normalMethod tests call with.
func NormalArgs(recv vm.Value) []vm.Value {
	return []vm.Value{recv, vm.FromString("test"), vm.FromInt(42), vm.FromLong(43)}
}

// ManyArgs returns the arguments the manyParametersMethod tests call with.
func ManyArgs(recv vm.Value) []vm.Value {
	return []vm.Value{
		recv,
		vm.FromString("test"),
		vm.True,
		vm.FromByte(1),
		vm.FromShort(2),
		vm.FromInt(3),
		vm.FromLong(4),
		vm.FromFloat(5),
		vm.FromDouble(6),
		vm.FromInt(7),
		vm.FromLong(8),
	}
}
