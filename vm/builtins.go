package vm

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Built-in classes and methods
// ---------------------------------------------------------------------------

// bootstrap installs the runtime-provided classes. Every method defined
// here carries FlagBuiltin and is hookable like any user method.
func (v *VM) bootstrap() {
	v.ObjectClass = newClass(v, "Object", nil, nil)
	v.Classes.Register(v.ObjectClass)

	v.StringClass = v.builtinClass("String")
	v.IntegerClass = v.builtinClass("Integer")
	v.MathClass = v.builtinClass("Math")

	v.installObjectBuiltins()
	v.installStringBuiltins()
	v.installNumberBuiltins()
}

func (v *VM) builtinClass(name string) *Class {
	c := newClass(v, name, v.ObjectClass, nil)
	c.SetFlag(ClassFinal)
	v.Classes.Register(c)
	return c
}

func (v *VM) installObjectBuiltins() {
	o := v.ObjectClass

	o.DefineBuiltin(Instance, "hashCode", nil, TypeInt, func(args []Value) (Value, error) {
		return FromInt(identityHash(args[0])), nil
	})

	o.DefineBuiltin(Instance, "toString", nil, TypeString, func(args []Value) (Value, error) {
		return FromString(args[0].String()), nil
	})

	o.DefineBuiltin(Instance, "equals", []Type{TypeObject}, TypeBoolean, func(args []Value) (Value, error) {
		return FromBool(Equal(args[0], args[1])), nil
	})
}

func (v *VM) installStringBuiltins() {
	s := v.StringClass

	s.DefineBuiltin(Instance, "length", nil, TypeInt, func(args []Value) (Value, error) {
		return FromInt(int32(len([]rune(args[0].Str())))), nil
	})

	s.DefineBuiltin(Instance, "concat", []Type{TypeString}, TypeString, func(args []Value) (Value, error) {
		return FromString(args[0].Str() + args[1].String()), nil
	})

	s.DefineBuiltin(Instance, "toUpperCase", nil, TypeString, func(args []Value) (Value, error) {
		return FromString(strings.ToUpper(args[0].Str())), nil
	})

	s.DefineBuiltin(Static, "valueOf", []Type{TypeObject}, TypeString, func(args []Value) (Value, error) {
		return FromString(args[0].String()), nil
	})
}

func (v *VM) installNumberBuiltins() {
	v.IntegerClass.DefineBuiltin(Static, "toString", []Type{TypeInt}, TypeString, func(args []Value) (Value, error) {
		return FromString(strconv.FormatInt(int64(args[0].Int()), 10)), nil
	})

	v.IntegerClass.DefineBuiltin(Static, "parseInt", []Type{TypeString}, TypeInt, func(args []Value) (Value, error) {
		n, err := strconv.ParseInt(args[0].Str(), 10, 32)
		if err != nil {
			return Nil, &Exception{Class: "NumberFormatException", Message: args[0].Str(), Cause: err}
		}
		return FromInt(int32(n)), nil
	})

	v.MathClass.DefineBuiltin(Static, "max", []Type{TypeInt, TypeInt}, TypeInt, func(args []Value) (Value, error) {
		return FromInt(max(args[0].Int(), args[1].Int())), nil
	})
}

// identityHash hashes strings by content and objects by identity.
func identityHash(v Value) int32 {
	switch v.kind {
	case KindObject:
		return int32(v.Object().id)
	case KindString:
		h := fnv.New32a()
		h.Write([]byte(v.Str()))
		return int32(h.Sum32())
	default:
		return int32(v.bits)
	}
}
