package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a tagged dynamic value passed across method boundaries.
//
// Primitive payloads live in bits; strings, objects and host values live in
// ref. The zero Value is Nil. Argument vectors are plain []Value, so type
// erasure happens in exactly one place: Method.Call checks each element
// against the descriptor's parameter types.
type Value struct {
	kind Kind
	bits uint64
	ref  any
}

// Kind identifies the representation of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBoolean
	KindByte
	KindShort
	KindChar
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindObject
	KindHost
)

var kindNames = [...]string{
	KindNil:     "nil",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindShort:   "short",
	KindChar:    "char",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
	KindString:  "String",
	KindObject:  "Object",
	KindHost:    "host",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsReference returns true for kinds that may also be Nil.
func (k Kind) IsReference() bool {
	return k == KindString || k == KindObject || k == KindHost || k == KindNil
}

// Pre-defined values
var (
	Nil   = Value{}
	True  = Value{kind: KindBoolean, bits: 1}
	False = Value{kind: KindBoolean}
)

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromBool creates a boolean Value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromByte creates a byte Value.
func FromByte(b int8) Value { return Value{kind: KindByte, bits: uint64(int64(b))} }

// FromShort creates a short Value.
func FromShort(s int16) Value { return Value{kind: KindShort, bits: uint64(int64(s))} }

// FromChar creates a char Value.
func FromChar(c rune) Value { return Value{kind: KindChar, bits: uint64(uint16(c))} }

// FromInt creates an int Value.
func FromInt(n int32) Value { return Value{kind: KindInt, bits: uint64(int64(n))} }

// FromLong creates a long Value.
func FromLong(n int64) Value { return Value{kind: KindLong, bits: uint64(n)} }

// FromFloat creates a float Value.
func FromFloat(f float32) Value {
	return Value{kind: KindFloat, bits: uint64(math.Float32bits(f))}
}

// FromDouble creates a double Value.
func FromDouble(f float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(f)}
}

// FromString creates a String Value.
func FromString(s string) Value { return Value{kind: KindString, ref: s} }

// FromObject wraps an object. A nil pointer yields Nil.
func FromObject(o *Object) Value {
	if o == nil {
		return Nil
	}
	return Value{kind: KindObject, ref: o}
}

// FromHost wraps an arbitrary Go value so it can travel through an argument
// vector. A nil host yields Nil.
func FromHost(h any) Value {
	if h == nil {
		return Nil
	}
	return Value{kind: KindHost, ref: h}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the representation kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool { return v.kind == KindNil }

// IsTrue returns true if v is the true value.
func (v Value) IsTrue() bool { return v.kind == KindBoolean && v.bits == 1 }

// IsObject returns true if v holds an object reference.
func (v Value) IsObject() bool { return v.kind == KindObject }

// IsString returns true if v holds a string.
func (v Value) IsString() bool { return v.kind == KindString }

// ---------------------------------------------------------------------------
// Accessors (panic on kind mismatch)
// ---------------------------------------------------------------------------

func (v Value) must(k Kind, op string) {
	if v.kind != k {
		panic("Value." + op + ": not a " + k.String() + " (got " + v.kind.String() + ")")
	}
}

// Bool returns v as a bool.
func (v Value) Bool() bool {
	v.must(KindBoolean, "Bool")
	return v.bits == 1
}

// Byte returns v as an int8.
func (v Value) Byte() int8 {
	v.must(KindByte, "Byte")
	return int8(v.bits)
}

// Short returns v as an int16.
func (v Value) Short() int16 {
	v.must(KindShort, "Short")
	return int16(v.bits)
}

// Char returns v as a rune.
func (v Value) Char() rune {
	v.must(KindChar, "Char")
	return rune(uint16(v.bits))
}

// Int returns v as an int32.
func (v Value) Int() int32 {
	v.must(KindInt, "Int")
	return int32(v.bits)
}

// Long returns v as an int64.
func (v Value) Long() int64 {
	v.must(KindLong, "Long")
	return int64(v.bits)
}

// Float returns v as a float32.
func (v Value) Float() float32 {
	v.must(KindFloat, "Float")
	return math.Float32frombits(uint32(v.bits))
}

// Double returns v as a float64.
func (v Value) Double() float64 {
	v.must(KindDouble, "Double")
	return math.Float64frombits(v.bits)
}

// Str returns the string held by v.
func (v Value) Str() string {
	v.must(KindString, "Str")
	return v.ref.(string)
}

// Object returns the object held by v.
func (v Value) Object() *Object {
	v.must(KindObject, "Object")
	return v.ref.(*Object)
}

// Host returns the Go value held by v.
func (v Value) Host() any {
	v.must(KindHost, "Host")
	return v.ref
}

// ---------------------------------------------------------------------------
// Comparison and rendering
// ---------------------------------------------------------------------------

// Equal reports whether a and b have the same kind and payload. Objects
// compare by identity.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindString:
		return a.ref.(string) == b.ref.(string)
	case KindObject:
		return a.ref.(*Object) == b.ref.(*Object)
	case KindHost:
		return a.ref == b.ref
	default:
		return a.bits == b.bits
	}
}

// String renders v the way string concatenation does: "null" for Nil,
// decimal integers, floats with a trailing ".0" when integral.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "null"
	case KindBoolean:
		return strconv.FormatBool(v.bits == 1)
	case KindByte, KindShort, KindInt, KindLong:
		return strconv.FormatInt(int64(v.bits), 10)
	case KindChar:
		return string(rune(uint16(v.bits)))
	case KindFloat:
		return formatFloat(float64(v.Float()), 32)
	case KindDouble:
		return formatFloat(v.Double(), 64)
	case KindString:
		return v.ref.(string)
	case KindObject:
		o := v.ref.(*Object)
		return o.class.FullName() + "@" + strconv.FormatUint(o.id, 16)
	case KindHost:
		return fmt.Sprint(v.ref)
	}
	return "?"
}

func formatFloat(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Concat joins the rendered form of each value.
func Concat(values ...Value) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(v.String())
	}
	return b.String()
}
