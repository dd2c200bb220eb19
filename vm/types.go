package vm

import "strings"

// Type describes a parameter or return type of a method.
//
// Primitive types accept only values of the same kind. String and host
// types also accept Nil. Object is the top reference type and accepts
// everything, primitives included (they are boxed on the way in).
type Type struct {
	kind Kind
	name string
	void bool
}

// Well-known types
var (
	Void        = Type{void: true}
	TypeBoolean = Type{kind: KindBoolean}
	TypeByte    = Type{kind: KindByte}
	TypeShort   = Type{kind: KindShort}
	TypeChar    = Type{kind: KindChar}
	TypeInt     = Type{kind: KindInt}
	TypeLong    = Type{kind: KindLong}
	TypeFloat   = Type{kind: KindFloat}
	TypeDouble  = Type{kind: KindDouble}
	TypeString  = Type{kind: KindString}
	TypeObject  = Type{kind: KindObject}
)

// HostType returns the type of host values registered under name. Two host
// types are the same type iff their names are equal.
func HostType(name string) Type {
	return Type{kind: KindHost, name: name}
}

// IsVoid returns true for the void return type.
func (t Type) IsVoid() bool { return t.void }

// Kind returns the value kind this type describes.
func (t Type) Kind() Kind { return t.kind }

// Accepts reports whether v may be passed where t is expected.
func (t Type) Accepts(v Value) bool {
	switch {
	case t.void:
		return false
	case t.kind == KindObject:
		return true
	case t.kind == KindString || t.kind == KindHost:
		return v.kind == t.kind || v.kind == KindNil
	default:
		return v.kind == t.kind
	}
}

// String returns the source-level spelling of the type.
func (t Type) String() string {
	switch {
	case t.void:
		return "void"
	case t.kind == KindHost:
		return t.name
	default:
		return t.kind.String()
	}
}

// Assignable reports whether a value of type from may be returned or
// passed where type to is expected.
func Assignable(from, to Type) bool {
	if from == to {
		return true
	}
	if from.void || to.void {
		return false
	}
	return to.kind == KindObject
}

// signature renders a parameter list as used in selector keys.
func signature(params []Type) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}
