package vm

import (
	"errors"
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Round trips
// ---------------------------------------------------------------------------

func TestPrimitiveRoundTrip(t *testing.T) {
	if got := FromByte(-7).Byte(); got != -7 {
		t.Errorf("Byte() = %d, want -7", got)
	}
	if got := FromShort(-300).Short(); got != -300 {
		t.Errorf("Short() = %d, want -300", got)
	}
	if got := FromChar('λ').Char(); got != 'λ' {
		t.Errorf("Char() = %q, want λ", got)
	}
	if got := FromInt(math.MinInt32).Int(); got != math.MinInt32 {
		t.Errorf("Int() = %d, want MinInt32", got)
	}
	if got := FromLong(math.MaxInt64).Long(); got != math.MaxInt64 {
		t.Errorf("Long() = %d, want MaxInt64", got)
	}
	if got := FromFloat(1.5).Float(); got != 1.5 {
		t.Errorf("Float() = %v, want 1.5", got)
	}
	if got := FromDouble(math.Inf(-1)).Double(); !math.IsInf(got, -1) {
		t.Errorf("Double() = %v, want -Inf", got)
	}
	if !FromBool(true).Bool() || FromBool(false).Bool() {
		t.Error("FromBool round trip failed")
	}
}

func TestFloatRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		1.0,
		-1.0,
		3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		math.Inf(1),
	}

	for _, f := range tests {
		v := FromDouble(f)
		if v.Kind() != KindDouble {
			t.Errorf("FromDouble(%v).Kind() = %s, want double", f, v.Kind())
			continue
		}
		if got := v.Double(); got != f {
			t.Errorf("FromDouble(%v).Double() = %v, want %v", f, got, f)
		}
	}
}

func TestNilConstructors(t *testing.T) {
	if !FromObject(nil).IsNil() {
		t.Error("FromObject(nil) should be Nil")
	}
	if !FromHost(nil).IsNil() {
		t.Error("FromHost(nil) should be Nil")
	}
	var zero Value
	if !zero.IsNil() || zero.Kind() != KindNil {
		t.Error("zero Value should be Nil")
	}
}

func TestAccessorPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Int() on a String should panic")
		}
	}()
	FromString("x").Int()
}

// ---------------------------------------------------------------------------
// Rendering and equality
// ---------------------------------------------------------------------------

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Nil, "null"},
		{True, "true"},
		{FromByte(-1), "-1"},
		{FromShort(2), "2"},
		{FromChar('x'), "x"},
		{FromInt(42), "42"},
		{FromLong(-43), "-43"},
		{FromFloat(5), "5.0"},
		{FromDouble(6.25), "6.25"},
		{FromString("abc"), "abc"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%s value String() = %q, want %q", tt.v.Kind(), got, tt.want)
		}
	}
}

func TestConcat(t *testing.T) {
	got := Concat(FromString("test"), FromInt(42), FromLong(43))
	if got != "test4243" {
		t.Errorf("Concat = %q, want test4243", got)
	}
	got = Concat(FromString("a"), True, FromByte(1), FromFloat(5), FromDouble(6), Nil)
	if got != "atrue15.06.0null" {
		t.Errorf("Concat = %q, want atrue15.06.0null", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal(FromInt(1), FromInt(1)) {
		t.Error("equal ints should compare equal")
	}
	if Equal(FromInt(1), FromLong(1)) {
		t.Error("int and long should not compare equal")
	}
	if !Equal(FromString("a"), FromString("a")) {
		t.Error("equal strings should compare equal")
	}

	v := NewVM()
	a, _ := v.New(v.ObjectClass)
	b, _ := v.New(v.ObjectClass)
	if Equal(a, b) {
		t.Error("distinct objects should not compare equal")
	}
	if !Equal(a, a) {
		t.Error("object should equal itself")
	}
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func TestTypeAccepts(t *testing.T) {
	host := HostType("test.Host")
	tests := []struct {
		typ  Type
		v    Value
		want bool
	}{
		{TypeInt, FromInt(1), true},
		{TypeInt, FromLong(1), false},
		{TypeString, FromString("s"), true},
		{TypeString, Nil, true},
		{TypeString, FromInt(1), false},
		{TypeObject, FromInt(1), true},
		{TypeObject, Nil, true},
		{host, FromHost(struct{}{}), true},
		{host, Nil, true},
		{Void, Nil, false},
	}
	for _, tt := range tests {
		if got := tt.typ.Accepts(tt.v); got != tt.want {
			t.Errorf("%s.Accepts(%s) = %v, want %v", tt.typ, tt.v.Kind(), got, tt.want)
		}
	}
}

func TestAssignable(t *testing.T) {
	if !Assignable(TypeString, TypeObject) {
		t.Error("String should be assignable to Object")
	}
	if Assignable(TypeObject, TypeString) {
		t.Error("Object should not be assignable to String")
	}
	if !Assignable(Void, Void) {
		t.Error("void should be assignable to void")
	}
	if Assignable(TypeInt, Void) || Assignable(Void, TypeObject) {
		t.Error("void mixes with nothing")
	}
	if HostType("a") == HostType("b") {
		t.Error("host types with different names should differ")
	}
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func TestException(t *testing.T) {
	cause := errors.New("root cause")
	err := error(&Exception{Class: "IllegalStateException", Message: "bad", Cause: cause})

	if err.Error() != "IllegalStateException: bad" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("exception should unwrap to its cause")
	}
	if !IsException(err, "IllegalStateException") {
		t.Error("IsException should match the class")
	}
	if IsException(err, "RuntimeException") {
		t.Error("IsException should not match another class")
	}
	if got := Throw("RuntimeException", "n=%d", 3).Error(); got != "RuntimeException: n=3" {
		t.Errorf("Throw().Error() = %q", got)
	}
}
